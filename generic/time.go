package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day, independent of any time zone
// =============================================================================

// DateLayout is the wire format for dates.
const DateLayout = "2006-01-02"

// Date is a calendar day. The wrapped time is always midnight UTC so that
// day arithmetic never crosses a DST boundary.
type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day that instant t falls on in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return NewDate(local.Year(), local.Month(), local.Day())
}

// Today returns the current calendar day in loc.
func Today(loc *time.Location) Date { return DateOf(time.Now(), loc) }

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }
func (d Date) IsZero() bool      { return d.Time.IsZero() }
func (d Date) String() string    { return d.Time.Format(DateLayout) }

// =============================================================================
// DATE UTILITIES
// =============================================================================

// DaysBetween returns to - from in whole days. Negative when to is earlier.
func DaysBetween(from, to Date) int {
	return int(to.Time.Sub(from.Time) / (24 * time.Hour))
}

func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

func MaxDate(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}
