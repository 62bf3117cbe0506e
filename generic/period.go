package generic

import "sort"

// =============================================================================
// PERIOD - Inclusive span of calendar days
// =============================================================================

// Period is the closed range [Start, End]. Both endpoints count.
//
// Examples:
//   - A one-day sickness exemption: Start == End
//   - A week off the road for repairs: Mar 3 - Mar 9 (7 days)
type Period struct {
	Start Date
	End   Date
}

// Validate enforces Start <= End.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return &ValidationError{
			Field:   "end_date",
			Message: "start date cannot be after end date",
			Err:     ErrInvalidPeriod,
		}
	}
	return nil
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days is the number of calendar days in the period, or 0 if it is empty.
func (p Period) Days() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// ClipEnd caps the period at the given day. The result may be empty.
func (p Period) ClipEnd(limit Date) Period {
	return Period{Start: p.Start, End: MinDate(p.End, limit)}
}

// IsEmpty reports whether End precedes Start.
func (p Period) IsEmpty() bool { return p.End.Before(p.Start) }

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// PERIOD SETS
// =============================================================================

// MergePeriods returns the union of the non-empty periods as a sorted list of
// disjoint periods. Adjacent periods (one ends the day before the next
// starts) are joined.
func MergePeriods(periods []Period) []Period {
	var sorted []Period
	for _, p := range periods {
		if !p.IsEmpty() {
			sorted = append(sorted, p)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []Period{sorted[0]}
	for _, p := range sorted[1:] {
		last := &merged[len(merged)-1]
		if p.Start.BeforeOrEqual(last.End.AddDays(1)) {
			last.End = MaxDate(last.End, p.End)
			continue
		}
		merged = append(merged, p)
	}
	return merged
}

// TotalDays sums Days over every period without deduplicating overlaps.
func TotalDays(periods []Period) int {
	total := 0
	for _, p := range periods {
		total += p.Days()
	}
	return total
}
