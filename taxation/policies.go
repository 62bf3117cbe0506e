/*
policies.go - Tax policy: the business rules behind the calculators

PURPOSE:
  Every business constant the engine depends on lives here instead of being
  embedded in the calculators: the late-activation cutoff, the debt-limit
  multiplier, the deployment time zone and how overlapping exemptions add up.
  Policies are loaded from configuration (see config/ and factory/).

DEFAULTS (DefaultPolicy):
  CutoffHour:       16   (activation at or after 4 PM is not billed that day)
  DebtDays:         7    (owing more than 7 days of tax => inactive)
  TimeZone:         Africa/Lagos
  ExemptionOverlap: additive (each approved period counts in full)
  DefaultDailyRate: 150.00 NGN

OVERLAP MODES:
  additive: periods are summed independently. Two approved periods covering
            the same day both excuse it. Matches historical billing.
  union:    periods are merged first, so a calendar day is excused once.

EXAMPLE:
  policy := taxation.DefaultPolicy()
  policy.DebtDays = 14
  if err := policy.Validate(); err != nil { ... }

SEE ALSO:
  - factory/policy.go: JSON policy documents
  - compliance.go: Uses DebtDays
  - accrual.go: Uses CutoffHour and the location
*/
package taxation

import (
	"fmt"
	"time"

	"github.com/hassan3xl/taxation-backend/generic"
)

type OverlapMode string

const (
	OverlapAdditive OverlapMode = "additive"
	OverlapUnion    OverlapMode = "union"
)

func (m OverlapMode) Valid() bool { return m == OverlapAdditive || m == OverlapUnion }

// Policy holds the configurable rules of the engine.
type Policy struct {
	ID               string
	Name             string
	Currency         generic.Currency
	DefaultDailyRate generic.Amount
	TimeZone         string
	CutoffHour       int
	DebtDays         int64
	ExemptionOverlap OverlapMode

	location *time.Location
}

// DefaultPolicy returns the policy the tax authority launched with.
func DefaultPolicy() Policy {
	p := Policy{
		ID:               "default",
		Name:             "Daily vehicle tax",
		Currency:         generic.CurrencyNGN,
		DefaultDailyRate: generic.MustParseAmount("150.00", generic.CurrencyNGN),
		TimeZone:         "Africa/Lagos",
		CutoffHour:       16,
		DebtDays:         7,
		ExemptionOverlap: OverlapAdditive,
	}
	return p
}

// Validate checks the policy and resolves its time zone.
func (p *Policy) Validate() error {
	if p.CutoffHour < 0 || p.CutoffHour > 23 {
		return &generic.ValidationError{Field: "cutoff_hour", Message: fmt.Sprintf("must be 0-23, got %d", p.CutoffHour)}
	}
	if p.DebtDays < 0 {
		return &generic.ValidationError{Field: "debt_days", Message: "must not be negative"}
	}
	if !p.ExemptionOverlap.Valid() {
		return &generic.ValidationError{Field: "exemption_overlap", Message: fmt.Sprintf("unknown mode %q", p.ExemptionOverlap)}
	}
	if p.DefaultDailyRate.IsNegative() {
		return &generic.ValidationError{Field: "default_daily_rate", Message: "must not be negative"}
	}
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return &generic.ValidationError{Field: "time_zone", Message: err.Error()}
	}
	p.location = loc
	return nil
}

// Location is the deployment time zone. UTC until Validate has resolved it.
func (p Policy) Location() *time.Location {
	if p.location == nil {
		return time.UTC
	}
	return p.location
}

// LocationFor returns the vehicle's own zone when it has one, else the
// deployment zone. An unknown vehicle zone falls back to the deployment zone.
func (p Policy) LocationFor(v *Vehicle) *time.Location {
	if v != nil && v.TimeZone != "" {
		if loc, err := time.LoadLocation(v.TimeZone); err == nil {
			return loc
		}
	}
	return p.Location()
}
