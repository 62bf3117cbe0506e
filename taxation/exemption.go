package taxation

import "github.com/hassan3xl/taxation-backend/generic"

// =============================================================================
// EXEMPTION LEDGER - Excused days from approved exemption periods
// =============================================================================

// ExemptionLedger resolves a vehicle's exemption periods into excused days.
//
// Only approved periods count. Each period is capped at the as-of date so a
// future-dated span is not credited before it happens. How overlapping
// periods combine is set by Overlap (see policies.go).
type ExemptionLedger struct {
	Overlap OverlapMode
}

func NewExemptionLedger(policy Policy) ExemptionLedger {
	return ExemptionLedger{Overlap: policy.ExemptionOverlap}
}

// ExcusedDays returns the number of excused days as of asOf.
func (l ExemptionLedger) ExcusedDays(exemptions []Exemption, asOf generic.Date) int {
	periods := ApprovedPeriods(exemptions, asOf)
	if l.Overlap == OverlapUnion {
		periods = generic.MergePeriods(periods)
	}
	return generic.TotalDays(periods)
}

// ApprovedPeriods returns the approved periods clipped to asOf. Periods that
// start after asOf are dropped.
func ApprovedPeriods(exemptions []Exemption, asOf generic.Date) []generic.Period {
	var periods []generic.Period
	for _, e := range exemptions {
		if !e.IsApproved() {
			continue
		}
		clipped := e.Period.ClipEnd(asOf)
		if clipped.IsEmpty() {
			continue
		}
		periods = append(periods, clipped)
	}
	return periods
}

// ActiveOn returns the first approved exemption whose period contains day.
func ActiveOn(exemptions []Exemption, day generic.Date) *Exemption {
	for i := range exemptions {
		if exemptions[i].IsApproved() && exemptions[i].Period.Contains(day) {
			return &exemptions[i]
		}
	}
	return nil
}
