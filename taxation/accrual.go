/*
accrual.go - Chargeable days since activation

PURPOSE:
  Tax accrues one day at a time from the moment a vehicle is activated.
  AccrualCalculator turns (activation instant, as-of date) into the number of
  chargeable calendar days before exemptions are subtracted.

RULES:
  1. No activation stamp => 0 days. The vehicle is not accruing yet.
  2. Both endpoints count: activated Mar 1, as of Mar 3 => 3 days.
  3. Late activation: if the local hour of activation is >= CutoffHour, the
     activation day itself is not billed (Mar 1 17:30, as of Mar 3 => 2 days).
  4. Never negative. An as-of date before activation yields 0.

TIME ZONES:
  "Local hour" and "activation date" are evaluated in an explicit location,
  never the process zone. Callers pass Policy.LocationFor(vehicle), and a
  missing as-of date defaults to today in that same zone (Service.TodayFor).

SEE ALSO:
  - exemption.go: Days subtracted from these
  - compliance.go: Combines both into expected revenue
*/
package taxation

import (
	"time"

	"github.com/hassan3xl/taxation-backend/generic"
)

// AccrualCalculator counts chargeable days. A zero CutoffHour treats every
// activation as late, so prefer NewAccrualCalculator.
type AccrualCalculator struct {
	CutoffHour int
}

func NewAccrualCalculator(policy Policy) AccrualCalculator {
	return AccrualCalculator{CutoffHour: policy.CutoffHour}
}

// ChargeableDays returns the days billed from activatedAt through asOf,
// inclusive, evaluated in loc.
func (c AccrualCalculator) ChargeableDays(activatedAt *time.Time, asOf generic.Date, loc *time.Location) int {
	if activatedAt == nil || activatedAt.IsZero() {
		return 0
	}
	if loc == nil {
		loc = time.UTC
	}

	local := activatedAt.In(loc)
	activationDate := generic.DateOf(local, loc)

	days := generic.DaysBetween(activationDate, asOf) + 1
	if local.Hour() >= c.CutoffHour {
		days--
	}
	return max(days, 0)
}
