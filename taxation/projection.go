/*
projection.go - Forward look at a vehicle's debt

PURPOSE:
  Answers the questions a field agent asks at the roadside: how much clears
  the debt, how much gets the vehicle back on the road, and when will it be
  taken off the road if nothing is paid?

ASSUMPTIONS:
  The projection extends the current snapshot one billable day at a time.
  It assumes no further payments and no exemption days after as-of. It is
  advisory only; status is always re-derived from the snapshot.

FORMULAS:
  to_clear     = max(-balance, 0)
  to_operate   = max(debt_limit - balance, 0)     (non-zero only when inactive)
  surplus      = max(excused_days - chargeable_days, 0)
  days_left    = floor((balance - debt_limit) / daily_rate) + 1 + surplus
  inactive_on  = as_of + days_left

  Excused days beyond the chargeable count are clamped out of billing, so
  each one postpones accrual by a day.

  Rate 150, 7 debt days, balance -450 as of Mar 3: -1050 is still OWING on
  Mar 7, -1200 on Mar 8 is not, so days_left = 5 and inactive_on = Mar 8.

SEE ALSO:
  - compliance.go: The snapshot being projected
*/
package taxation

import "github.com/hassan3xl/taxation-backend/generic"

// DebtProjection is derived from a snapshot. Nil day fields mean the vehicle
// is not accruing and will never become inactive on its own.
type DebtProjection struct {
	AmountToClear     generic.Amount
	AmountToOperate   generic.Amount
	DaysUntilInactive *int
	InactiveOn        *generic.Date
}

// Project extends snap for v. v must be the vehicle snap was computed for.
func (p Pipeline) Project(v *Vehicle, snap ComplianceSnapshot) DebtProjection {
	zero := snap.Balance.Zero()
	proj := DebtProjection{AmountToClear: zero, AmountToOperate: zero}

	if snap.Balance.IsNegative() {
		proj.AmountToClear = snap.Balance.Neg()
	}

	if snap.Status == StatusInactiveDueToDebt {
		proj.AmountToOperate = snap.DebtLimit.Sub(snap.Balance)
		days := 0
		asOf := snap.AsOf
		proj.DaysUntilInactive = &days
		proj.InactiveOn = &asOf
		return proj
	}

	accruing := v.IsActive && v.ActivatedAt != nil && snap.DailyRate.IsPositive()
	if !accruing {
		return proj
	}

	headroom := snap.Balance.Sub(snap.DebtLimit)
	surplus := max(snap.ExcusedDays-snap.ChargeableDays, 0)
	days := int(headroom.Value.Div(snap.DailyRate.Value).Floor().IntPart()) + 1 + surplus
	on := snap.AsOf.AddDays(days)
	proj.DaysUntilInactive = &days
	proj.InactiveOn = &on
	return proj
}
