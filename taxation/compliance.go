/*
compliance.go - Balance and compliance classification

PURPOSE:
  Combines the accrual, exemption and payment figures into a balance and a
  compliance state that decides whether a vehicle may keep operating.

FORMULAS:
  billable  = max(chargeable - excused, 0)       (0 if the vehicle is inactive)
  expected  = daily_rate * billable
  balance   = total_paid - expected               (negative => owes tax)
  debt_limit = -(daily_rate * DebtDays)

CLASSIFICATION (evaluated in order):
  1. balance >= 0          => ACTIVE
  2. balance <  debt_limit => INACTIVE_DUE_TO_DEBT
  3. otherwise             => OWING

  With daily_rate 100 and 7 debt days: -700 is OWING, -700.01 is
  INACTIVE_DUE_TO_DEBT. A zero daily rate is always ACTIVE.

PIPELINE:
  Pipeline wires the four calculators together over value inputs. It never
  touches a store, so every stage can be tested on plain structs. Snapshots
  are recomputed on every read and must not be cached across a payment or an
  exemption decision.

SEE ALSO:
  - accrual.go, exemption.go, ledger.go: The stages
  - service.go: Fetches records and runs the pipeline
*/
package taxation

import "github.com/hassan3xl/taxation-backend/generic"

type Status string

const (
	StatusActive            Status = "ACTIVE"
	StatusOwing             Status = "OWING"
	StatusInactiveDueToDebt Status = "INACTIVE_DUE_TO_DEBT"
)

// ComplianceInput is everything the classifier needs, already resolved.
type ComplianceInput struct {
	DailyRate      generic.Amount
	IsActive       bool
	ChargeableDays int
	ExcusedDays    int
	TotalPaid      generic.Amount
}

// ComplianceSnapshot is a derived, never persisted, view of a vehicle's tax
// position on a given day.
type ComplianceSnapshot struct {
	VehicleID       VehicleID
	AsOf            generic.Date
	ChargeableDays  int
	ExcusedDays     int
	BillableDays    int
	DailyRate       generic.Amount
	ExpectedRevenue generic.Amount
	TotalPaid       generic.Amount
	Balance         generic.Amount
	DebtLimit       generic.Amount
	Status          Status
}

// ComplianceClassifier applies the debt-threshold rule.
type ComplianceClassifier struct {
	DebtDays int64
}

func NewComplianceClassifier(policy Policy) ComplianceClassifier {
	return ComplianceClassifier{DebtDays: policy.DebtDays}
}

// Classify derives expected revenue, balance and status.
func (c ComplianceClassifier) Classify(in ComplianceInput) ComplianceSnapshot {
	billable := 0
	if in.IsActive {
		billable = max(in.ChargeableDays-in.ExcusedDays, 0)
	}
	expected := in.DailyRate.MulInt(int64(billable))
	balance := in.TotalPaid.Sub(expected)
	debtLimit := c.DebtLimit(in.DailyRate)

	return ComplianceSnapshot{
		ChargeableDays:  in.ChargeableDays,
		ExcusedDays:     in.ExcusedDays,
		BillableDays:    billable,
		DailyRate:       in.DailyRate,
		ExpectedRevenue: expected,
		TotalPaid:       in.TotalPaid,
		Balance:         balance,
		DebtLimit:       debtLimit,
		Status:          c.status(balance, debtLimit),
	}
}

// DebtLimit is the most negative balance still classified as OWING.
func (c ComplianceClassifier) DebtLimit(dailyRate generic.Amount) generic.Amount {
	return dailyRate.MulInt(c.DebtDays).Neg()
}

func (c ComplianceClassifier) status(balance, debtLimit generic.Amount) Status {
	switch {
	case !balance.IsNegative():
		return StatusActive
	case balance.LessThan(debtLimit):
		return StatusInactiveDueToDebt
	default:
		return StatusOwing
	}
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline runs AccrualCalculator -> ExemptionLedger -> PaymentLedger ->
// ComplianceClassifier over records the caller has already loaded.
type Pipeline struct {
	Policy     Policy
	Accrual    AccrualCalculator
	Exemptions ExemptionLedger
	Payments   PaymentLedger
	Classifier ComplianceClassifier
}

func NewPipeline(policy Policy) Pipeline {
	return Pipeline{
		Policy:     policy,
		Accrual:    NewAccrualCalculator(policy),
		Exemptions: NewExemptionLedger(policy),
		Payments:   NewPaymentLedger(policy),
		Classifier: NewComplianceClassifier(policy),
	}
}

// Snapshot computes the compliance snapshot of v as of asOf.
func (p Pipeline) Snapshot(v *Vehicle, payments []Payment, exemptions []Exemption, asOf generic.Date) ComplianceSnapshot {
	snap := p.Classifier.Classify(ComplianceInput{
		DailyRate:      v.DailyRate,
		IsActive:       v.IsActive,
		ChargeableDays: p.Accrual.ChargeableDays(v.ActivatedAt, asOf, p.Policy.LocationFor(v)),
		ExcusedDays:    p.Exemptions.ExcusedDays(exemptions, asOf),
		TotalPaid:      p.Payments.TotalPaid(payments),
	})
	snap.VehicleID = v.ID
	snap.AsOf = asOf
	return snap
}
