/*
ledger.go - Payment ledger

PURPOSE:
  Payments are append-only. What a vehicle has paid is always the decimal sum
  of its payment records; there is no stored running total to drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No update, no void. Corrections happen outside this engine.
  2. EXACT: Sums use decimal arithmetic only.
  3. TOTAL: A vehicle with no payments has paid exactly zero.

SEE ALSO:
  - generic/ledger.go: Total
  - store.go: PaymentStore
*/
package taxation

import (
	"context"
	"fmt"
	"sort"

	"github.com/hassan3xl/taxation-backend/generic"
)

// PaymentLedger totals payments in the policy currency.
type PaymentLedger struct {
	Currency generic.Currency
}

func NewPaymentLedger(policy Policy) PaymentLedger {
	return PaymentLedger{Currency: policy.Currency}
}

// TotalPaid sums every payment amount.
func (l PaymentLedger) TotalPaid(payments []Payment) generic.Amount {
	return generic.Total(payments, l.Currency)
}

// Load reads and totals a vehicle's payments from the store.
func (l PaymentLedger) Load(ctx context.Context, store PaymentStore, vehicleID VehicleID) ([]Payment, generic.Amount, error) {
	payments, err := store.LoadPayments(ctx, vehicleID)
	if err != nil {
		return nil, generic.Amount{}, fmt.Errorf("load payments: %w", err)
	}
	return payments, l.TotalPaid(payments), nil
}

// RecentPayments returns up to n payments, newest first.
func RecentPayments(payments []Payment, n int) []Payment {
	sorted := make([]Payment, len(payments))
	copy(sorted, payments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
