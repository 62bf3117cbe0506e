/*
ledger.go - Totals over append-only records

PURPOSE:
  Balances are never stored. They are recomputed by folding the records that
  make them up, so there is no separate figure that can drift out of sync.
  This file holds the fold; domain packages decide which records feed it.

CRITICAL INVARIANTS:
  1. EXACT: Totals are decimal sums, never float accumulations.
  2. TOTAL: An empty ledger sums to zero in the requested currency.

SEE ALSO:
  - taxation/ledger.go: PaymentLedger built on Total
*/
package generic

// Entry is a ledger record that carries an amount.
type Entry interface {
	EntryAmount() Amount
}

// Total sums the amounts of entries. The result is in currency regardless of
// the entries' own currency tags.
func Total[E Entry](entries []E, currency Currency) Amount {
	total := ZeroAmount(currency)
	for _, e := range entries {
		total = total.Add(e.EntryAmount())
	}
	return total
}
