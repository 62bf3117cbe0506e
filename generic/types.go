/*
Package generic provides the domain-agnostic building blocks of the tax engine.

PURPOSE:
  This package contains the value types every other package is built on:
  exact currency amounts, calendar dates, inclusive date periods, actors and
  the error taxonomy. Nothing in here knows about vehicles, payments or
  exemptions; the taxation package layers those on top.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A currency quantity backed by decimal.Decimal
  - Currency: ISO-style currency code carried alongside every amount
  - Actor/Role: Who is performing an operation (admin, agent, taxpayer)

DESIGN PRINCIPLES:
  1. Precision: Amounts are decimal end-to-end. There is no float64
     constructor, so binary floating point can never leak into a bill.
  2. Type Safety: Roles and currencies are distinct string types.
  3. Value semantics: Amount methods never mutate the receiver.

USAGE:
  rate := generic.MustParseAmount("150.00", generic.CurrencyNGN)
  owed := rate.MulInt(3) // 450.00 NGN

SEE ALSO:
  - time.go: Calendar dates
  - period.go: Inclusive date ranges
  - errors.go: Error taxonomy
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Exact currency quantity
// =============================================================================

type Amount struct {
	Value    decimal.Decimal
	Currency Currency
}

type Currency string

const (
	CurrencyNGN Currency = "NGN"
	CurrencyUSD Currency = "USD"
)

// NewAmountFromInt builds an amount from whole currency units.
func NewAmountFromInt(value int64, currency Currency) Amount {
	return Amount{Value: decimal.NewFromInt(value), Currency: currency}
}

// NewAmount wraps an existing decimal value.
func NewAmount(value decimal.Decimal, currency Currency) Amount {
	return Amount{Value: value, Currency: currency}
}

// ZeroAmount is the additive identity for a currency.
func ZeroAmount(currency Currency) Amount {
	return Amount{Value: decimal.Zero, Currency: currency}
}

// ParseAmount parses a decimal string such as "150.00".
func ParseAmount(s string, currency Currency) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Amount{Value: d, Currency: currency}, nil
}

// MustParseAmount is ParseAmount for literals known to be valid.
func MustParseAmount(s string, currency Currency) Amount {
	a, err := ParseAmount(s, currency)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Currency: a.Currency} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Currency: a.Currency} }
func (a Amount) MulInt(n int64) Amount        { return a.Mul(decimal.NewFromInt(n)) }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Currency: a.Currency} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) GreaterThanOrEqual(b Amount) bool {
	return a.Value.GreaterThanOrEqual(b.Value)
}

// String renders the amount with two decimal places, e.g. "-450.00".
func (a Amount) String() string { return a.Value.StringFixed(2) }

// =============================================================================
// ACTORS
// =============================================================================

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleAgent    Role = "agent"
	RoleTaxPayer Role = "taxpayer"
	RoleSystem   Role = "system"
)

// IsValidRole reports whether r is one of the known roles.
func IsValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleAgent, RoleTaxPayer, RoleSystem:
		return true
	default:
		return false
	}
}

// Actor is the caller of a mutating operation.
type Actor struct {
	ID   string
	Role Role
}

// SystemActor is used by scheduled jobs and seeding.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// IsStaff reports whether the actor works for the tax authority.
func (a Actor) IsStaff() bool { return a.Role == RoleAdmin || a.Role == RoleAgent }

func (a Actor) String() string { return string(a.Role) + ":" + a.ID }
