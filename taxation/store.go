/*
store.go - Persistence interfaces for vehicles, payments and exemptions

PURPOSE:
  Defines the boundary between the engine and the database. The engine owns
  no state of its own: it reads these records and performs the few writes
  listed below. Implementations exist for SQLite and for memory.

KEY INTERFACES:
  VehicleStore:   Vehicle registry (create, read, flag updates, activation)
  PaymentStore:   Append-only payment records
  ExemptionStore: Exemption periods and their approval state
  TxStore:        All of the above plus atomic multi-step operations

WRITE CONTRACTS:
  - ActivateVehicle is a compare-and-set on activated_at IS NULL. The first
    caller wins; later callers get the winner's instant back, not an error.
  - AppendPayment never updates or deletes.
  - UpdateExemptionState is an optimistic-lock write: it succeeds only when
    the stored version equals expectedVersion, and bumps the version.
    A mismatch returns generic.ErrConcurrentModification.
  - Lookups of a missing record return a *generic.NotFoundError.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - taxation/store/memory.go: In-memory for tests and demos

SEE ALSO:
  - service.go: Uses these interfaces
  - request.go: Exemption workflow (WithTx + version check)
*/
package taxation

import (
	"context"
	"time"
)

// VehicleStore is the vehicle registry.
type VehicleStore interface {
	// CreateVehicle persists a new vehicle. A duplicate plate is a *generic.ConflictError.
	CreateVehicle(ctx context.Context, v Vehicle) error

	GetVehicle(ctx context.Context, id VehicleID) (*Vehicle, error)

	// GetVehicleByPlate looks up a normalized plate number.
	GetVehicleByPlate(ctx context.Context, plate string) (*Vehicle, error)

	ListVehicles(ctx context.Context) ([]Vehicle, error)

	// SetVehicleFlags overwrites is_active and is_approved.
	SetVehicleFlags(ctx context.Context, id VehicleID, isActive, isApproved bool) error

	// ActivateVehicle stamps activated_at if it is unset and returns the
	// stored activation instant.
	ActivateVehicle(ctx context.Context, id VehicleID, at time.Time) (time.Time, error)
}

// PaymentStore is append-only. No Update, no Delete.
type PaymentStore interface {
	AppendPayment(ctx context.Context, p Payment) error

	// LoadPayments returns the vehicle's payments, oldest first.
	LoadPayments(ctx context.Context, vehicleID VehicleID) ([]Payment, error)
}

// ExemptionStore holds exemption periods.
type ExemptionStore interface {
	CreateExemption(ctx context.Context, e Exemption) error
	GetExemption(ctx context.Context, id ExemptionID) (*Exemption, error)

	// LoadExemptions returns every exemption for a vehicle, newest start first.
	LoadExemptions(ctx context.Context, vehicleID VehicleID) ([]Exemption, error)

	// ListExemptionsByState returns exemptions in a state, newest created first.
	ListExemptionsByState(ctx context.Context, state ExemptionState) ([]Exemption, error)

	// UpdateExemptionState writes a decision guarded by expectedVersion.
	UpdateExemptionState(ctx context.Context, e Exemption, expectedVersion int) error

	DeleteExemption(ctx context.Context, id ExemptionID) error
}

// Store is every record the engine reads or writes.
type Store interface {
	VehicleStore
	PaymentStore
	ExemptionStore
}

// TxStore wraps Store with transaction support.
// Use this when you need atomic operations (e.g., deciding an exemption).
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
