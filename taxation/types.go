// Package taxation implements the vehicle tax accrual and compliance engine.
// It uses the generic primitives with vehicle, payment and exemption records.
package taxation

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hassan3xl/taxation-backend/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type VehicleID string
type PaymentID string
type ExemptionID string

func NewVehicleID() VehicleID     { return VehicleID(uuid.NewString()) }
func NewPaymentID() PaymentID     { return PaymentID(uuid.NewString()) }
func NewExemptionID() ExemptionID { return ExemptionID(uuid.NewString()) }

// =============================================================================
// VEHICLE
// =============================================================================

// Vehicle is a registered commercial vehicle. Tax accrues from ActivatedAt,
// which is stamped once, the first time IsActive and IsApproved both hold.
type Vehicle struct {
	ID          VehicleID
	PlateNumber string
	OwnerName   string
	PhoneNumber string
	DailyRate   generic.Amount
	TimeZone    string // IANA name; empty means the deployment zone
	IsActive    bool
	IsApproved  bool
	ActivatedAt *time.Time
	CreatedAt   time.Time
}

// ShouldActivate reports whether the activation stamp is due.
func (v *Vehicle) ShouldActivate() bool {
	return v.IsActive && v.IsApproved && v.ActivatedAt == nil
}

// NormalizePlate upper-cases and trims a plate so "yl-123 " and "YL-123" match.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// =============================================================================
// PAYMENT
// =============================================================================

type PaymentMethod string

const (
	MethodAgent  PaymentMethod = "agent"
	MethodOnline PaymentMethod = "online"
	MethodBank   PaymentMethod = "bank"
	MethodUSSD   PaymentMethod = "ussd"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodAgent, MethodOnline, MethodBank, MethodUSSD:
		return true
	}
	return false
}

// Payment is an append-only record of money received for a vehicle.
type Payment struct {
	ID          PaymentID
	VehicleID   VehicleID
	Amount      generic.Amount
	Method      PaymentMethod
	CollectedBy string // agent ID for cash collections
	Reference   string
	Notes       string
	Timestamp   time.Time
}

// EntryAmount implements generic.Entry.
func (p Payment) EntryAmount() generic.Amount { return p.Amount }

var _ generic.Entry = Payment{}

// =============================================================================
// EXEMPTION
// =============================================================================

type ExemptionReason string

const (
	ReasonSickness   ExemptionReason = "sickness"
	ReasonMechanical ExemptionReason = "mechanical"
	ReasonTheft      ExemptionReason = "theft"
	ReasonAccident   ExemptionReason = "accident"
	ReasonOther      ExemptionReason = "other"
)

func (r ExemptionReason) Valid() bool {
	switch r {
	case ReasonSickness, ReasonMechanical, ReasonTheft, ReasonAccident, ReasonOther:
		return true
	}
	return false
}

type ExemptionState string

const (
	ExemptionPending  ExemptionState = "pending"
	ExemptionApproved ExemptionState = "approved"
	ExemptionRejected ExemptionState = "rejected"
)

// Exemption excuses a vehicle from tax over an inclusive date range, once an
// admin has approved it.
type Exemption struct {
	ID          ExemptionID
	VehicleID   VehicleID
	Period      generic.Period
	Reason      ExemptionReason
	Description string
	State       ExemptionState
	SubmittedBy string
	ApprovedBy  string // set only on approval
	DecidedAt   *time.Time
	Version     int // bumped on every state change
	CreatedAt   time.Time
}

func (e *Exemption) IsApproved() bool { return e.State == ExemptionApproved }
