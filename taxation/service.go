/*
service.go - Entry point of the tax engine

PURPOSE:
  Service is what the HTTP layer, the scheduler and the CLI tools call. It
  loads records from the store, runs the pure pipeline over them and performs
  the few writes the engine owns: payment appends, vehicle registration and
  activation, and exemption decisions (delegated to ExemptionWorkflow).

OPERATIONS:
  Compliance:
    GetComplianceSnapshot   Balance and status of one vehicle as of a date
    VehicleStatus           Snapshot + last payments + active exemption
    StatusByPlate           Same, looked up by plate number
    SweepCompliance         Classify every vehicle, count by status

  Payments:
    RecordPayment           Append a payment (staff or system)

  Vehicles:
    RegisterVehicle         Agents register pending vehicles, admins active ones
    ApproveVehicle          Admin approval, stamps activation once
    SetVehicleActive        Admin toggle, stamps activation once

  Exemptions:
    SubmitExemption, DecideExemption, DeleteExemption,
    ListPendingExemptions, VehicleExemptions

CLOCK:
  Now is injectable. Activation stamps and decision times come from it, so
  tests can pin the wall clock.

SEE ALSO:
  - compliance.go: Pipeline
  - request.go: ExemptionWorkflow
  - store.go: TxStore
*/
package taxation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hassan3xl/taxation-backend/generic"
	"github.com/sirupsen/logrus"
)

// RecentPaymentsLimit is how many payments VehicleStatus returns.
const RecentPaymentsLimit = 3

type Service struct {
	Store      TxStore
	Policy     Policy
	Pipeline   Pipeline
	Exemptions *ExemptionWorkflow
	Log        logrus.FieldLogger
	Now        func() time.Time
}

// NewService builds a service over a validated policy.
func NewService(store TxStore, policy Policy, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Service{
		Store:    store,
		Policy:   policy,
		Pipeline: NewPipeline(policy),
		Log:      log,
		Now:      time.Now,
	}
	s.Exemptions = &ExemptionWorkflow{
		Store: store,
		Log:   log,
		Now:   func() time.Time { return s.Now() },
	}
	return s
}

// Today is the current calendar date in the deployment zone.
func (s *Service) Today() generic.Date {
	return generic.DateOf(s.Now(), s.Policy.Location())
}

// TodayFor is the current calendar date in the zone v is taxed in.
func (s *Service) TodayFor(v *Vehicle) generic.Date {
	return generic.DateOf(s.Now(), s.Policy.LocationFor(v))
}

// dateFor resolves a zero as-of date to the vehicle's own today.
func (s *Service) dateFor(v *Vehicle, asOf generic.Date) generic.Date {
	if asOf.IsZero() {
		return s.TodayFor(v)
	}
	return asOf
}

// =============================================================================
// COMPLIANCE
// =============================================================================

// GetComplianceSnapshot computes the vehicle's balance and status as of asOf.
// A zero asOf means today in the vehicle's zone. Nothing is cached: every
// call reads the current payments and exemptions.
func (s *Service) GetComplianceSnapshot(ctx context.Context, vehicleID VehicleID, asOf generic.Date) (ComplianceSnapshot, error) {
	v, payments, exemptions, err := s.load(ctx, s.Store, vehicleID)
	if err != nil {
		return ComplianceSnapshot{}, err
	}
	return s.Pipeline.Snapshot(v, payments, exemptions, s.dateFor(v, asOf)), nil
}

// VehicleStatus is the full view of one vehicle.
type VehicleStatus struct {
	Vehicle         Vehicle
	Snapshot        ComplianceSnapshot
	Projection      DebtProjection
	RecentPayments  []Payment
	ActiveExemption *Exemption
}

func (s *Service) VehicleStatus(ctx context.Context, vehicleID VehicleID, asOf generic.Date) (*VehicleStatus, error) {
	v, payments, exemptions, err := s.load(ctx, s.Store, vehicleID)
	if err != nil {
		return nil, err
	}
	return s.status(v, payments, exemptions, asOf), nil
}

// StatusByPlate is the public lookup. The plate is normalized first.
func (s *Service) StatusByPlate(ctx context.Context, plate string, asOf generic.Date) (*VehicleStatus, error) {
	plate = NormalizePlate(plate)
	if plate == "" {
		return nil, &generic.ValidationError{Field: "plate_number", Message: "is required"}
	}
	v, err := s.Store.GetVehicleByPlate(ctx, plate)
	if err != nil {
		return nil, err
	}
	return s.VehicleStatus(ctx, v.ID, asOf)
}

func (s *Service) status(v *Vehicle, payments []Payment, exemptions []Exemption, asOf generic.Date) *VehicleStatus {
	asOf = s.dateFor(v, asOf)
	snap := s.Pipeline.Snapshot(v, payments, exemptions, asOf)
	st := &VehicleStatus{
		Vehicle:        *v,
		Snapshot:       snap,
		Projection:     s.Pipeline.Project(v, snap),
		RecentPayments: RecentPayments(payments, RecentPaymentsLimit),
	}
	if active := ActiveOn(exemptions, asOf); active != nil {
		e := *active
		st.ActiveExemption = &e
	}
	return st
}

// SweepResult summarizes a compliance sweep.
type SweepResult struct {
	AsOf     generic.Date
	Counts   map[Status]int
	Inactive []VehicleID // vehicles classified INACTIVE_DUE_TO_DEBT
}

// SweepCompliance classifies every registered vehicle. A zero asOf sweeps
// each vehicle at its own today and reports the deployment date.
func (s *Service) SweepCompliance(ctx context.Context, asOf generic.Date) (*SweepResult, error) {
	vehicles, err := s.Store.ListVehicles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}

	result := &SweepResult{
		AsOf: s.dateFor(nil, asOf),
		Counts: map[Status]int{
			StatusActive:            0,
			StatusOwing:             0,
			StatusInactiveDueToDebt: 0,
		},
	}
	for i := range vehicles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v := &vehicles[i]
		payments, err := s.Store.LoadPayments(ctx, v.ID)
		if err != nil {
			return nil, fmt.Errorf("load payments for %s: %w", v.ID, err)
		}
		exemptions, err := s.Store.LoadExemptions(ctx, v.ID)
		if err != nil {
			return nil, fmt.Errorf("load exemptions for %s: %w", v.ID, err)
		}
		snap := s.Pipeline.Snapshot(v, payments, exemptions, s.dateFor(v, asOf))
		result.Counts[snap.Status]++
		if snap.Status == StatusInactiveDueToDebt {
			result.Inactive = append(result.Inactive, v.ID)
		}
	}
	return result, nil
}

func (s *Service) load(ctx context.Context, st Store, vehicleID VehicleID) (*Vehicle, []Payment, []Exemption, error) {
	v, err := st.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, nil, nil, err
	}
	payments, err := st.LoadPayments(ctx, vehicleID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load payments: %w", err)
	}
	exemptions, err := st.LoadExemptions(ctx, vehicleID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load exemptions: %w", err)
	}
	return v, payments, exemptions, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentRequest carries a payment and its optional bookkeeping fields.
type PaymentRequest struct {
	VehicleID   VehicleID
	Amount      generic.Amount
	Method      PaymentMethod
	CollectedBy string
	Reference   string
	Notes       string
}

// RecordPayment appends a payment and returns its ID.
func (s *Service) RecordPayment(ctx context.Context, vehicleID VehicleID, amount generic.Amount, method PaymentMethod, collector string, actor generic.Actor) (PaymentID, error) {
	p, err := s.SubmitPayment(ctx, PaymentRequest{
		VehicleID:   vehicleID,
		Amount:      amount,
		Method:      method,
		CollectedBy: collector,
	}, actor)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// SubmitPayment is RecordPayment with reference and notes.
func (s *Service) SubmitPayment(ctx context.Context, req PaymentRequest, actor generic.Actor) (*Payment, error) {
	if !actor.IsStaff() && actor.Role != generic.RoleSystem {
		return nil, &generic.PermissionError{Actor: actor, Action: "record payments"}
	}
	if req.Amount.IsNegative() {
		return nil, &generic.ValidationError{Field: "amount", Message: "must not be negative"}
	}
	if req.Amount.Currency != "" && req.Amount.Currency != s.Policy.Currency {
		return nil, &generic.ValidationError{Field: "amount", Message: fmt.Sprintf("currency %s does not match %s", req.Amount.Currency, s.Policy.Currency)}
	}
	if !req.Method.Valid() {
		return nil, &generic.ValidationError{Field: "payment_method", Message: fmt.Sprintf("unknown method %q", req.Method)}
	}
	collector := req.CollectedBy
	if collector == "" && req.Method == MethodAgent {
		collector = actor.ID
	}

	p := Payment{
		ID:          NewPaymentID(),
		VehicleID:   req.VehicleID,
		Amount:      generic.NewAmount(req.Amount.Value, s.Policy.Currency),
		Method:      req.Method,
		CollectedBy: collector,
		Reference:   req.Reference,
		Notes:       req.Notes,
		Timestamp:   s.Now().UTC(),
	}
	err := s.Store.WithTx(ctx, func(st Store) error {
		if _, err := st.GetVehicle(ctx, req.VehicleID); err != nil {
			return err
		}
		return st.AppendPayment(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"payment_id": p.ID,
		"vehicle_id": p.VehicleID,
		"amount":     p.Amount.String(),
		"method":     p.Method,
		"actor":      actor.String(),
	}).Info("payment recorded")
	return &p, nil
}

// =============================================================================
// VEHICLES
// =============================================================================

// VehicleRegistration is the input to RegisterVehicle. A nil DailyRate uses
// the policy default.
type VehicleRegistration struct {
	PlateNumber string
	OwnerName   string
	PhoneNumber string
	DailyRate   *generic.Amount
	TimeZone    string
}

// RegisterVehicle creates a vehicle. Agent registrations wait for admin
// approval; admin registrations are approved, active and activated at once.
func (s *Service) RegisterVehicle(ctx context.Context, reg VehicleRegistration, actor generic.Actor) (*Vehicle, error) {
	if !actor.IsStaff() {
		return nil, &generic.PermissionError{Actor: actor, Action: "register vehicles"}
	}
	plate := NormalizePlate(reg.PlateNumber)
	if plate == "" {
		return nil, &generic.ValidationError{Field: "plate_number", Message: "is required"}
	}
	if strings.TrimSpace(reg.OwnerName) == "" {
		return nil, &generic.ValidationError{Field: "owner_name", Message: "is required"}
	}
	rate := s.Policy.DefaultDailyRate
	if reg.DailyRate != nil {
		if reg.DailyRate.IsNegative() {
			return nil, &generic.ValidationError{Field: "daily_rate", Message: "must not be negative"}
		}
		rate = generic.NewAmount(reg.DailyRate.Value, s.Policy.Currency)
	}
	if reg.TimeZone != "" {
		if _, err := time.LoadLocation(reg.TimeZone); err != nil {
			return nil, &generic.ValidationError{Field: "time_zone", Message: err.Error()}
		}
	}

	now := s.Now()
	v := Vehicle{
		ID:          NewVehicleID(),
		PlateNumber: plate,
		OwnerName:   strings.TrimSpace(reg.OwnerName),
		PhoneNumber: strings.TrimSpace(reg.PhoneNumber),
		DailyRate:   rate,
		TimeZone:    reg.TimeZone,
		CreatedAt:   now.UTC(),
	}
	if actor.IsAdmin() {
		v.IsActive, v.IsApproved = true, true
		at := now.UTC()
		v.ActivatedAt = &at
	}

	if err := s.Store.CreateVehicle(ctx, v); err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"vehicle_id": v.ID,
		"plate":      v.PlateNumber,
		"approved":   v.IsApproved,
		"actor":      actor.String(),
	}).Info("vehicle registered")
	return &v, nil
}

// ApproveVehicle marks a vehicle approved and active.
func (s *Service) ApproveVehicle(ctx context.Context, vehicleID VehicleID, actor generic.Actor) (*Vehicle, error) {
	return s.updateFlags(ctx, vehicleID, actor, "approve vehicles", func(v *Vehicle) {
		v.IsApproved = true
		v.IsActive = true
	})
}

// SetVehicleActive toggles is_active. Deactivating stops accrual but keeps
// the activation stamp, so reactivation resumes from the original date.
func (s *Service) SetVehicleActive(ctx context.Context, vehicleID VehicleID, active bool, actor generic.Actor) (*Vehicle, error) {
	return s.updateFlags(ctx, vehicleID, actor, "change vehicle status", func(v *Vehicle) {
		v.IsActive = active
	})
}

func (s *Service) updateFlags(ctx context.Context, vehicleID VehicleID, actor generic.Actor, action string, apply func(*Vehicle)) (*Vehicle, error) {
	if !actor.IsAdmin() {
		return nil, &generic.PermissionError{Actor: actor, Action: action}
	}

	var result Vehicle
	activated := false
	err := s.Store.WithTx(ctx, func(st Store) error {
		v, err := st.GetVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}
		apply(v)
		if err := st.SetVehicleFlags(ctx, v.ID, v.IsActive, v.IsApproved); err != nil {
			return err
		}
		if v.ShouldActivate() {
			at, err := st.ActivateVehicle(ctx, v.ID, s.Now().UTC())
			if err != nil {
				return err
			}
			v.ActivatedAt = &at
			activated = true
		}
		result = *v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"vehicle_id": result.ID,
		"active":     result.IsActive,
		"approved":   result.IsApproved,
		"activated":  activated,
		"actor":      actor.String(),
	}).Info("vehicle updated")
	return &result, nil
}

// =============================================================================
// EXEMPTIONS
// =============================================================================

func (s *Service) SubmitExemption(ctx context.Context, sub ExemptionSubmission, actor generic.Actor) (ExemptionID, error) {
	e, err := s.Exemptions.Submit(ctx, sub, actor)
	if err != nil {
		return "", err
	}
	return e.ID, nil
}

func (s *Service) DecideExemption(ctx context.Context, id ExemptionID, decision Decision, actor generic.Actor) (Exemption, error) {
	e, err := s.Exemptions.Decide(ctx, id, decision, actor)
	if err != nil {
		return Exemption{}, err
	}
	return *e, nil
}

func (s *Service) DeleteExemption(ctx context.Context, id ExemptionID, actor generic.Actor) error {
	return s.Exemptions.Delete(ctx, id, actor)
}

func (s *Service) ListPendingExemptions(ctx context.Context, actor generic.Actor) ([]Exemption, error) {
	return s.Exemptions.Pending(ctx, actor)
}

// VehicleExemptions returns the vehicle's exemption history, newest start first.
func (s *Service) VehicleExemptions(ctx context.Context, vehicleID VehicleID) ([]Exemption, error) {
	if _, err := s.Store.GetVehicle(ctx, vehicleID); err != nil {
		return nil, err
	}
	return s.Store.LoadExemptions(ctx, vehicleID)
}
