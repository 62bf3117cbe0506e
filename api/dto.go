/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the taxation domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Money is always a decimal string ("150.00"), on the way in and out.
  Clients that send a JSON number are rejected, so no value ever passes
  through a float.

DATES:
  Calendar dates are "YYYY-MM-DD". Instants are RFC 3339.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON type
*/
package api

import (
	"time"

	"github.com/hassan3xl/taxation-backend/factory"
	"github.com/hassan3xl/taxation-backend/store/sqlite"
	"github.com/hassan3xl/taxation-backend/taxation"
)

// =============================================================================
// VEHICLES
// =============================================================================

type VehicleDTO struct {
	ID          string     `json:"id"`
	PlateNumber string     `json:"plate_number"`
	OwnerName   string     `json:"owner_name"`
	PhoneNumber string     `json:"phone_number,omitempty"`
	DailyRate   string     `json:"daily_rate"`
	Currency    string     `json:"currency"`
	TimeZone    string     `json:"time_zone,omitempty"`
	IsActive    bool       `json:"is_active"`
	IsApproved  bool       `json:"is_approved"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type RegisterVehicleRequest struct {
	PlateNumber string `json:"plate_number"`
	OwnerName   string `json:"owner_name"`
	PhoneNumber string `json:"phone_number"`
	DailyRate   string `json:"daily_rate,omitempty"`
	TimeZone    string `json:"time_zone,omitempty"`
}

type SetActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

// VehicleSummaryDTO is one row of the vehicle list.
type VehicleSummaryDTO struct {
	VehicleDTO
	Status  string `json:"status"`
	Balance string `json:"balance"`
}

// =============================================================================
// COMPLIANCE
// =============================================================================

type ComplianceDTO struct {
	VehicleID       string `json:"vehicle_id"`
	AsOf            string `json:"as_of"`
	ChargeableDays  int    `json:"chargeable_days"`
	ExcusedDays     int    `json:"excused_days"`
	BillableDays    int    `json:"billable_days"`
	DailyRate       string `json:"daily_rate"`
	ExpectedRevenue string `json:"expected_revenue"`
	TotalPaid       string `json:"total_paid"`
	Balance         string `json:"balance"`
	DebtLimit       string `json:"debt_limit"`
	Status          string `json:"status"`
}

type VehicleStatusDTO struct {
	Vehicle         VehicleDTO    `json:"vehicle"`
	Compliance      ComplianceDTO `json:"compliance"`
	Projection      ProjectionDTO `json:"projection"`
	RecentPayments  []PaymentDTO  `json:"recent_payments"`
	ActiveExemption *ExemptionDTO `json:"active_exemption,omitempty"`
}

// ProjectionDTO assumes no further payments or exemptions.
type ProjectionDTO struct {
	AmountToClear     string `json:"amount_to_clear"`
	AmountToOperate   string `json:"amount_to_operate"`
	DaysUntilInactive *int   `json:"days_until_inactive,omitempty"`
	InactiveOn        string `json:"inactive_on,omitempty"`
}

// PublicStatusDTO is what an unauthenticated plate lookup reveals.
type PublicStatusDTO struct {
	PlateNumber string `json:"plate_number"`
	Status      string `json:"status"`
	Balance     string `json:"balance"`
	AsOf        string `json:"as_of"`
	Exempted    bool   `json:"exempted"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

type PaymentDTO struct {
	ID          string    `json:"id"`
	VehicleID   string    `json:"vehicle_id"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Method      string    `json:"payment_method"`
	CollectedBy string    `json:"collected_by,omitempty"`
	Reference   string    `json:"reference,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type RecordPaymentRequest struct {
	Amount      string `json:"amount"`
	Method      string `json:"payment_method"`
	CollectedBy string `json:"collected_by,omitempty"`
	Reference   string `json:"reference,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// =============================================================================
// EXEMPTIONS
// =============================================================================

type ExemptionDTO struct {
	ID          string     `json:"id"`
	VehicleID   string     `json:"vehicle_id"`
	StartDate   string     `json:"start_date"`
	EndDate     string     `json:"end_date"`
	Days        int        `json:"days"`
	Reason      string     `json:"reason"`
	Description string     `json:"description,omitempty"`
	State       string     `json:"state"`
	SubmittedBy string     `json:"submitted_by,omitempty"`
	ApprovedBy  string     `json:"approved_by,omitempty"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
}

type SubmitExemptionRequest struct {
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Reason      string `json:"reason"`
	Description string `json:"description,omitempty"`
}

type DecisionRequest struct {
	Action string `json:"action"`
}

// =============================================================================
// POLICY / SWEEPS / SCENARIOS
// =============================================================================

// PolicyDTO wraps the policy document with its stored version.
type PolicyDTO struct {
	factory.PolicyJSON
	Version int `json:"version,omitempty"`
}

type SweepRunDTO struct {
	ID            string     `json:"id"`
	AsOf          string     `json:"as_of"`
	Status        string     `json:"status"`
	ActiveCount   int        `json:"active_count"`
	OwingCount    int        `json:"owing_count"`
	InactiveCount int        `json:"inactive_count"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toVehicleDTO(v taxation.Vehicle) VehicleDTO {
	return VehicleDTO{
		ID:          string(v.ID),
		PlateNumber: v.PlateNumber,
		OwnerName:   v.OwnerName,
		PhoneNumber: v.PhoneNumber,
		DailyRate:   v.DailyRate.String(),
		Currency:    string(v.DailyRate.Currency),
		TimeZone:    v.TimeZone,
		IsActive:    v.IsActive,
		IsApproved:  v.IsApproved,
		ActivatedAt: v.ActivatedAt,
		CreatedAt:   v.CreatedAt,
	}
}

func toComplianceDTO(s taxation.ComplianceSnapshot) ComplianceDTO {
	return ComplianceDTO{
		VehicleID:       string(s.VehicleID),
		AsOf:            s.AsOf.String(),
		ChargeableDays:  s.ChargeableDays,
		ExcusedDays:     s.ExcusedDays,
		BillableDays:    s.BillableDays,
		DailyRate:       s.DailyRate.String(),
		ExpectedRevenue: s.ExpectedRevenue.String(),
		TotalPaid:       s.TotalPaid.String(),
		Balance:         s.Balance.String(),
		DebtLimit:       s.DebtLimit.String(),
		Status:          string(s.Status),
	}
}

func toPaymentDTO(p taxation.Payment) PaymentDTO {
	return PaymentDTO{
		ID:          string(p.ID),
		VehicleID:   string(p.VehicleID),
		Amount:      p.Amount.String(),
		Currency:    string(p.Amount.Currency),
		Method:      string(p.Method),
		CollectedBy: p.CollectedBy,
		Reference:   p.Reference,
		Notes:       p.Notes,
		Timestamp:   p.Timestamp,
	}
}

func toPaymentDTOs(payments []taxation.Payment) []PaymentDTO {
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos
}

func toExemptionDTO(e taxation.Exemption) ExemptionDTO {
	return ExemptionDTO{
		ID:          string(e.ID),
		VehicleID:   string(e.VehicleID),
		StartDate:   e.Period.Start.String(),
		EndDate:     e.Period.End.String(),
		Days:        e.Period.Days(),
		Reason:      string(e.Reason),
		Description: e.Description,
		State:       string(e.State),
		SubmittedBy: e.SubmittedBy,
		ApprovedBy:  e.ApprovedBy,
		DecidedAt:   e.DecidedAt,
		Version:     e.Version,
		CreatedAt:   e.CreatedAt,
	}
}

func toExemptionDTOs(exemptions []taxation.Exemption) []ExemptionDTO {
	dtos := make([]ExemptionDTO, len(exemptions))
	for i, e := range exemptions {
		dtos[i] = toExemptionDTO(e)
	}
	return dtos
}

func toVehicleStatusDTO(st *taxation.VehicleStatus) VehicleStatusDTO {
	dto := VehicleStatusDTO{
		Vehicle:        toVehicleDTO(st.Vehicle),
		Compliance:     toComplianceDTO(st.Snapshot),
		Projection:     toProjectionDTO(st.Projection),
		RecentPayments: toPaymentDTOs(st.RecentPayments),
	}
	if st.ActiveExemption != nil {
		e := toExemptionDTO(*st.ActiveExemption)
		dto.ActiveExemption = &e
	}
	return dto
}

func toProjectionDTO(p taxation.DebtProjection) ProjectionDTO {
	dto := ProjectionDTO{
		AmountToClear:     p.AmountToClear.String(),
		AmountToOperate:   p.AmountToOperate.String(),
		DaysUntilInactive: p.DaysUntilInactive,
	}
	if p.InactiveOn != nil {
		dto.InactiveOn = p.InactiveOn.String()
	}
	return dto
}

func toSweepRunDTO(r sqlite.SweepRun) SweepRunDTO {
	return SweepRunDTO{
		ID:            r.ID,
		AsOf:          r.AsOf.String(),
		Status:        r.Status,
		ActiveCount:   r.ActiveCount,
		OwingCount:    r.OwingCount,
		InactiveCount: r.InactiveCount,
		Error:         r.Error,
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
	}
}
