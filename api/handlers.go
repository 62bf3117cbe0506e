/*
handlers.go - HTTP API handlers for the vehicle taxation system

PURPOSE:
  Exposes the taxation service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every rule to taxation.Service.

ENDPOINTS:
  Vehicles:
    GET    /api/vehicles                      List vehicles with status (staff)
    POST   /api/vehicles                      Register a vehicle (staff)
    GET    /api/vehicles/{id}                 Vehicle status view
    GET    /api/vehicles/{id}/compliance      Compliance snapshot (?as_of=)
    POST   /api/vehicles/{id}/approve         Approve and activate (admin)
    POST   /api/vehicles/{id}/active          Toggle is_active (admin)

  Payments:
    GET    /api/vehicles/{id}/payments        Payment history and total
    POST   /api/vehicles/{id}/payments        Record a payment (staff)

  Exemptions:
    GET    /api/vehicles/{id}/exemptions      Exemption history
    POST   /api/vehicles/{id}/exemptions      Submit an exemption (staff)
    GET    /api/exemptions/pending            Pending queue (admin)
    POST   /api/exemptions/{id}/approve       Approve (admin)
    POST   /api/exemptions/{id}/reject        Reject (admin)
    POST   /api/exemptions/{id}/decide        {"action": "approve"|"reject"}
    DELETE /api/exemptions/{id}               Delete (admin)

  Public:
    GET    /api/public/status/{plate}         Plate lookup, no token

ERROR HANDLING:
  Errors are returned as JSON with a status derived from the error class:
  - 400: generic.ErrValidation, malformed body
  - 401: missing or invalid token (auth middleware)
  - 403: generic.ErrPermissionDenied
  - 404: generic.ErrNotFound
  - 409: generic.ErrConflict, generic.ErrConcurrentModification
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/hassan3xl/taxation-backend/auth"
	"github.com/hassan3xl/taxation-backend/factory"
	"github.com/hassan3xl/taxation-backend/generic"
	"github.com/hassan3xl/taxation-backend/store/sqlite"
	"github.com/hassan3xl/taxation-backend/taxation"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service       *taxation.Service
	Store         *sqlite.Store
	PolicyFactory *factory.PolicyFactory
	Sweeper       *ComplianceScheduler
	Log           logrus.FieldLogger

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a handler. The service must be backed by store.
func NewHandler(svc *taxation.Service, store *sqlite.Store, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Service:       svc,
		Store:         store,
		PolicyFactory: factory.NewPolicyFactory(),
		Sweeper:       NewComplianceScheduler(svc, store, log),
		Log:           log,
	}
}

func actorFrom(r *http.Request) generic.Actor {
	actor, _ := auth.ActorFromContext(r.Context())
	return actor
}

// asOf reads ?as_of=YYYY-MM-DD. Without it the zero date is returned and
// the service uses each vehicle's own today.
func (h *Handler) asOf(r *http.Request) (generic.Date, error) {
	s := r.URL.Query().Get("as_of")
	if s == "" {
		return generic.Date{}, nil
	}
	d, err := generic.ParseDate(s)
	if err != nil {
		return generic.Date{}, &generic.ValidationError{Field: "as_of", Message: "use YYYY-MM-DD", Err: err}
	}
	return d, nil
}

func vehicleID(r *http.Request) taxation.VehicleID {
	return taxation.VehicleID(chi.URLParam(r, "id"))
}

// =============================================================================
// VEHICLE HANDLERS
// =============================================================================

// ListVehicles returns every vehicle with its current status.
// GET /api/vehicles?status=OWING
func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asOf, err := h.asOf(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	filter := taxation.Status(r.URL.Query().Get("status"))

	vehicles, err := h.Service.Store.ListVehicles(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list vehicles", err)
		return
	}

	dtos := make([]VehicleSummaryDTO, 0, len(vehicles))
	for _, v := range vehicles {
		snap, err := h.Service.GetComplianceSnapshot(ctx, v.ID, asOf)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if filter != "" && snap.Status != filter {
			continue
		}
		dtos = append(dtos, VehicleSummaryDTO{
			VehicleDTO: toVehicleDTO(v),
			Status:     string(snap.Status),
			Balance:    snap.Balance.String(),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RegisterVehicle creates a vehicle.
// POST /api/vehicles
func (h *Handler) RegisterVehicle(w http.ResponseWriter, r *http.Request) {
	var req RegisterVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	reg := taxation.VehicleRegistration{
		PlateNumber: req.PlateNumber,
		OwnerName:   req.OwnerName,
		PhoneNumber: req.PhoneNumber,
		TimeZone:    req.TimeZone,
	}
	if req.DailyRate != "" {
		rate, err := generic.ParseAmount(req.DailyRate, h.Service.Policy.Currency)
		if err != nil {
			writeServiceError(w, &generic.ValidationError{Field: "daily_rate", Message: "must be a decimal string", Err: err})
			return
		}
		reg.DailyRate = &rate
	}

	v, err := h.Service.RegisterVehicle(r.Context(), reg, actorFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVehicleDTO(*v))
}

// GetVehicle returns the full status view.
// GET /api/vehicles/{id}
func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.asOf(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	st, err := h.Service.VehicleStatus(r.Context(), vehicleID(r), asOf)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVehicleStatusDTO(st))
}

// GetCompliance returns the compliance snapshot.
// GET /api/vehicles/{id}/compliance?as_of=2025-03-03
func (h *Handler) GetCompliance(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.asOf(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	snap, err := h.Service.GetComplianceSnapshot(r.Context(), vehicleID(r), asOf)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toComplianceDTO(snap))
}

// ApproveVehicle approves and activates a vehicle.
// POST /api/vehicles/{id}/approve
func (h *Handler) ApproveVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.ApproveVehicle(r.Context(), vehicleID(r), actorFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVehicleDTO(*v))
}

// SetVehicleActive toggles is_active.
// POST /api/vehicles/{id}/active {"is_active": false}
func (h *Handler) SetVehicleActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.IsActive == nil {
		writeServiceError(w, &generic.ValidationError{Field: "is_active", Message: "is required"})
		return
	}

	v, err := h.Service.SetVehicleActive(r.Context(), vehicleID(r), *req.IsActive, actorFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVehicleDTO(*v))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ListPayments returns the vehicle's payments, oldest first, and their total.
// GET /api/vehicles/{id}/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := vehicleID(r)

	if _, err := h.Service.Store.GetVehicle(ctx, id); err != nil {
		writeServiceError(w, err)
		return
	}
	payments, total, err := taxation.NewPaymentLedger(h.Service.Policy).Load(ctx, h.Service.Store, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payments":   toPaymentDTOs(payments),
		"total_paid": total.String(),
	})
}

// RecordPayment appends a payment.
// POST /api/vehicles/{id}/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := generic.ParseAmount(req.Amount, h.Service.Policy.Currency)
	if err != nil {
		writeServiceError(w, &generic.ValidationError{Field: "amount", Message: "must be a decimal string", Err: err})
		return
	}

	p, err := h.Service.SubmitPayment(r.Context(), taxation.PaymentRequest{
		VehicleID:   vehicleID(r),
		Amount:      amount,
		Method:      taxation.PaymentMethod(req.Method),
		CollectedBy: req.CollectedBy,
		Reference:   req.Reference,
		Notes:       req.Notes,
	}, actorFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(*p))
}

// =============================================================================
// EXEMPTION HANDLERS
// =============================================================================

// ListVehicleExemptions returns every exemption for a vehicle.
// GET /api/vehicles/{id}/exemptions
func (h *Handler) ListVehicleExemptions(w http.ResponseWriter, r *http.Request) {
	exemptions, err := h.Service.VehicleExemptions(r.Context(), vehicleID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExemptionDTOs(exemptions))
}

// SubmitExemption files an exemption request.
// POST /api/vehicles/{id}/exemptions
func (h *Handler) SubmitExemption(w http.ResponseWriter, r *http.Request) {
	var req SubmitExemptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := generic.ParseDate(req.StartDate)
	if err != nil {
		writeServiceError(w, &generic.ValidationError{Field: "start_date", Message: "use YYYY-MM-DD", Err: err})
		return
	}
	end, err := generic.ParseDate(req.EndDate)
	if err != nil {
		writeServiceError(w, &generic.ValidationError{Field: "end_date", Message: "use YYYY-MM-DD", Err: err})
		return
	}

	e, err := h.Service.Exemptions.Submit(r.Context(), taxation.ExemptionSubmission{
		VehicleID:   vehicleID(r),
		StartDate:   start,
		EndDate:     end,
		Reason:      taxation.ExemptionReason(req.Reason),
		Description: req.Description,
	}, actorFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExemptionDTO(*e))
}

// ListPendingExemptions returns the approval queue, newest first.
// GET /api/exemptions/pending
func (h *Handler) ListPendingExemptions(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Service.ListPendingExemptions(r.Context(), actorFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExemptionDTOs(pending))
}

// ApproveExemption approves an exemption.
// POST /api/exemptions/{id}/approve
func (h *Handler) ApproveExemption(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, taxation.DecisionApprove)
}

// RejectExemption rejects an exemption.
// POST /api/exemptions/{id}/reject
func (h *Handler) RejectExemption(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, taxation.DecisionReject)
}

// DecideExemption takes the decision from the body.
// POST /api/exemptions/{id}/decide {"action": "approve"}
func (h *Handler) DecideExemption(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	decision, err := taxation.ParseDecision(req.Action)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.decide(w, r, decision)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, decision taxation.Decision) {
	id := taxation.ExemptionID(chi.URLParam(r, "id"))
	e, err := h.Service.DecideExemption(r.Context(), id, decision, actorFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExemptionDTO(e))
}

// DeleteExemption removes an exemption.
// DELETE /api/exemptions/{id}
func (h *Handler) DeleteExemption(w http.ResponseWriter, r *http.Request) {
	id := taxation.ExemptionID(chi.URLParam(r, "id"))
	if err := h.Service.DeleteExemption(r.Context(), id, actorFrom(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PUBLIC / POLICY / SWEEP HANDLERS
// =============================================================================

// PublicStatus answers "is this plate compliant?" without a token. Owner
// details and payment history are not revealed.
// GET /api/public/status/{plate}
func (h *Handler) PublicStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.StatusByPlate(r.Context(), chi.URLParam(r, "plate"), generic.Date{})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PublicStatusDTO{
		PlateNumber: st.Vehicle.PlateNumber,
		Status:      string(st.Snapshot.Status),
		Balance:     st.Snapshot.Balance.String(),
		AsOf:        st.Snapshot.AsOf.String(),
		Exempted:    st.ActiveExemption != nil,
	})
}

// GetPolicy returns the policy in force.
// GET /api/policy
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policy := h.Service.Policy
	dto := PolicyDTO{PolicyJSON: h.PolicyFactory.ToJSON(&policy)}

	rec, err := h.Store.GetPolicy(r.Context(), policy.ID)
	if err != nil && !errors.Is(err, generic.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to get policy", err)
		return
	}
	if rec != nil {
		dto.Version = rec.Version
	}
	writeJSON(w, http.StatusOK, dto)
}

// TriggerSweep runs a compliance sweep now and returns the recorded run.
// POST /api/admin/sweep
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	run, err := h.Sweeper.RunNow(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toSweepRunDTO(*run))
}

// ListSweepRuns returns recent sweep runs, newest first.
// GET /api/admin/sweeps?limit=20
func (h *Handler) ListSweepRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeServiceError(w, &generic.ValidationError{Field: "limit", Message: "must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := h.Store.ListSweepRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sweep runs", err)
		return
	}
	dtos := make([]SweepRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toSweepRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps a domain error to its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		status = http.StatusInternalServerError
		code   = "internal"
	)
	switch {
	case errors.Is(err, generic.ErrValidation):
		status, code = http.StatusBadRequest, "validation"
	case errors.Is(err, generic.ErrPermissionDenied):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, generic.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, generic.ErrConcurrentModification):
		status, code = http.StatusConflict, "concurrent_modification"
	case errors.Is(err, generic.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	}

	resp := ErrorResponse{Error: err.Error(), Code: code}
	var ve *generic.ValidationError
	if errors.As(err, &ve) {
		resp.Details = map[string]string{"field": ve.Field}
	}
	writeJSON(w, status, resp)
}
