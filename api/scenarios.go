/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with vehicles,
	payments and exemptions relative to today, so the dashboard shows every
	compliance state without waiting days for debt to accrue.

AVAILABLE SCENARIOS:

	compliance-examples: The reference cases (3 days owing, 12 days
	                     inactive, 4 excused days still inactive, paid up)
	mixed-fleet:         Pending registrations, a deactivated vehicle,
	                     pending and rejected exemptions, agent collections
	late-activation:     Activations after the daily cutoff hour

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Seed vehicles with back-dated activation stamps
 3. Add payments and exemptions inside one transaction

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "compliance-examples"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler context
  - taxation/compliance.go: How the seeded data is classified
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hassan3xl/taxation-backend/generic"
	"github.com/hassan3xl/taxation-backend/taxation"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "compliance-examples",
		Name:        "Compliance Examples",
		Description: "Owing after 3 days, inactive after 12, exemptions that do not clear the debt, and a paid-up vehicle",
	},
	{
		ID:          "mixed-fleet",
		Name:        "Mixed Fleet",
		Description: "Pending registrations, a deactivated vehicle, pending and rejected exemptions, agent collections",
	},
	{
		ID:          "late-activation",
		Name:        "Late Activation",
		Description: "Vehicles activated after the daily cutoff are not billed for that day",
	},
}

var scenarioLoaders = map[string]func(*seeder) error{
	"compliance-examples": loadComplianceExamples,
	"mixed-fleet":         loadMixedFleet,
	"late-activation":     loadLateActivation,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID, load); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears every vehicle, payment, exemption and sweep run.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) loadScenario(ctx context.Context, id string, load func(*seeder) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	h.currentScenario = ""

	err := h.Service.Store.WithTx(ctx, func(st taxation.Store) error {
		return load(newSeeder(ctx, h.Service, st))
	})
	if err != nil {
		return err
	}
	h.currentScenario = id
	h.Log.WithFields(logrus.Fields{"scenario": id}).Info("scenario loaded")
	return nil
}

// =============================================================================
// SEEDING HELPERS
// =============================================================================

// seeder writes records dated relative to today in the deployment zone.
type seeder struct {
	ctx    context.Context
	store  taxation.Store
	policy taxation.Policy
	today  generic.Date
	loc    *time.Location
	now    time.Time
}

func newSeeder(ctx context.Context, svc *taxation.Service, st taxation.Store) *seeder {
	return &seeder{
		ctx:    ctx,
		store:  st,
		policy: svc.Policy,
		today:  svc.Today(),
		loc:    svc.Policy.Location(),
		now:    svc.Now(),
	}
}

// at returns hour:00 local time, daysAgo days before today.
func (s *seeder) at(daysAgo, hour int) time.Time {
	d := s.today.AddDays(-daysAgo)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, s.loc)
}

// earlyHour is an activation hour that is billed under the policy cutoff.
func (s *seeder) earlyHour() int {
	return min(8, max(s.policy.CutoffHour-1, 0))
}

// vehicle creates an approved vehicle activated daysAgo at hour. A negative
// daysAgo leaves it unapproved and unactivated.
func (s *seeder) vehicle(plate, owner string, daysAgo, hour int) (taxation.Vehicle, error) {
	v := taxation.Vehicle{
		ID:          taxation.NewVehicleID(),
		PlateNumber: taxation.NormalizePlate(plate),
		OwnerName:   owner,
		PhoneNumber: "+234 800 000 0000",
		DailyRate:   s.policy.DefaultDailyRate,
		CreatedAt:   s.now.UTC(),
	}
	if daysAgo >= 0 {
		at := s.at(daysAgo, hour).UTC()
		v.IsActive, v.IsApproved = true, true
		v.ActivatedAt = &at
		v.CreatedAt = at
	}
	return v, s.store.CreateVehicle(s.ctx, v)
}

func (s *seeder) payment(v taxation.Vehicle, amount string, method taxation.PaymentMethod, collector string, daysAgo int) error {
	return s.store.AppendPayment(s.ctx, taxation.Payment{
		ID:          taxation.NewPaymentID(),
		VehicleID:   v.ID,
		Amount:      generic.MustParseAmount(amount, s.policy.Currency),
		Method:      method,
		CollectedBy: collector,
		Timestamp:   s.at(daysAgo, 12).UTC(),
	})
}

func (s *seeder) exemption(v taxation.Vehicle, startAgo, endAgo int, reason taxation.ExemptionReason, state taxation.ExemptionState) error {
	e := taxation.Exemption{
		ID:          taxation.NewExemptionID(),
		VehicleID:   v.ID,
		Period:      generic.Period{Start: s.today.AddDays(-startAgo), End: s.today.AddDays(-endAgo)},
		Reason:      reason,
		Description: fmt.Sprintf("%s (seeded)", reason),
		State:       state,
		SubmittedBy: "agent-demo",
		CreatedAt:   s.now.UTC(),
	}
	if state != taxation.ExemptionPending {
		decided := s.now.UTC()
		e.DecidedAt = &decided
		e.Version = 1
		if state == taxation.ExemptionApproved {
			e.ApprovedBy = "admin-demo"
		}
	}
	return s.store.CreateExemption(s.ctx, e)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadComplianceExamples(s *seeder) error {
	early := s.earlyHour()

	// 3 chargeable days, nothing paid: -450 OWING at the default rate
	if _, err := s.vehicle("KAN-001-AA", "Musa Ibrahim", 2, early); err != nil {
		return err
	}

	// 12 chargeable days, nothing paid: -1800 INACTIVE_DUE_TO_DEBT
	if _, err := s.vehicle("KAN-002-AA", "Aisha Bello", 11, early); err != nil {
		return err
	}

	// 12 days with 4 excused: -1200, still INACTIVE_DUE_TO_DEBT
	excused, err := s.vehicle("KAN-003-AA", "Chinedu Okafor", 11, early)
	if err != nil {
		return err
	}
	if err := s.exemption(excused, 7, 4, taxation.ReasonMechanical, taxation.ExemptionApproved); err != nil {
		return err
	}

	// 10 days, paid in full by an agent: ACTIVE
	paid, err := s.vehicle("KAN-004-AA", "Ngozi Eze", 9, early)
	if err != nil {
		return err
	}
	rate := s.policy.DefaultDailyRate
	if err := s.payment(paid, rate.MulInt(5).Value.String(), taxation.MethodAgent, "agent-demo", 5); err != nil {
		return err
	}
	return s.payment(paid, rate.MulInt(5).Value.String(), taxation.MethodUSSD, "", 0)
}

func loadMixedFleet(s *seeder) error {
	early := s.earlyHour()

	// Registered by an agent, awaiting approval
	if _, err := s.vehicle("ABJ-100-PD", "Pending Owner", -1, 0); err != nil {
		return err
	}

	// Deactivated after 20 days: nothing is billed while off the road
	parked, err := s.vehicle("ABJ-101-XY", "Emeka Nwosu", 20, early)
	if err != nil {
		return err
	}
	if err := s.store.SetVehicleFlags(s.ctx, parked.ID, false, true); err != nil {
		return err
	}

	// Regular payer with a pending sickness exemption
	regular, err := s.vehicle("ABJ-102-XY", "Fatima Sani", 6, early)
	if err != nil {
		return err
	}
	for day := 6; day >= 2; day-- {
		if err := s.payment(regular, s.policy.DefaultDailyRate.Value.String(), taxation.MethodAgent, "agent-demo", day); err != nil {
			return err
		}
	}
	if err := s.exemption(regular, 1, 0, taxation.ReasonSickness, taxation.ExemptionPending); err != nil {
		return err
	}

	// Rejected theft claim does not excuse anything
	rejected, err := s.vehicle("ABJ-103-XY", "Tunde Bakare", 8, early)
	if err != nil {
		return err
	}
	if err := s.exemption(rejected, 5, 2, taxation.ReasonTheft, taxation.ExemptionRejected); err != nil {
		return err
	}
	if err := s.payment(rejected, "300.00", taxation.MethodBank, "", 3); err != nil {
		return err
	}

	// Overpaid in advance: positive balance
	prepaid, err := s.vehicle("ABJ-104-XY", "Halima Yusuf", 1, early)
	if err != nil {
		return err
	}
	return s.payment(prepaid, "3000.00", taxation.MethodOnline, "", 0)
}

func loadLateActivation(s *seeder) error {
	late := s.policy.CutoffHour

	// Activated today after the cutoff: 0 days so far
	if _, err := s.vehicle("LAG-200-LT", "Late Today", 0, late); err != nil {
		return err
	}
	// Activated yesterday after the cutoff: only today is billed
	if _, err := s.vehicle("LAG-201-LT", "Late Yesterday", 1, late); err != nil {
		return err
	}
	// Activated yesterday before the cutoff: both days billed
	_, err := s.vehicle("LAG-202-ET", "Early Yesterday", 1, s.earlyHour())
	return err
}
