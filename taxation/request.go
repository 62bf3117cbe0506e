/*
request.go - Exemption approval workflow

PURPOSE:
  An exemption only excuses tax once an admin has approved it. This file is
  the state machine that controls that gate and who may move it.

STATE MACHINE:
  ┌──────────────────────────────────────────────────────────────┐
  │                                                              │
  │  agent submits ──▶ pending ──approve (admin)──▶ approved     │
  │                       │                                      │
  │                       └──reject (admin)──▶ rejected          │
  │                                                              │
  │  admin submits ─────────────────────────────▶ approved       │
  │                                                              │
  └──────────────────────────────────────────────────────────────┘

  approved and rejected are terminal. Rejected requests are kept, not
  deleted, so the history of refused requests stays queryable.

TRANSITION TABLE (decision x current state):
                 pending      approved          rejected
  approve        approved     no-op success     ConflictError
  reject         rejected     ConflictError     no-op success

PERMISSIONS:
  Submit:  admin or agent. Admin submissions are approved on creation.
  Decide:  admin only. Anyone else gets a PermissionError, nothing changes.
  Delete:  admin only. Approved periods are immutable except for deletion.

CONCURRENCY:
  Decisions run inside TxStore.WithTx and write with the version they read.
  Two admins deciding the same request at once cannot both win: the loser
  gets generic.ErrConcurrentModification and the store is unambiguous.

EFFECT ON BALANCES:
  There is no recomputation trigger. The next snapshot reads the new state.

SEE ALSO:
  - exemption.go: ExemptionLedger reads approved periods
  - store.go: UpdateExemptionState contract
*/
package taxation

import (
	"context"
	"fmt"
	"time"

	"github.com/hassan3xl/taxation-backend/generic"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// DECISIONS
// =============================================================================

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision accepts "approve" or "reject".
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case DecisionApprove, DecisionReject:
		return d, nil
	}
	return "", &generic.ValidationError{Field: "action", Message: "invalid action, use 'approve' or 'reject'"}
}

// ExemptionSubmission is a request to excuse a vehicle over a date range.
type ExemptionSubmission struct {
	VehicleID   VehicleID
	StartDate   generic.Date
	EndDate     generic.Date
	Reason      ExemptionReason
	Description string
}

func (s ExemptionSubmission) validate() error {
	if s.VehicleID == "" {
		return &generic.ValidationError{Field: "vehicle_id", Message: "is required"}
	}
	if !s.Reason.Valid() {
		return &generic.ValidationError{Field: "reason", Message: fmt.Sprintf("unknown reason %q", s.Reason)}
	}
	return generic.Period{Start: s.StartDate, End: s.EndDate}.Validate()
}

// =============================================================================
// WORKFLOW
// =============================================================================

// ExemptionWorkflow creates and decides exemption requests.
type ExemptionWorkflow struct {
	Store TxStore
	Log   logrus.FieldLogger
	Now   func() time.Time
}

// Submit validates and persists a new exemption request.
func (w *ExemptionWorkflow) Submit(ctx context.Context, sub ExemptionSubmission, actor generic.Actor) (*Exemption, error) {
	if !actor.IsStaff() {
		return nil, &generic.PermissionError{Actor: actor, Action: "submit exemptions"}
	}
	if err := sub.validate(); err != nil {
		return nil, err
	}

	now := w.Now()
	e := Exemption{
		ID:          NewExemptionID(),
		VehicleID:   sub.VehicleID,
		Period:      generic.Period{Start: sub.StartDate, End: sub.EndDate},
		Reason:      sub.Reason,
		Description: sub.Description,
		State:       ExemptionPending,
		SubmittedBy: actor.ID,
		CreatedAt:   now,
	}
	if actor.IsAdmin() {
		e.State = ExemptionApproved
		e.ApprovedBy = actor.ID
		e.DecidedAt = &now
	}

	err := w.Store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetVehicle(ctx, sub.VehicleID); err != nil {
			return err
		}
		return s.CreateExemption(ctx, e)
	})
	if err != nil {
		return nil, err
	}

	w.Log.WithFields(logrus.Fields{
		"exemption_id": e.ID,
		"vehicle_id":   e.VehicleID,
		"period":       e.Period.String(),
		"state":        e.State,
		"actor":        actor.String(),
	}).Info("exemption submitted")
	return &e, nil
}

// Decide applies an approve or reject decision.
func (w *ExemptionWorkflow) Decide(ctx context.Context, id ExemptionID, decision Decision, actor generic.Actor) (*Exemption, error) {
	if !actor.IsAdmin() {
		return nil, &generic.PermissionError{Actor: actor, Action: string(decision) + " exemptions"}
	}

	var result Exemption
	changed := false
	err := w.Store.WithTx(ctx, func(s Store) error {
		current, err := s.GetExemption(ctx, id)
		if err != nil {
			return err
		}
		next, ok, err := transition(*current, decision, actor, w.Now())
		if err != nil {
			return err
		}
		if ok {
			if err := s.UpdateExemptionState(ctx, next, current.Version); err != nil {
				return err
			}
		}
		result, changed = next, ok
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.Log.WithFields(logrus.Fields{
		"exemption_id": id,
		"vehicle_id":   result.VehicleID,
		"decision":     decision,
		"state":        result.State,
		"changed":      changed,
		"actor":        actor.String(),
	}).Info("exemption decided")
	return &result, nil
}

// Delete removes an exemption in any state.
func (w *ExemptionWorkflow) Delete(ctx context.Context, id ExemptionID, actor generic.Actor) error {
	if !actor.IsAdmin() {
		return &generic.PermissionError{Actor: actor, Action: "delete exemptions"}
	}
	if err := w.Store.DeleteExemption(ctx, id); err != nil {
		return err
	}
	w.Log.WithFields(logrus.Fields{"exemption_id": id, "actor": actor.String()}).Info("exemption deleted")
	return nil
}

// Pending lists requests awaiting a decision, newest first.
func (w *ExemptionWorkflow) Pending(ctx context.Context, actor generic.Actor) ([]Exemption, error) {
	if !actor.IsAdmin() {
		return nil, &generic.PermissionError{Actor: actor, Action: "list pending exemptions"}
	}
	return w.Store.ListExemptionsByState(ctx, ExemptionPending)
}

// transition is the pure state machine. It reports whether anything changed.
func transition(e Exemption, decision Decision, actor generic.Actor, at time.Time) (Exemption, bool, error) {
	switch decision {
	case DecisionApprove:
		switch e.State {
		case ExemptionApproved:
			return e, false, nil
		case ExemptionRejected:
			return e, false, &generic.ConflictError{Kind: "exemption", ID: string(e.ID), Message: "already rejected"}
		}
		e.State = ExemptionApproved
		e.ApprovedBy = actor.ID
	case DecisionReject:
		switch e.State {
		case ExemptionRejected:
			return e, false, nil
		case ExemptionApproved:
			return e, false, &generic.ConflictError{Kind: "exemption", ID: string(e.ID), Message: "already approved"}
		}
		e.State = ExemptionRejected
	default:
		return e, false, &generic.ValidationError{Field: "action", Message: fmt.Sprintf("unknown decision %q", decision)}
	}
	e.DecidedAt = &at
	e.Version++
	return e, true, nil
}
