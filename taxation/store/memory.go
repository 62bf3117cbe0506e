// Package store provides in-memory taxation.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hassan3xl/taxation-backend/generic"
	"github.com/hassan3xl/taxation-backend/taxation"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	memState
}

// memState holds the records. Its methods assume the caller holds the lock.
type memState struct {
	vehicles   map[taxation.VehicleID]taxation.Vehicle
	plates     map[string]taxation.VehicleID
	payments   map[taxation.VehicleID][]taxation.Payment
	exemptions map[taxation.ExemptionID]taxation.Exemption
}

func NewMemory() *Memory {
	return &Memory{memState: newMemState()}
}

func newMemState() memState {
	return memState{
		vehicles:   make(map[taxation.VehicleID]taxation.Vehicle),
		plates:     make(map[string]taxation.VehicleID),
		payments:   make(map[taxation.VehicleID][]taxation.Payment),
		exemptions: make(map[taxation.ExemptionID]taxation.Exemption),
	}
}

func (m *Memory) CreateVehicle(_ context.Context, v taxation.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createVehicle(v)
}

func (m *Memory) GetVehicle(_ context.Context, id taxation.VehicleID) (*taxation.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getVehicle(id)
}

func (m *Memory) GetVehicleByPlate(_ context.Context, plate string) (*taxation.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getVehicleByPlate(plate)
}

func (m *Memory) ListVehicles(_ context.Context) ([]taxation.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listVehicles(), nil
}

func (m *Memory) SetVehicleFlags(_ context.Context, id taxation.VehicleID, isActive, isApproved bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setVehicleFlags(id, isActive, isApproved)
}

func (m *Memory) ActivateVehicle(_ context.Context, id taxation.VehicleID, at time.Time) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activateVehicle(id, at)
}

// AppendPayment adds a payment. Append-only.
func (m *Memory) AppendPayment(_ context.Context, p taxation.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendPayment(p)
}

func (m *Memory) LoadPayments(_ context.Context, vehicleID taxation.VehicleID) ([]taxation.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadPayments(vehicleID), nil
}

func (m *Memory) CreateExemption(_ context.Context, e taxation.Exemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createExemption(e)
}

func (m *Memory) GetExemption(_ context.Context, id taxation.ExemptionID) (*taxation.Exemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getExemption(id)
}

func (m *Memory) LoadExemptions(_ context.Context, vehicleID taxation.VehicleID) ([]taxation.Exemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadExemptions(vehicleID), nil
}

func (m *Memory) ListExemptionsByState(_ context.Context, state taxation.ExemptionState) ([]taxation.Exemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listExemptionsByState(state), nil
}

func (m *Memory) UpdateExemptionState(_ context.Context, e taxation.Exemption, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateExemptionState(e, expectedVersion)
}

func (m *Memory) DeleteExemption(_ context.Context, id taxation.ExemptionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteExemption(id)
}

// ===== locked helpers =====

func (s *memState) createVehicle(v taxation.Vehicle) error {
	if _, exists := s.vehicles[v.ID]; exists {
		return &generic.ConflictError{Kind: "vehicle", ID: string(v.ID), Message: "already exists"}
	}
	if _, exists := s.plates[v.PlateNumber]; exists {
		return &generic.ConflictError{Kind: "vehicle", ID: v.PlateNumber, Message: "plate number already registered"}
	}
	s.vehicles[v.ID] = v
	s.plates[v.PlateNumber] = v.ID
	return nil
}

func (s *memState) getVehicle(id taxation.VehicleID) (*taxation.Vehicle, error) {
	v, ok := s.vehicles[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "vehicle", ID: string(id)}
	}
	return &v, nil
}

func (s *memState) getVehicleByPlate(plate string) (*taxation.Vehicle, error) {
	id, ok := s.plates[taxation.NormalizePlate(plate)]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "vehicle", ID: plate}
	}
	return s.getVehicle(id)
}

func (s *memState) listVehicles() []taxation.Vehicle {
	result := make([]taxation.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PlateNumber < result[j].PlateNumber })
	return result
}

func (s *memState) setVehicleFlags(id taxation.VehicleID, isActive, isApproved bool) error {
	v, ok := s.vehicles[id]
	if !ok {
		return &generic.NotFoundError{Kind: "vehicle", ID: string(id)}
	}
	v.IsActive, v.IsApproved = isActive, isApproved
	s.vehicles[id] = v
	return nil
}

func (s *memState) activateVehicle(id taxation.VehicleID, at time.Time) (time.Time, error) {
	v, ok := s.vehicles[id]
	if !ok {
		return time.Time{}, &generic.NotFoundError{Kind: "vehicle", ID: string(id)}
	}
	if v.ActivatedAt != nil {
		return *v.ActivatedAt, nil
	}
	v.ActivatedAt = &at
	s.vehicles[id] = v
	return at, nil
}

func (s *memState) appendPayment(p taxation.Payment) error {
	if _, ok := s.vehicles[p.VehicleID]; !ok {
		return &generic.NotFoundError{Kind: "vehicle", ID: string(p.VehicleID)}
	}
	payments := s.payments[p.VehicleID]

	// Keep oldest first; equal timestamps keep insertion order.
	i := sort.Search(len(payments), func(i int) bool {
		return payments[i].Timestamp.After(p.Timestamp)
	})
	payments = append(payments, taxation.Payment{})
	copy(payments[i+1:], payments[i:])
	payments[i] = p
	s.payments[p.VehicleID] = payments
	return nil
}

func (s *memState) loadPayments(vehicleID taxation.VehicleID) []taxation.Payment {
	result := make([]taxation.Payment, len(s.payments[vehicleID]))
	copy(result, s.payments[vehicleID])
	return result
}

func (s *memState) createExemption(e taxation.Exemption) error {
	if _, exists := s.exemptions[e.ID]; exists {
		return &generic.ConflictError{Kind: "exemption", ID: string(e.ID), Message: "already exists"}
	}
	if _, ok := s.vehicles[e.VehicleID]; !ok {
		return &generic.NotFoundError{Kind: "vehicle", ID: string(e.VehicleID)}
	}
	s.exemptions[e.ID] = e
	return nil
}

func (s *memState) getExemption(id taxation.ExemptionID) (*taxation.Exemption, error) {
	e, ok := s.exemptions[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "exemption", ID: string(id)}
	}
	return &e, nil
}

func (s *memState) loadExemptions(vehicleID taxation.VehicleID) []taxation.Exemption {
	var result []taxation.Exemption
	for _, e := range s.exemptions {
		if e.VehicleID == vehicleID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Period.Start.Equal(result[j].Period.Start) {
			return result[i].Period.Start.After(result[j].Period.Start)
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *memState) listExemptionsByState(state taxation.ExemptionState) []taxation.Exemption {
	var result []taxation.Exemption
	for _, e := range s.exemptions {
		if e.State == state {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

func (s *memState) updateExemptionState(e taxation.Exemption, expectedVersion int) error {
	stored, ok := s.exemptions[e.ID]
	if !ok {
		return &generic.NotFoundError{Kind: "exemption", ID: string(e.ID)}
	}
	if stored.Version != expectedVersion {
		return generic.ErrConcurrentModification
	}
	stored.State = e.State
	stored.ApprovedBy = e.ApprovedBy
	stored.DecidedAt = e.DecidedAt
	stored.Version = expectedVersion + 1
	s.exemptions[e.ID] = stored
	return nil
}

func (s *memState) deleteExemption(id taxation.ExemptionID) error {
	if _, ok := s.exemptions[id]; !ok {
		return &generic.NotFoundError{Kind: "exemption", ID: string(id)}
	}
	delete(s.exemptions, id)
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

var _ taxation.TxStore = (*TxMemory)(nil)

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(taxation.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{state: &tm.memState}); err != nil {
		tm.memState = snapshot
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memState {
	s := newMemState()
	for k, v := range tm.vehicles {
		s.vehicles[k] = v
	}
	for k, v := range tm.plates {
		s.plates[k] = v
	}
	for k, v := range tm.payments {
		s.payments[k] = append([]taxation.Payment{}, v...)
	}
	for k, v := range tm.exemptions {
		s.exemptions[k] = v
	}
	return s
}

// txMemoryView runs under the TxMemory write lock, so it never locks.
type txMemoryView struct {
	state *memState
}

func (tv *txMemoryView) CreateVehicle(_ context.Context, v taxation.Vehicle) error {
	return tv.state.createVehicle(v)
}

func (tv *txMemoryView) GetVehicle(_ context.Context, id taxation.VehicleID) (*taxation.Vehicle, error) {
	return tv.state.getVehicle(id)
}

func (tv *txMemoryView) GetVehicleByPlate(_ context.Context, plate string) (*taxation.Vehicle, error) {
	return tv.state.getVehicleByPlate(plate)
}

func (tv *txMemoryView) ListVehicles(_ context.Context) ([]taxation.Vehicle, error) {
	return tv.state.listVehicles(), nil
}

func (tv *txMemoryView) SetVehicleFlags(_ context.Context, id taxation.VehicleID, isActive, isApproved bool) error {
	return tv.state.setVehicleFlags(id, isActive, isApproved)
}

func (tv *txMemoryView) ActivateVehicle(_ context.Context, id taxation.VehicleID, at time.Time) (time.Time, error) {
	return tv.state.activateVehicle(id, at)
}

func (tv *txMemoryView) AppendPayment(_ context.Context, p taxation.Payment) error {
	return tv.state.appendPayment(p)
}

func (tv *txMemoryView) LoadPayments(_ context.Context, vehicleID taxation.VehicleID) ([]taxation.Payment, error) {
	return tv.state.loadPayments(vehicleID), nil
}

func (tv *txMemoryView) CreateExemption(_ context.Context, e taxation.Exemption) error {
	return tv.state.createExemption(e)
}

func (tv *txMemoryView) GetExemption(_ context.Context, id taxation.ExemptionID) (*taxation.Exemption, error) {
	return tv.state.getExemption(id)
}

func (tv *txMemoryView) LoadExemptions(_ context.Context, vehicleID taxation.VehicleID) ([]taxation.Exemption, error) {
	return tv.state.loadExemptions(vehicleID), nil
}

func (tv *txMemoryView) ListExemptionsByState(_ context.Context, state taxation.ExemptionState) ([]taxation.Exemption, error) {
	return tv.state.listExemptionsByState(state), nil
}

func (tv *txMemoryView) UpdateExemptionState(_ context.Context, e taxation.Exemption, expectedVersion int) error {
	return tv.state.updateExemptionState(e, expectedVersion)
}

func (tv *txMemoryView) DeleteExemption(_ context.Context, id taxation.ExemptionID) error {
	return tv.state.deleteExemption(id)
}
