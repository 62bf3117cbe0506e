/*
scheduler.go - Periodic compliance sweep

PURPOSE:
  Periodically classifies every registered vehicle and records the counts
  as a sweep run, so enforcement staff see which vehicles fell into
  INACTIVE_DUE_TO_DEBT without polling each one.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Each run is persisted as running, then completed or failed
  - Sweeps never write to vehicles; status is always derived on read

CONFIGURATION:
  - CheckInterval: How often to sweep (TAX_SWEEP_INTERVAL, default 1 hour)
  - Enabled: Whether the scheduler starts at all (TAX_SWEEP_ENABLED)

USAGE:
  scheduler := NewComplianceScheduler(service, store, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerSweep endpoint (manual sweep)
  - taxation/service.go: SweepCompliance
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hassan3xl/taxation-backend/generic"
	"github.com/hassan3xl/taxation-backend/store/sqlite"
	"github.com/hassan3xl/taxation-backend/taxation"
	"github.com/sirupsen/logrus"
)

// ComplianceScheduler runs compliance sweeps on a ticker.
type ComplianceScheduler struct {
	Service       *taxation.Service
	Store         *sqlite.Store
	Log           logrus.FieldLogger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewComplianceScheduler creates a scheduler with a one hour interval.
func NewComplianceScheduler(svc *taxation.Service, store *sqlite.Store, log logrus.FieldLogger) *ComplianceScheduler {
	return &ComplianceScheduler{
		Service:       svc,
		Store:         store,
		Log:           log.WithField("component", "sweep"),
		CheckInterval: time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler. Calling Start twice is a no-op.
func (cs *ComplianceScheduler) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.Enabled {
		cs.Log.Info("scheduler disabled, not starting")
		return
	}
	if cs.ticker != nil {
		return
	}

	cs.ticker = time.NewTicker(cs.CheckInterval)
	cs.stop = make(chan struct{})
	cs.wg.Add(1)

	go cs.run(cs.ticker, cs.stop)

	cs.Log.WithField("interval", cs.CheckInterval.String()).Info("scheduler started")
}

// Stop stops the scheduler and waits for an in-flight sweep to finish.
func (cs *ComplianceScheduler) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ticker == nil {
		return
	}
	cs.ticker.Stop()
	close(cs.stop)
	cs.wg.Wait()
	cs.ticker = nil
	cs.Log.Info("scheduler stopped")
}

func (cs *ComplianceScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer cs.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	cs.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			cs.sweep(ctx)
		case <-stop:
			return
		}
	}
}

func (cs *ComplianceScheduler) sweep(ctx context.Context) {
	if _, err := cs.RunNow(ctx); err != nil {
		cs.Log.WithError(err).Error("scheduled sweep failed")
	}
}

// RunNow sweeps immediately and records the run.
func (cs *ComplianceScheduler) RunNow(ctx context.Context) (*sqlite.SweepRun, error) {
	asOf := cs.Service.Today()
	run := sqlite.SweepRun{
		ID:        "sweep-" + uuid.NewString(),
		AsOf:      asOf,
		Status:    "running",
		StartedAt: cs.Service.Now().UTC(),
	}
	if err := cs.Store.SaveSweepRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run record: %w", err)
	}

	result, err := cs.Service.SweepCompliance(ctx, generic.Date{})
	completed := cs.Service.Now().UTC()
	run.CompletedAt = &completed
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
		if saveErr := cs.Store.SaveSweepRun(context.WithoutCancel(ctx), run); saveErr != nil {
			cs.Log.WithError(saveErr).Warn("failed to record failed sweep")
		}
		return nil, err
	}

	run.Status = "completed"
	run.ActiveCount = result.Counts[taxation.StatusActive]
	run.OwingCount = result.Counts[taxation.StatusOwing]
	run.InactiveCount = result.Counts[taxation.StatusInactiveDueToDebt]
	if err := cs.Store.SaveSweepRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to update run record: %w", err)
	}

	cs.Log.WithFields(logrus.Fields{
		"run_id":   run.ID,
		"as_of":    asOf.String(),
		"active":   run.ActiveCount,
		"owing":    run.OwingCount,
		"inactive": run.InactiveCount,
	}).Info("compliance sweep completed")
	for _, id := range result.Inactive {
		cs.Log.WithField("vehicle_id", id).Debug("vehicle inactive due to debt")
	}
	return &run, nil
}
