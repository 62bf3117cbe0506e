/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements taxation.TxStore using SQLite, plus the operational tables the
  server needs around it (policy documents, sweep runs). In production the
  same patterns apply to PostgreSQL with minor dialect differences.

INTERFACES IMPLEMENTED:
  taxation.VehicleStore:   Vehicle registry
  taxation.PaymentStore:   Append-only payments
  taxation.ExemptionStore: Exemption periods and approval state
  taxation.TxStore:        All of the above inside one SQL transaction

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on the payments table
  - Corrections happen outside the engine

KEY TABLES:
  vehicles:     Registry, activation stamp (set once)
  payments:     Immutable payment ledger, amounts as decimal TEXT
  exemptions:   Periods, state and an optimistic-lock version
  policies:     Tax policy documents (JSON)
  sweep_runs:   History of scheduled compliance sweeps

MONEY:
  Amounts are stored as decimal strings ("150.00"), never REAL, so a value
  read back is exactly the value written.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single connection so that
  ":memory:" databases are shared by every query. Activation is a
  compare-and-set (activated_at IS NULL) and exemption decisions compare the
  version column, so both stay correct under a multi-connection database.

USAGE:
  store, err := sqlite.New("./data/taxation.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := taxation.NewService(store, policy, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - taxation/store.go: Interface definitions
  - taxation/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hassan3xl/taxation-backend/generic"
	"github.com/hassan3xl/taxation-backend/taxation"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ taxation.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Vehicles
	CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		plate_number TEXT NOT NULL UNIQUE,
		owner_name TEXT NOT NULL,
		phone_number TEXT,
		daily_rate TEXT NOT NULL,
		currency TEXT NOT NULL,
		time_zone TEXT,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		is_approved BOOLEAN NOT NULL DEFAULT FALSE,
		activated_at TEXT,
		created_at TEXT NOT NULL
	);

	-- Payments (append-only ledger)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL REFERENCES vehicles(id),
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		method TEXT NOT NULL,
		collected_by TEXT,
		reference TEXT,
		notes TEXT,
		paid_at TEXT NOT NULL
	);

	-- Hot path: total paid per vehicle
	CREATE INDEX IF NOT EXISTS idx_payments_vehicle_paid_at
		ON payments(vehicle_id, paid_at);

	-- Exemptions
	CREATE TABLE IF NOT EXISTS exemptions (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL REFERENCES vehicles(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		reason TEXT NOT NULL,
		description TEXT,
		state TEXT NOT NULL DEFAULT 'pending',
		submitted_by TEXT NOT NULL,
		approved_by TEXT,
		decided_at TEXT,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		CHECK (start_date <= end_date)
	);

	CREATE INDEX IF NOT EXISTS idx_exemptions_vehicle
		ON exemptions(vehicle_id, start_date DESC);
	CREATE INDEX IF NOT EXISTS idx_exemptions_state
		ON exemptions(state, created_at DESC);

	-- Tax policies
	CREATE TABLE IF NOT EXISTS policies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Compliance sweep runs (for the scheduler)
	CREATE TABLE IF NOT EXISTS sweep_runs (
		id TEXT PRIMARY KEY,
		as_of TEXT NOT NULL,
		status TEXT NOT NULL,
		active_count INTEGER NOT NULL DEFAULT 0,
		owing_count INTEGER NOT NULL DEFAULT 0,
		inactive_count INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sweep_runs_started
		ON sweep_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// VEHICLE STORE
// =============================================================================

const vehicleColumns = `id, plate_number, owner_name, phone_number, daily_rate, currency,
	time_zone, is_active, is_approved, activated_at, created_at`

func (s *Store) CreateVehicle(ctx context.Context, v taxation.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createVehicle(ctx, s.db, v)
}

func (s *Store) GetVehicle(ctx context.Context, id taxation.VehicleID) (*taxation.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getVehicle(ctx, s.db, "id", string(id))
}

func (s *Store) GetVehicleByPlate(ctx context.Context, plate string) (*taxation.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getVehicle(ctx, s.db, "plate_number", taxation.NormalizePlate(plate))
}

func (s *Store) ListVehicles(ctx context.Context) ([]taxation.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listVehicles(ctx, s.db)
}

func (s *Store) SetVehicleFlags(ctx context.Context, id taxation.VehicleID, isActive, isApproved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setVehicleFlags(ctx, s.db, id, isActive, isApproved)
}

func (s *Store) ActivateVehicle(ctx context.Context, id taxation.VehicleID, at time.Time) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return activateVehicle(ctx, s.db, id, at)
}

func createVehicle(ctx context.Context, db dbtx, v taxation.Vehicle) error {
	query := `INSERT INTO vehicles (` + vehicleColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.ExecContext(ctx, query,
		v.ID,
		taxation.NormalizePlate(v.PlateNumber),
		v.OwnerName,
		nullString(v.PhoneNumber),
		v.DailyRate.Value.String(),
		v.DailyRate.Currency,
		nullString(v.TimeZone),
		v.IsActive,
		v.IsApproved,
		nullTime(v.ActivatedAt),
		formatTime(v.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &generic.ConflictError{Kind: "vehicle", ID: v.PlateNumber, Message: "plate number already registered"}
		}
		return fmt.Errorf("failed to create vehicle: %w", err)
	}
	return nil
}

func getVehicle(ctx context.Context, db dbtx, column, value string) (*taxation.Vehicle, error) {
	// column is one of two literals chosen by the caller, never user input.
	row := db.QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE `+column+` = ?`, value)
	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: "vehicle", ID: value}
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func listVehicles(ctx context.Context, db dbtx) ([]taxation.Vehicle, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles ORDER BY plate_number`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []taxation.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func setVehicleFlags(ctx context.Context, db dbtx, id taxation.VehicleID, isActive, isApproved bool) error {
	res, err := db.ExecContext(ctx,
		`UPDATE vehicles SET is_active = ?, is_approved = ? WHERE id = ?`,
		isActive, isApproved, id)
	if err != nil {
		return fmt.Errorf("failed to update vehicle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Kind: "vehicle", ID: string(id)}
	}
	return nil
}

// activateVehicle stamps activated_at only while it is NULL, then reads back
// whichever instant won.
func activateVehicle(ctx context.Context, db dbtx, id taxation.VehicleID, at time.Time) (time.Time, error) {
	_, err := db.ExecContext(ctx,
		`UPDATE vehicles SET activated_at = ? WHERE id = ? AND activated_at IS NULL`,
		formatTime(at), id)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to activate vehicle: %w", err)
	}

	var stored sql.NullString
	err = db.QueryRowContext(ctx, `SELECT activated_at FROM vehicles WHERE id = ?`, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, &generic.NotFoundError{Kind: "vehicle", ID: string(id)}
	}
	if err != nil {
		return time.Time{}, err
	}
	return parseTime(stored.String), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVehicle(row scanner) (taxation.Vehicle, error) {
	var (
		v           taxation.Vehicle
		phone       sql.NullString
		rate        string
		currency    string
		timeZone    sql.NullString
		activatedAt sql.NullString
		createdAt   string
	)
	err := row.Scan(
		&v.ID, &v.PlateNumber, &v.OwnerName, &phone, &rate, &currency,
		&timeZone, &v.IsActive, &v.IsApproved, &activatedAt, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return v, err
		}
		return v, fmt.Errorf("failed to scan vehicle: %w", err)
	}

	v.PhoneNumber = phone.String
	v.TimeZone = timeZone.String
	v.DailyRate, err = generic.ParseAmount(rate, generic.Currency(currency))
	if err != nil {
		return v, err
	}
	if activatedAt.Valid {
		t := parseTime(activatedAt.String)
		v.ActivatedAt = &t
	}
	v.CreatedAt = parseTime(createdAt)
	return v, nil
}

// =============================================================================
// PAYMENT STORE (append-only)
// =============================================================================

// AppendPayment adds a payment to the ledger.
func (s *Store) AppendPayment(ctx context.Context, p taxation.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendPayment(ctx, s.db, p)
}

// LoadPayments returns a vehicle's payments, oldest first.
func (s *Store) LoadPayments(ctx context.Context, vehicleID taxation.VehicleID) ([]taxation.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadPayments(ctx, s.db, vehicleID)
}

func appendPayment(ctx context.Context, db dbtx, p taxation.Payment) error {
	query := `
		INSERT INTO payments (id, vehicle_id, amount, currency, method, collected_by, reference, notes, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		p.ID,
		p.VehicleID,
		p.Amount.Value.String(),
		p.Amount.Currency,
		p.Method,
		nullString(p.CollectedBy),
		nullString(p.Reference),
		nullString(p.Notes),
		formatTime(p.Timestamp),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return &generic.NotFoundError{Kind: "vehicle", ID: string(p.VehicleID)}
		}
		if isUniqueConstraintError(err) {
			return &generic.ConflictError{Kind: "payment", ID: string(p.ID), Message: "already recorded"}
		}
		return fmt.Errorf("failed to append payment: %w", err)
	}
	return nil
}

func loadPayments(ctx context.Context, db dbtx, vehicleID taxation.VehicleID) ([]taxation.Payment, error) {
	query := `
		SELECT id, vehicle_id, amount, currency, method, collected_by, reference, notes, paid_at
		FROM payments
		WHERE vehicle_id = ?
		ORDER BY paid_at ASC, rowid ASC
	`
	rows, err := db.QueryContext(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []taxation.Payment
	for rows.Next() {
		var (
			p                        taxation.Payment
			amount, currency, paidAt string
			collectedBy, ref, notes  sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.VehicleID, &amount, &currency, &p.Method,
			&collectedBy, &ref, &notes, &paidAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Amount, err = generic.ParseAmount(amount, generic.Currency(currency))
		if err != nil {
			return nil, err
		}
		p.CollectedBy = collectedBy.String
		p.Reference = ref.String
		p.Notes = notes.String
		p.Timestamp = parseTime(paidAt)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// =============================================================================
// EXEMPTION STORE
// =============================================================================

const exemptionColumns = `id, vehicle_id, start_date, end_date, reason, description, state,
	submitted_by, approved_by, decided_at, version, created_at`

func (s *Store) CreateExemption(ctx context.Context, e taxation.Exemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createExemption(ctx, s.db, e)
}

func (s *Store) GetExemption(ctx context.Context, id taxation.ExemptionID) (*taxation.Exemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getExemption(ctx, s.db, id)
}

func (s *Store) LoadExemptions(ctx context.Context, vehicleID taxation.VehicleID) ([]taxation.Exemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryExemptions(ctx, s.db,
		`SELECT `+exemptionColumns+` FROM exemptions WHERE vehicle_id = ? ORDER BY start_date DESC, created_at DESC`,
		vehicleID)
}

func (s *Store) ListExemptionsByState(ctx context.Context, state taxation.ExemptionState) ([]taxation.Exemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryExemptions(ctx, s.db,
		`SELECT `+exemptionColumns+` FROM exemptions WHERE state = ? ORDER BY created_at DESC`,
		state)
}

func (s *Store) UpdateExemptionState(ctx context.Context, e taxation.Exemption, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateExemptionState(ctx, s.db, e, expectedVersion)
}

func (s *Store) DeleteExemption(ctx context.Context, id taxation.ExemptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteExemption(ctx, s.db, id)
}

func createExemption(ctx context.Context, db dbtx, e taxation.Exemption) error {
	query := `INSERT INTO exemptions (` + exemptionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.ExecContext(ctx, query,
		e.ID,
		e.VehicleID,
		e.Period.Start.String(),
		e.Period.End.String(),
		e.Reason,
		nullString(e.Description),
		e.State,
		e.SubmittedBy,
		nullString(e.ApprovedBy),
		nullTime(e.DecidedAt),
		e.Version,
		formatTime(e.CreatedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return &generic.NotFoundError{Kind: "vehicle", ID: string(e.VehicleID)}
		}
		if isUniqueConstraintError(err) {
			return &generic.ConflictError{Kind: "exemption", ID: string(e.ID), Message: "already exists"}
		}
		if isCheckConstraintError(err) {
			return e.Period.Validate()
		}
		return fmt.Errorf("failed to create exemption: %w", err)
	}
	return nil
}

func getExemption(ctx context.Context, db dbtx, id taxation.ExemptionID) (*taxation.Exemption, error) {
	found, err := queryExemptions(ctx, db, `SELECT `+exemptionColumns+` FROM exemptions WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, &generic.NotFoundError{Kind: "exemption", ID: string(id)}
	}
	return &found[0], nil
}

// updateExemptionState is an optimistic-lock write on the version column.
func updateExemptionState(ctx context.Context, db dbtx, e taxation.Exemption, expectedVersion int) error {
	query := `
		UPDATE exemptions
		SET state = ?, approved_by = ?, decided_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`
	res, err := db.ExecContext(ctx, query,
		e.State, nullString(e.ApprovedBy), nullTime(e.DecidedAt), e.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update exemption: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exemptions WHERE id = ?`, e.ID).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return &generic.NotFoundError{Kind: "exemption", ID: string(e.ID)}
	}
	return generic.ErrConcurrentModification
}

func deleteExemption(ctx context.Context, db dbtx, id taxation.ExemptionID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM exemptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete exemption: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Kind: "exemption", ID: string(id)}
	}
	return nil
}

func queryExemptions(ctx context.Context, db dbtx, query string, args ...any) ([]taxation.Exemption, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query exemptions: %w", err)
	}
	defer rows.Close()

	var exemptions []taxation.Exemption
	for rows.Next() {
		var (
			e                       taxation.Exemption
			start, end, createdAt   string
			description, approvedBy sql.NullString
			decidedAt               sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.VehicleID, &start, &end, &e.Reason, &description, &e.State,
			&e.SubmittedBy, &approvedBy, &decidedAt, &e.Version, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan exemption: %w", err)
		}
		if e.Period.Start, err = generic.ParseDate(start); err != nil {
			return nil, err
		}
		if e.Period.End, err = generic.ParseDate(end); err != nil {
			return nil, err
		}
		e.Description = description.String
		e.ApprovedBy = approvedBy.String
		if decidedAt.Valid {
			t := parseTime(decidedAt.String)
			e.DecidedAt = &t
		}
		e.CreatedAt = parseTime(createdAt)
		exemptions = append(exemptions, e)
	}
	return exemptions, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (taxation.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store taxation.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every statement on the open transaction. The parent lock is
// already held, so it never locks.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreateVehicle(ctx context.Context, v taxation.Vehicle) error {
	return createVehicle(ctx, ts.tx, v)
}

func (ts *txStore) GetVehicle(ctx context.Context, id taxation.VehicleID) (*taxation.Vehicle, error) {
	return getVehicle(ctx, ts.tx, "id", string(id))
}

func (ts *txStore) GetVehicleByPlate(ctx context.Context, plate string) (*taxation.Vehicle, error) {
	return getVehicle(ctx, ts.tx, "plate_number", taxation.NormalizePlate(plate))
}

func (ts *txStore) ListVehicles(ctx context.Context) ([]taxation.Vehicle, error) {
	return listVehicles(ctx, ts.tx)
}

func (ts *txStore) SetVehicleFlags(ctx context.Context, id taxation.VehicleID, isActive, isApproved bool) error {
	return setVehicleFlags(ctx, ts.tx, id, isActive, isApproved)
}

func (ts *txStore) ActivateVehicle(ctx context.Context, id taxation.VehicleID, at time.Time) (time.Time, error) {
	return activateVehicle(ctx, ts.tx, id, at)
}

func (ts *txStore) AppendPayment(ctx context.Context, p taxation.Payment) error {
	return appendPayment(ctx, ts.tx, p)
}

func (ts *txStore) LoadPayments(ctx context.Context, vehicleID taxation.VehicleID) ([]taxation.Payment, error) {
	return loadPayments(ctx, ts.tx, vehicleID)
}

func (ts *txStore) CreateExemption(ctx context.Context, e taxation.Exemption) error {
	return createExemption(ctx, ts.tx, e)
}

func (ts *txStore) GetExemption(ctx context.Context, id taxation.ExemptionID) (*taxation.Exemption, error) {
	return getExemption(ctx, ts.tx, id)
}

func (ts *txStore) LoadExemptions(ctx context.Context, vehicleID taxation.VehicleID) ([]taxation.Exemption, error) {
	return queryExemptions(ctx, ts.tx,
		`SELECT `+exemptionColumns+` FROM exemptions WHERE vehicle_id = ? ORDER BY start_date DESC, created_at DESC`,
		vehicleID)
}

func (ts *txStore) ListExemptionsByState(ctx context.Context, state taxation.ExemptionState) ([]taxation.Exemption, error) {
	return queryExemptions(ctx, ts.tx,
		`SELECT `+exemptionColumns+` FROM exemptions WHERE state = ? ORDER BY created_at DESC`,
		state)
}

func (ts *txStore) UpdateExemptionState(ctx context.Context, e taxation.Exemption, expectedVersion int) error {
	return updateExemptionState(ctx, ts.tx, e, expectedVersion)
}

func (ts *txStore) DeleteExemption(ctx context.Context, id taxation.ExemptionID) error {
	return deleteExemption(ctx, ts.tx, id)
}

// =============================================================================
// POLICY STORE
// =============================================================================

// PolicyRecord is a stored tax policy with its JSON document.
type PolicyRecord struct {
	ID         string
	Name       string
	ConfigJSON string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SavePolicy upserts a policy document, bumping its version on update.
func (s *Store) SavePolicy(ctx context.Context, p PolicyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO policies (id, name, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			version = policies.version + 1,
			updated_at = excluded.updated_at
	`
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, query, p.ID, p.Name, p.ConfigJSON, now, now)
	if err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}
	return nil
}

// GetPolicy returns a stored policy document.
func (s *Store) GetPolicy(ctx context.Context, id string) (*PolicyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p                    PolicyRecord
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, config_json, version, created_at, updated_at FROM policies WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.ConfigJSON, &p.Version, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: "policy", ID: id}
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// =============================================================================
// SWEEP RUNS
// =============================================================================

// SweepRun tracks one scheduled compliance sweep.
type SweepRun struct {
	ID            string
	AsOf          generic.Date
	Status        string // running, completed, failed
	ActiveCount   int
	OwingCount    int
	InactiveCount int
	Error         string
	StartedAt     time.Time
	CompletedAt   *time.Time
}

// SaveSweepRun inserts or updates a sweep run.
func (s *Store) SaveSweepRun(ctx context.Context, r SweepRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO sweep_runs (id, as_of, status, active_count, owing_count, inactive_count,
			error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			active_count = excluded.active_count,
			owing_count = excluded.owing_count,
			inactive_count = excluded.inactive_count,
			error = excluded.error,
			completed_at = excluded.completed_at
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.AsOf.String(), r.Status, r.ActiveCount, r.OwingCount, r.InactiveCount,
		nullString(r.Error), formatTime(r.StartedAt), nullTime(r.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save sweep run: %w", err)
	}
	return nil
}

// ListSweepRuns returns the most recent sweep runs first.
func (s *Store) ListSweepRuns(ctx context.Context, limit int) ([]SweepRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, as_of, status, active_count, owing_count, inactive_count, error, started_at, completed_at
		FROM sweep_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SweepRun
	for rows.Next() {
		var (
			r                 SweepRun
			asOf, startedAt   string
			runErr, completed sql.NullString
		)
		if err := rows.Scan(&r.ID, &asOf, &r.Status, &r.ActiveCount, &r.OwingCount, &r.InactiveCount,
			&runErr, &startedAt, &completed); err != nil {
			return nil, err
		}
		r.AsOf, _ = generic.ParseDate(asOf)
		r.Error = runErr.String
		r.StartedAt = parseTime(startedAt)
		if completed.Valid {
			t := parseTime(completed.String)
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"payments", "exemptions", "vehicles", "sweep_runs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// Instants are stored in UTC with nanoseconds so that text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isCheckConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "CHECK constraint failed")
}
