package taxation_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/hassan3xl/taxation-backend/generic"
	"github.com/hassan3xl/taxation-backend/taxation"
	"github.com/hassan3xl/taxation-backend/taxation/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	admin = generic.Actor{ID: "admin-1", Role: generic.RoleAdmin}
	agent = generic.Actor{ID: "agent-7", Role: generic.RoleAgent}
	payer = generic.Actor{ID: "owner-3", Role: generic.RoleTaxPayer}
)

type fixture struct {
	svc   *taxation.Service
	store *store.TxMemory
	clock *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func lagos(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Africa/Lagos")
	require.NoError(t, err)
	return loc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	policy := taxation.DefaultPolicy()
	require.NoError(t, policy.Validate())

	log := logrus.New()
	log.SetOutput(io.Discard)

	mem := store.NewTxMemory()
	clock := &testClock{now: time.Date(2025, time.March, 1, 10, 0, 0, 0, lagos(t))}
	svc := taxation.NewService(mem, policy, log)
	svc.Now = clock.Now
	return &fixture{svc: svc, store: mem, clock: clock}
}

func ngn(s string) generic.Amount {
	return generic.MustParseAmount(s, generic.CurrencyNGN)
}

func mar(d int) generic.Date {
	return generic.NewDate(2025, time.March, d)
}

// registerActive registers a vehicle as admin, activating it at the clock time.
func (f *fixture) registerActive(t *testing.T, plate string) *taxation.Vehicle {
	t.Helper()
	v, err := f.svc.RegisterVehicle(context.Background(), taxation.VehicleRegistration{
		PlateNumber: plate,
		OwnerName:   "Adaeze Okafor",
		PhoneNumber: "+2348030000000",
	}, admin)
	require.NoError(t, err)
	return v
}

func (f *fixture) submit(t *testing.T, vehicleID taxation.VehicleID, start, end generic.Date, actor generic.Actor) taxation.ExemptionID {
	t.Helper()
	id, err := f.svc.SubmitExemption(context.Background(), taxation.ExemptionSubmission{
		VehicleID: vehicleID,
		StartDate: start,
		EndDate:   end,
		Reason:    taxation.ReasonMechanical,
	}, actor)
	require.NoError(t, err)
	return id
}

// =============================================================================
// VEHICLE REGISTRATION AND ACTIVATION
// =============================================================================

func TestRegisterVehicle_AdminVehicleIsActivatedImmediately(t *testing.T) {
	f := newFixture(t)

	v := f.registerActive(t, " lag-123-xy ")

	assert.Equal(t, "LAG-123-XY", v.PlateNumber)
	assert.True(t, v.IsActive)
	assert.True(t, v.IsApproved)
	require.NotNil(t, v.ActivatedAt)
	assert.True(t, v.ActivatedAt.Equal(f.clock.Now()))
	assert.Equal(t, "150.00", v.DailyRate.String(), "policy default rate")
}

func TestRegisterVehicle_AgentVehicleWaitsForApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rate := ngn("200")

	v, err := f.svc.RegisterVehicle(ctx, taxation.VehicleRegistration{
		PlateNumber: "ABJ-555-KK",
		OwnerName:   "Musa Bello",
		DailyRate:   &rate,
	}, agent)
	require.NoError(t, err)

	assert.False(t, v.IsActive)
	assert.False(t, v.IsApproved)
	assert.Nil(t, v.ActivatedAt)
	assert.Equal(t, "200.00", v.DailyRate.String())

	// WHEN: Snapshot before approval
	snap, err := f.svc.GetComplianceSnapshot(ctx, v.ID, mar(20))
	require.NoError(t, err)

	// THEN: Nothing accrues
	assert.Equal(t, 0, snap.ChargeableDays)
	assert.Equal(t, taxation.StatusActive, snap.Status)
}

func TestRegisterVehicle_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerActive(t, "LAG-1")

	_, err := f.svc.RegisterVehicle(ctx, taxation.VehicleRegistration{PlateNumber: "lag-1", OwnerName: "X"}, admin)
	assert.ErrorIs(t, err, generic.ErrConflict, "duplicate plate after normalization")

	_, err = f.svc.RegisterVehicle(ctx, taxation.VehicleRegistration{PlateNumber: "  ", OwnerName: "X"}, admin)
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = f.svc.RegisterVehicle(ctx, taxation.VehicleRegistration{PlateNumber: "LAG-2", OwnerName: "X", TimeZone: "Nowhere/City"}, admin)
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = f.svc.RegisterVehicle(ctx, taxation.VehicleRegistration{PlateNumber: "LAG-3", OwnerName: "X"}, payer)
	assert.ErrorIs(t, err, generic.ErrPermissionDenied)
}

func TestApproveVehicle_StampsActivationOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.RegisterVehicle(ctx, taxation.VehicleRegistration{PlateNumber: "KAN-9", OwnerName: "Ibrahim"}, agent)
	require.NoError(t, err)

	// GIVEN: Approved at 17:30 local on Mar 1 (after the cutoff)
	f.clock.Set(time.Date(2025, time.March, 1, 17, 30, 0, 0, lagos(t)))
	approvedV, err := f.svc.ApproveVehicle(ctx, v.ID, admin)
	require.NoError(t, err)
	require.NotNil(t, approvedV.ActivatedAt)
	first := *approvedV.ActivatedAt

	// WHEN: Deactivated and reactivated a week later
	f.clock.Set(time.Date(2025, time.March, 8, 9, 0, 0, 0, lagos(t)))
	_, err = f.svc.SetVehicleActive(ctx, v.ID, false, admin)
	require.NoError(t, err)
	again, err := f.svc.SetVehicleActive(ctx, v.ID, true, admin)
	require.NoError(t, err)

	// THEN: The original stamp is kept
	require.NotNil(t, again.ActivatedAt)
	assert.True(t, again.ActivatedAt.Equal(first))

	// AND: Mar 1 is not billed (late activation): Mar 2-3 = 2 days
	snap, err := f.svc.GetComplianceSnapshot(ctx, v.ID, mar(3))
	require.NoError(t, err)
	assert.Equal(t, 2, snap.ChargeableDays)
}

func TestApproveVehicle_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.RegisterVehicle(ctx, taxation.VehicleRegistration{PlateNumber: "KAN-9", OwnerName: "Ibrahim"}, agent)
	require.NoError(t, err)

	_, err = f.svc.ApproveVehicle(ctx, v.ID, agent)
	assert.ErrorIs(t, err, generic.ErrPermissionDenied)

	stored, err := f.store.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsApproved)
}

func TestActivateVehicle_ConcurrentCallersAgree(t *testing.T) {
	// GIVEN: Many writers racing to stamp the same vehicle
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.RegisterVehicle(ctx, taxation.VehicleRegistration{PlateNumber: "RACE-1", OwnerName: "R"}, agent)
	require.NoError(t, err)

	base := time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)
	results := make([]time.Time, 20)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			at, err := f.store.ActivateVehicle(ctx, v.ID, base.Add(time.Duration(i)*time.Minute))
			assert.NoError(t, err)
			results[i] = at
		}(i)
	}
	wg.Wait()

	// THEN: Everyone observes the winner's instant
	for _, at := range results {
		assert.True(t, at.Equal(results[0]))
	}
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestRecordPayment_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.registerActive(t, "LAG-100")

	before, err := f.svc.GetComplianceSnapshot(ctx, v.ID, mar(12))
	require.NoError(t, err)

	id, err := f.svc.RecordPayment(ctx, v.ID, ngn("450.50"), taxation.MethodAgent, "", agent)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	after, err := f.svc.GetComplianceSnapshot(ctx, v.ID, mar(12))
	require.NoError(t, err)

	assert.True(t, after.TotalPaid.Sub(before.TotalPaid).Equal(ngn("450.50")))
	assert.True(t, after.Balance.Sub(before.Balance).Equal(ngn("450.50")))

	payments, err := f.store.LoadPayments(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "agent-7", payments[0].CollectedBy, "agent collections default to the agent")
}

func TestRecordPayment_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.registerActive(t, "LAG-100")

	tests := []struct {
		name    string
		vehicle taxation.VehicleID
		amount  generic.Amount
		method  taxation.PaymentMethod
		actor   generic.Actor
		target  error
	}{
		{"negative amount", v.ID, ngn("-1"), taxation.MethodBank, agent, generic.ErrValidation},
		{"unknown method", v.ID, ngn("10"), "cheque", agent, generic.ErrValidation},
		{"wrong currency", v.ID, generic.MustParseAmount("10", generic.CurrencyUSD), taxation.MethodBank, agent, generic.ErrValidation},
		{"unknown vehicle", "missing", ngn("10"), taxation.MethodBank, agent, generic.ErrNotFound},
		{"taxpayer", v.ID, ngn("10"), taxation.MethodOnline, payer, generic.ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordPayment(ctx, tt.vehicle, tt.amount, tt.method, "", tt.actor)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	payments, err := f.store.LoadPayments(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, payments, "failed payments leave no trace")

	// Zero is allowed; system actors record online payments
	_, err = f.svc.RecordPayment(ctx, v.ID, ngn("0"), taxation.MethodOnline, "", generic.SystemActor)
	assert.NoError(t, err)
}

// =============================================================================
// EXEMPTION WORKFLOW
// =============================================================================

func TestSubmitExemption_AgentCreatesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.registerActive(t, "LAG-200")

	id := f.submit(t, v.ID, mar(5), mar(8), agent)

	e, err := f.store.GetExemption(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, taxation.ExemptionPending, e.State)
	assert.Equal(t, "agent-7", e.SubmittedBy)
	assert.Empty(t, e.ApprovedBy)

	pending, err := f.svc.ListPendingExemptions(ctx, admin)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)

	// Pending periods do not excuse anything
	snap, err := f.svc.GetComplianceSnapshot(ctx, v.ID, mar(12))
	require.NoError(t, err)
	assert.Equal(t, 0, snap.ExcusedDays)
}

func TestSubmitExemption_AdminAutoApproves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.registerActive(t, "LAG-201")

	id := f.submit(t, v.ID, mar(5), mar(8), admin)

	e, err := f.store.GetExemption(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, taxation.ExemptionApproved, e.State)
	assert.Equal(t, "admin-1", e.ApprovedBy)
	require.NotNil(t, e.DecidedAt)

	// Scenario: 12 days, 4 excused, 1200 expected => still inactive
	snap, err := f.svc.GetComplianceSnapshot(ctx, v.ID, mar(12))
	require.NoError(t, err)
	assert.Equal(t, 12, snap.ChargeableDays)
	assert.Equal(t, 4, snap.ExcusedDays)
	assert.Equal(t, "-1200.00", snap.Balance.String())
	assert.Equal(t, taxation.StatusInactiveDueToDebt, snap.Status)
}

func TestSubmitExemption_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.registerActive(t, "LAG-202")

	sub := taxation.ExemptionSubmission{VehicleID: v.ID, StartDate: mar(9), EndDate: mar(8), Reason: taxation.ReasonSickness}
	_, err := f.svc.SubmitExemption(ctx, sub, agent)
	assert.ErrorIs(t, err, generic.ErrValidation)
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	sub.EndDate = mar(10)
	_, err = f.svc.SubmitExemption(ctx, sub, payer)
	assert.ErrorIs(t, err, generic.ErrPermissionDenied)

	sub.Reason = "holiday"
	_, err = f.svc.SubmitExemption(ctx, sub, agent)
	assert.ErrorIs(t, err, generic.ErrValidation)

	sub.Reason = taxation.ReasonTheft
	sub.VehicleID = "missing"
	_, err = f.svc.SubmitExemption(ctx, sub, agent)
	assert.ErrorIs(t, err, generic.ErrNotFound)

	history, err := f.svc.VehicleExemptions(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, history, "nothing persisted")
}

func TestDecideExemption_TransitionTable(t *testing.T) {
	tests := []struct {
		name      string
		first     taxation.Decision
		second    taxation.Decision
		wantState taxation.ExemptionState
		wantErr   error
	}{
		{"approve twice is idempotent", taxation.DecisionApprove, taxation.DecisionApprove, taxation.ExemptionApproved, nil},
		{"reject twice is idempotent", taxation.DecisionReject, taxation.DecisionReject, taxation.ExemptionRejected, nil},
		{"approve after reject conflicts", taxation.DecisionReject, taxation.DecisionApprove, taxation.ExemptionRejected, generic.ErrConflict},
		{"reject after approve conflicts", taxation.DecisionApprove, taxation.DecisionReject, taxation.ExemptionApproved, generic.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			v := f.registerActive(t, "LAG-300")
			id := f.submit(t, v.ID, mar(2), mar(3), agent)

			_, err := f.svc.DecideExemption(ctx, id, tt.first, admin)
			require.NoError(t, err)

			_, err = f.svc.DecideExemption(ctx, id, tt.second, admin)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			stored, err := f.store.GetExemption(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, stored.State)
			assert.Equal(t, 1, stored.Version, "only the first decision changes the record")
		})
	}
}

func TestDecideExemption_NonAdmin_NoStateChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.registerActive(t, "LAG-301")
	id := f.submit(t, v.ID, mar(2), mar(3), agent)

	_, err := f.svc.DecideExemption(ctx, id, taxation.DecisionApprove, agent)

	var permErr *generic.PermissionError
	require.ErrorAs(t, err, &permErr)
	assert.Equal(t, generic.RoleAgent, permErr.Actor.Role)

	stored, err := f.store.GetExemption(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, taxation.ExemptionPending, stored.State)

	_, err = f.svc.DecideExemption(ctx, "missing", taxation.DecisionApprove, admin)
	assert.True(t, generic.IsNotFound(err))
}

func TestRejectExemption_SnapshotUnchanged(t *testing.T) {
	// GIVEN: Two identical vehicles, one with a rejected request
	f := newFixture(t)
	ctx := context.Background()
	with := f.registerActive(t, "LAG-400")
	without := f.registerActive(t, "LAG-401")

	id := f.submit(t, with.ID, mar(2), mar(6), agent)
	rejected, err := f.svc.DecideExemption(ctx, id, taxation.DecisionReject, admin)
	require.NoError(t, err)
	assert.Equal(t, taxation.ExemptionRejected, rejected.State)

	// THEN: Their snapshots match, apart from the vehicle ID
	a, err := f.svc.GetComplianceSnapshot(ctx, with.ID, mar(12))
	require.NoError(t, err)
	b, err := f.svc.GetComplianceSnapshot(ctx, without.ID, mar(12))
	require.NoError(t, err)
	assert.Equal(t, a.ChargeableDays, b.ChargeableDays)
	assert.Equal(t, a.ExcusedDays, b.ExcusedDays)
	assert.Equal(t, a.BillableDays, b.BillableDays)
	assert.True(t, a.ExpectedRevenue.Equal(b.ExpectedRevenue))
	assert.True(t, a.Balance.Equal(b.Balance))
	assert.Equal(t, a.Status, b.Status)

	// AND: The rejected request stays in the history
	history, err := f.svc.VehicleExemptions(ctx, with.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, taxation.ExemptionRejected, history[0].State)
}

func TestDecideExemption_ConcurrentDecisions_OneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.registerActive(t, "LAG-500")
	id := f.submit(t, v.ID, mar(2), mar(3), agent)

	decisions := []taxation.Decision{taxation.DecisionApprove, taxation.DecisionReject}
	errs := make([]error, len(decisions))
	var wg sync.WaitGroup
	for i, d := range decisions {
		wg.Add(1)
		go func(i int, d taxation.Decision) {
			defer wg.Done()
			_, errs[i] = f.svc.DecideExemption(ctx, id, d, admin)
		}(i, d)
	}
	wg.Wait()

	// THEN: Exactly one decision took effect; the other conflicts
	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.True(t, errors.Is(err, generic.ErrConflict) || generic.IsRetryable(err), err.Error())
		}
	}
	assert.Equal(t, 1, failures)

	stored, err := f.store.GetExemption(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
	assert.NotEqual(t, taxation.ExemptionPending, stored.State)
}

func TestDeleteExemption_AdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.registerActive(t, "LAG-600")
	id := f.submit(t, v.ID, mar(2), mar(3), admin)

	assert.ErrorIs(t, f.svc.DeleteExemption(ctx, id, agent), generic.ErrPermissionDenied)
	require.NoError(t, f.svc.DeleteExemption(ctx, id, admin))
	assert.True(t, generic.IsNotFound(f.svc.DeleteExemption(ctx, id, admin)))

	snap, err := f.svc.GetComplianceSnapshot(ctx, v.ID, mar(12))
	require.NoError(t, err)
	assert.Equal(t, 0, snap.ExcusedDays)
}

func TestListPendingExemptions_AdminOnly_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.registerActive(t, "LAG-700")

	first := f.submit(t, v.ID, mar(2), mar(3), agent)
	f.clock.Set(f.clock.Now().Add(time.Hour))
	second := f.submit(t, v.ID, mar(10), mar(11), agent)

	_, err := f.svc.ListPendingExemptions(ctx, agent)
	assert.ErrorIs(t, err, generic.ErrPermissionDenied)

	pending, err := f.svc.ListPendingExemptions(ctx, admin)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, second, pending[0].ID)
	assert.Equal(t, first, pending[1].ID)

	history, err := f.svc.VehicleExemptions(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, mar(10), history[0].Period.Start, "newest start first")
}

// =============================================================================
// STATUS VIEWS AND SWEEP
// =============================================================================

func TestVehicleStatus_RecentPaymentsAndActiveExemption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.registerActive(t, "LAG-800")

	for i := 0; i < 5; i++ {
		f.clock.Set(f.clock.Now().Add(time.Hour))
		_, err := f.svc.RecordPayment(ctx, v.ID, ngn("100"), taxation.MethodBank, "", agent)
		require.NoError(t, err)
	}
	exemptionID := f.submit(t, v.ID, mar(10), mar(14), admin)

	st, err := f.svc.StatusByPlate(ctx, "lag-800", mar(12))
	require.NoError(t, err)

	assert.Equal(t, v.ID, st.Vehicle.ID)
	require.Len(t, st.RecentPayments, taxation.RecentPaymentsLimit)
	assert.True(t, st.RecentPayments[0].Timestamp.After(st.RecentPayments[2].Timestamp))
	require.NotNil(t, st.ActiveExemption)
	assert.Equal(t, exemptionID, st.ActiveExemption.ID)

	// 12 chargeable, 3 excused (Mar 10-12), 9 x 150 = 1350, paid 500
	assert.Equal(t, "-850.00", st.Snapshot.Balance.String())
	assert.Equal(t, taxation.StatusOwing, st.Snapshot.Status)

	_, err = f.svc.StatusByPlate(ctx, "NOPE-1", mar(12))
	assert.True(t, generic.IsNotFound(err))
}

func TestSweepCompliance_CountsByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paid := f.registerActive(t, "SW-1")
	owing := f.registerActive(t, "SW-2")
	f.registerActive(t, "SW-3") // unpaid => in debt by Mar 12
	_, err := f.svc.RegisterVehicle(ctx, taxation.VehicleRegistration{PlateNumber: "SW-4", OwnerName: "P"}, agent)
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(ctx, paid.ID, ngn("1800"), taxation.MethodBank, "", agent)
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, owing.ID, ngn("1000"), taxation.MethodBank, "", agent)
	require.NoError(t, err)

	result, err := f.svc.SweepCompliance(ctx, mar(12))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Counts[taxation.StatusActive], "paid + unapproved")
	assert.Equal(t, 1, result.Counts[taxation.StatusOwing])
	assert.Equal(t, 1, result.Counts[taxation.StatusInactiveDueToDebt])
	assert.Len(t, result.Inactive, 1)
}

func TestDefaultAsOf_UsesVehicleZone(t *testing.T) {
	// GIVEN: A Tokyo vehicle activated Mar 1 at 14:00 Tokyo (06:00 Lagos)
	f := newFixture(t)
	ctx := context.Background()
	f.clock.Set(time.Date(2025, time.March, 1, 6, 0, 0, 0, lagos(t)))
	v, err := f.svc.RegisterVehicle(ctx, taxation.VehicleRegistration{
		PlateNumber: "TYO-1",
		OwnerName:   "Kenji Sato",
		TimeZone:    "Asia/Tokyo",
	}, admin)
	require.NoError(t, err)

	// WHEN: It is Mar 3 20:00 in Lagos, already Mar 4 in Tokyo
	f.clock.Set(time.Date(2025, time.March, 3, 20, 0, 0, 0, lagos(t)))

	// THEN: Without an as-of date the vehicle is billed through its own today
	snap, err := f.svc.GetComplianceSnapshot(ctx, v.ID, generic.Date{})
	require.NoError(t, err)
	assert.Equal(t, mar(4), snap.AsOf)
	assert.Equal(t, 4, snap.ChargeableDays)

	st, err := f.svc.VehicleStatus(ctx, v.ID, generic.Date{})
	require.NoError(t, err)
	assert.Equal(t, mar(4), st.Snapshot.AsOf)

	explicit, err := f.svc.GetComplianceSnapshot(ctx, v.ID, mar(3))
	require.NoError(t, err)
	assert.Equal(t, 3, explicit.ChargeableDays)

	assert.Equal(t, mar(3), f.svc.Today())
	result, err := f.svc.SweepCompliance(ctx, generic.Date{})
	require.NoError(t, err)
	assert.Equal(t, mar(3), result.AsOf, "sweep reports the deployment date")
}
