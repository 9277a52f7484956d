package sqlite_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seed(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	next := benefit.PeriodID("p-2025")
	require.NoError(t, store.SavePeriod(ctx, benefit.Period{
		ID: "p-2025", Label: "2025", Status: benefit.PeriodOpen,
		Accrual:    generic.Window{Start: generic.NewDate(2024, 1, 1), End: generic.NewDate(2024, 12, 31)},
		Submission: generic.Window{Start: generic.NewDate(2025, 1, 11), End: generic.NewDate(2025, 1, 20)},
		CreatedAt:  now, UpdatedAt: now,
	}))
	require.NoError(t, store.SavePeriod(ctx, benefit.Period{
		ID: "p-2024", Label: "2024", Status: benefit.PeriodOpen, NextPeriodID: &next,
		Accrual:    generic.Window{Start: generic.NewDate(2023, 1, 1), End: generic.NewDate(2023, 12, 31)},
		Submission: generic.Window{Start: generic.NewDate(2024, 1, 11), End: generic.NewDate(2024, 1, 20)},
		CreatedAt:  now, UpdatedAt: now,
	}))
	require.NoError(t, store.SaveEmployee(ctx, benefit.Employee{
		ID: "emp-1", Name: "Ana", Ceiling: generic.MustParseAmount("1000"), CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.SaveExpenseType(ctx, benefit.ExpenseType{
		ID: "health", Name: "Health plan", Classification: benefit.ClassificationFixed,
		AllowedOrigins: []benefit.Origin{benefit.OriginSelf, benefit.OriginSpouse},
	}))
}

func newClaim(id string, created time.Time) benefit.Claim {
	return benefit.Claim{
		ID:            benefit.ClaimID(id),
		EmployeeID:    "emp-1",
		PeriodID:      "p-2024",
		ExpenseTypeID: "health",
		Origin:        benefit.OriginSelf,
		ExpenseDate:   generic.NewDate(2023, 6, 1),
		Requested:     generic.MustParseAmount("300"),
		Considered:    generic.MustParseAmount("200"),
		NotConsidered: generic.MustParseAmount("100"),
		Status:        benefit.StatusSubmitted,
		SubmittedBy:   "emp-1",
		CreatedAt:     created,
		UpdatedAt:     created,
		Version:       1,
	}
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestPeriod_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)

	p, err := store.GetPeriod(context.Background(), "p-2024")

	require.NoError(t, err)
	assert.Equal(t, "2024", p.Label)
	require.NotNil(t, p.NextPeriodID)
	assert.Equal(t, benefit.PeriodID("p-2025"), *p.NextPeriodID)
	assert.True(t, p.Submission.End.Equal(generic.NewDate(2024, 1, 20)))

	periods, err := store.ListPeriods(context.Background())
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, benefit.PeriodID("p-2024"), periods[0].ID)
}

func TestGet_Missing_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetPeriod(ctx, "nope")
	assert.True(t, generic.IsNotFound(err))
	_, err = store.GetEmployee(ctx, "nope")
	assert.True(t, generic.IsNotFound(err))
	_, err = store.GetExpenseType(ctx, "nope")
	assert.True(t, generic.IsNotFound(err))
	_, err = store.GetClaim(ctx, "nope")
	assert.True(t, generic.IsNotFound(err))
}

func TestExpenseType_OriginsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)

	et, err := store.GetExpenseType(context.Background(), "health")

	require.NoError(t, err)
	assert.Equal(t, []benefit.Origin{benefit.OriginSelf, benefit.OriginSpouse}, et.AllowedOrigins)
	assert.Equal(t, benefit.ClassificationFixed, et.Classification)
}

func TestClaim_CreateAndFilter(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateClaim(ctx, newClaim("c1", base), 0))
	c2 := newClaim("c2", base.Add(500*time.Millisecond))
	c2.ReceiptSignature = "sig-2"
	require.NoError(t, store.CreateClaim(ctx, c2, 1))

	got, err := store.GetClaim(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, got.Considered.Equal(generic.MustParseAmount("200")))
	assert.True(t, got.CreatedAt.Equal(base))
	assert.Nil(t, got.ReviewedAt)

	all, err := store.ListClaims(ctx, benefit.ClaimFilter{EmployeeID: "emp-1", PeriodID: "p-2024"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, benefit.ClaimID("c1"), all[0].ID, "ordered by creation")

	bySig, err := store.ListClaims(ctx, benefit.ClaimFilter{ReceiptSignature: "sig-2", Statuses: []benefit.Status{benefit.StatusSubmitted}})
	require.NoError(t, err)
	require.Len(t, bySig, 1)
	assert.Equal(t, benefit.ClaimID("c2"), bySig[0].ID)

	head, err := store.LedgerHead(ctx, "emp-1", "p-2024")
	require.NoError(t, err)
	assert.Equal(t, int64(2), head)
}

// =============================================================================
// OPTIMISTIC CHECKS
// =============================================================================

func TestCreateClaim_StaleHead_Conflict(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateClaim(ctx, newClaim("c1", now), 0))
	err := store.CreateClaim(ctx, newClaim("c2", now), 0)

	assert.ErrorIs(t, err, generic.ErrConcurrentModification)
	assert.True(t, generic.IsRetryable(err))
}

func TestUpdateClaim_StaleVersion_Conflict(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateClaim(ctx, newClaim("c1", now), 0))

	c, err := store.GetClaim(ctx, "c1")
	require.NoError(t, err)
	reviewed := now.Add(time.Hour)
	c.Status = benefit.StatusApproved
	c.ReviewedBy = "rev-1"
	c.ReviewedAt = &reviewed
	require.NoError(t, store.UpdateClaim(ctx, *c, benefit.AnyHead))

	err = store.UpdateClaim(ctx, *c, benefit.AnyHead)
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)

	stored, err := store.GetClaim(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, benefit.StatusApproved, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
	require.NotNil(t, stored.ReviewedAt)
	assert.True(t, stored.ReviewedAt.Equal(reviewed))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx benefit.Store) error {
		if err := tx.CreateClaim(ctx, newClaim("c1", time.Now()), 0); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	_, err = store.GetClaim(ctx, "c1")
	assert.True(t, generic.IsNotFound(err))
	head, err := store.LedgerHead(ctx, "emp-1", "p-2024")
	require.NoError(t, err)
	assert.Equal(t, int64(0), head)
}

// =============================================================================
// AUDIT
// =============================================================================

func TestAudit_AppendAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendAudit(ctx, generic.AuditEntry{
		ID: "a1", Action: generic.AuditClaimCreated, EntityType: "claim", EntityID: "c1", ActorID: "emp-1",
		NewValues: map[string]any{"status": "enviado"}, Timestamp: ts,
	}))
	require.NoError(t, store.AppendAudit(ctx, generic.AuditEntry{
		ID: "a2", Action: generic.AuditClaimApproved, EntityType: "claim", EntityID: "c1", ActorID: "rev-1",
		OldValues: map[string]any{"status": "enviado"}, NewValues: map[string]any{"status": "valido"},
		Timestamp: ts.Add(time.Minute),
	}))

	entries, err := store.QueryAudit(ctx, generic.AuditFilter{EntityType: "claim", EntityID: "c1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "valido", entries[1].NewValues["status"])
	assert.Nil(t, entries[0].OldValues)

	approvals, err := store.QueryAudit(ctx, generic.AuditFilter{Actions: []generic.AuditAction{generic.AuditClaimApproved}})
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, "rev-1", approvals[0].ActorID)
}

// =============================================================================
// SERVICE ON SQLITE
// =============================================================================

func TestClaimService_ConcurrentSubmissions_RespectCeiling(t *testing.T) {
	// GIVEN: Two service instances sharing one database but not a lock
	// WHEN: Both submit claims concurrently
	// THEN: Ledger heads keep the total within the ceiling

	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()
	clock := generic.FixedClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	svcA := benefit.NewClaimService(store, clock, benefit.WithRetries(50))
	svcB := benefit.NewClaimService(store, clock, benefit.WithRetries(50))
	emp := benefit.Actor{ID: "emp-1"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		svc := svcA
		if i%2 == 1 {
			svc = svcB
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Submit(ctx, emp, benefit.SubmitInput{
				EmployeeID: "emp-1", PeriodID: "p-2024", ExpenseTypeID: "health",
				Origin: benefit.OriginSelf, ExpenseDate: generic.NewDate(2023, 3, 1),
				Requested: generic.MustParseAmount("150"),
			})
		}()
	}
	wg.Wait()

	snap, err := svcA.Ledger(ctx, "emp-1", "p-2024")
	require.NoError(t, err)
	assert.True(t, snap.PendingSum.Equal(generic.MustParseAmount("1000")), "pending %s", snap.PendingSum)

	claims, err := store.ListClaims(ctx, benefit.ClaimFilter{EmployeeID: "emp-1"})
	require.NoError(t, err)
	assert.Len(t, claims, 7, "six full claims and one partial")
}
