package benefit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var admin = benefit.Actor{ID: "adm-1", Roles: []string{benefit.RoleAdmin}}

func seed(t *testing.T, store *memory.Memory) {
	t.Helper()
	ctx := context.Background()

	next := period2025()
	require.NoError(t, store.SavePeriod(ctx, *next))
	require.NoError(t, store.SavePeriod(ctx, *period2024(&next.ID)))
	require.NoError(t, store.SaveEmployee(ctx, benefit.Employee{ID: "emp-1", Name: "Ana", Ceiling: amt("1000")}))
	require.NoError(t, store.SaveEmployee(ctx, benefit.Employee{ID: "emp-2", Name: "Bruno", Ceiling: amt("500")}))
	require.NoError(t, store.SaveExpenseType(ctx, benefit.ExpenseType{
		ID:             "health",
		Name:           "Health plan",
		AllowedOrigins: []benefit.Origin{benefit.OriginSelf, benefit.OriginSpouse},
		Classification: benefit.ClassificationFixed,
	}))
}

func newTestService(t *testing.T, now time.Time, opts ...benefit.Option) (*benefit.ClaimService, *memory.Memory) {
	t.Helper()
	store := memory.New()
	seed(t, store)
	return benefit.NewClaimService(store, generic.FixedClock(now), opts...), store
}

func submission(requested string) benefit.SubmitInput {
	return benefit.SubmitInput{
		EmployeeID:    "emp-1",
		PeriodID:      "p-2024",
		ExpenseTypeID: "health",
		Origin:        benefit.OriginSelf,
		Description:   "monthly fee",
		ExpenseDate:   generic.MustParseDate("2023-06-01"),
		Requested:     amt(requested),
	}
}

func mustSubmit(t *testing.T, svc *benefit.ClaimService, in benefit.SubmitInput) benefit.Claim {
	t.Helper()
	res, err := svc.Submit(context.Background(), employee, in)
	require.NoError(t, err)
	require.NotNil(t, res.Claim)
	return *res.Claim
}

// subCent builds an amount that ParseAmount would refuse.
func subCent(s string) generic.Amount {
	return generic.NewAmountFromDecimal(decimal.RequireFromString(s))
}

type nopLocker struct{}

func (nopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_WithinWindow_FullyConsidered(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))

	res, err := svc.Submit(context.Background(), employee, submission("250"))

	require.NoError(t, err)
	assert.Equal(t, benefit.OutcomeCurrent, res.Resolution.Outcome)
	require.NotNil(t, res.Allocation)
	assert.Equal(t, benefit.CodeFullyConsidered, res.Allocation.Code)
	assert.Equal(t, benefit.StatusSubmitted, res.Claim.Status)
	assert.Equal(t, benefit.PeriodID("p-2024"), res.Claim.PeriodID)
	assert.True(t, res.Claim.Considered.Equal(amt("250")))
	assert.Equal(t, "emp-1", res.Claim.SubmittedBy)
}

func TestSubmit_PartialThenBlocked(t *testing.T) {
	// GIVEN: Ceiling 1000 with 800 already claimed
	// WHEN: Claiming 300, then 50
	// THEN: 200/100 split, then refused because the period overflowed

	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()
	mustSubmit(t, svc, submission("800"))

	res, err := svc.Submit(ctx, employee, submission("300"))
	require.NoError(t, err)
	assert.True(t, res.Allocation.BlockedAfter)
	assert.True(t, res.Claim.Considered.Equal(amt("200")))
	assert.True(t, res.Claim.NotConsidered.Equal(amt("100")))

	res, err = svc.Submit(ctx, employee, submission("50"))
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrPolicy)
	assert.Nil(t, res.Claim)
	require.NotNil(t, res.Allocation)
	assert.Equal(t, benefit.CodeBlockedByOverflow, res.Allocation.Code)
	assert.True(t, res.Allocation.NotConsidered.Equal(amt("50")))
}

func TestSubmit_CeilingRaise_LiftsOverflowBlock(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()
	mustSubmit(t, svc, submission("1200"))

	_, err := svc.Submit(ctx, employee, submission("10"))
	require.ErrorIs(t, err, generic.ErrPolicy)

	_, err = svc.SaveEmployee(ctx, admin, benefit.Employee{ID: "emp-1", Name: "Ana", Ceiling: amt("1500")})
	require.NoError(t, err)

	c := mustSubmit(t, svc, submission("10"))
	assert.True(t, c.Considered.Equal(amt("10")))
}

func TestSubmit_RejectionFreesRoom(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()
	first := mustSubmit(t, svc, submission("1000"))

	_, err := svc.Submit(ctx, employee, submission("100"))
	require.ErrorIs(t, err, generic.ErrPolicy)

	_, err = svc.Reject(ctx, approver, first.ID, "not eligible")
	require.NoError(t, err)

	c := mustSubmit(t, svc, submission("100"))
	assert.True(t, c.Considered.Equal(amt("100")))
}

func TestSubmit_AfterWindow_RedirectedToNextPeriod(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-25", 10, 0))

	res, err := svc.Submit(context.Background(), employee, submission("100"))

	require.NoError(t, err)
	assert.Equal(t, benefit.OutcomeRedirected, res.Resolution.Outcome)
	assert.Equal(t, benefit.PeriodID("p-2025"), res.Claim.PeriodID)
}

func TestSubmit_BeforeWindow_Blocked(t *testing.T) {
	svc, store := newTestService(t, at("2024-01-02", 10, 0))

	res, err := svc.Submit(context.Background(), employee, submission("100"))

	assert.ErrorIs(t, err, generic.ErrPolicy)
	assert.Equal(t, benefit.CodeNotYetOpen, res.Resolution.Code)
	claims, _ := store.ListClaims(context.Background(), benefit.ClaimFilter{})
	assert.Empty(t, claims)
}

func TestSubmit_Validation(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*benefit.SubmitInput)
	}{
		{"zero amount", func(in *benefit.SubmitInput) { in.Requested = generic.Zero }},
		{"negative amount", func(in *benefit.SubmitInput) { in.Requested = amt("-5") }},
		{"origin not allowed for type", func(in *benefit.SubmitInput) { in.Origin = benefit.OriginChildren }},
		{"unknown origin", func(in *benefit.SubmitInput) { in.Origin = "other" }},
		{"expense date outside accrual", func(in *benefit.SubmitInput) { in.ExpenseDate = generic.MustParseDate("2021-03-01") }},
		{"missing expense date", func(in *benefit.SubmitInput) { in.ExpenseDate = generic.Date{} }},
		{"sub-cent amount", func(in *benefit.SubmitInput) { in.Requested = subCent("999.995") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := submission("100")
			tt.mutate(&in)
			_, err := svc.Submit(ctx, employee, in)
			assert.ErrorIs(t, err, generic.ErrValidation)
		})
	}
}

func TestSubmit_DuplicateReceipt(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()

	in := submission("100")
	in.ReceiptSignature = "sha256:abc"
	first := mustSubmit(t, svc, in)

	_, err := svc.Submit(ctx, employee, in)
	assert.ErrorIs(t, err, generic.ErrValidation)

	// A rejected claim releases its receipt.
	_, err = svc.Reject(ctx, approver, first.ID, "wrong receipt")
	require.NoError(t, err)
	mustSubmit(t, svc, in)
}

func TestSubmit_OnBehalf_RequiresRole(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()

	_, err := svc.Submit(ctx, benefit.Actor{ID: "emp-2"}, submission("100"))
	assert.ErrorIs(t, err, generic.ErrUnauthorized)

	_, err = svc.Submit(ctx, approver, submission("100"))
	assert.NoError(t, err)
}

func TestSubmit_UnknownEmployee_NotFound(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))

	in := submission("100")
	in.EmployeeID = "ghost"
	_, err := svc.Submit(context.Background(), approver, in)

	assert.True(t, generic.IsNotFound(err))
}

func TestSubmit_Concurrent_NeverExceedsCeiling(t *testing.T) {
	// GIVEN: Ceiling 1000
	// WHEN: 25 concurrent claims of 100
	// THEN: Exactly 10 are admitted, total considered is the ceiling

	for name, locker := range map[string]generic.Locker{
		"keyed mutex":                             generic.NewKeyedMutex(),
		"no locker, store transaction serializes": nopLocker{},
	} {
		t.Run(name, func(t *testing.T) {
			svc, store := newTestService(t, at("2024-01-15", 10, 0),
				benefit.WithLocker(locker), benefit.WithRetries(50))
			ctx := context.Background()

			var wg sync.WaitGroup
			for i := 0; i < 25; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = svc.Submit(ctx, employee, submission("100"))
				}()
			}
			wg.Wait()

			claims, err := store.ListClaims(ctx, benefit.ClaimFilter{EmployeeID: "emp-1", PeriodID: "p-2024"})
			require.NoError(t, err)
			assert.Len(t, claims, 10)
			total := generic.Zero
			for _, c := range claims {
				total = total.Add(c.Considered)
			}
			assert.True(t, total.Equal(amt("1000")), "total considered %s", total)
		})
	}
}

type conflictCounter struct{ conflicts int }

func (c *conflictCounter) AllocationDecided(string)         {}
func (c *conflictCounter) ClaimTransitioned(benefit.Status) {}
func (c *conflictCounter) ConflictDetected()                { c.conflicts++ }

// staleHeadStore fails the next n ledger writes as if another writer had
// advanced the head between the read and the write.
type staleHeadStore struct {
	*memory.Memory
	n int
}

func (s *staleHeadStore) WithTx(ctx context.Context, fn func(benefit.Store) error) error {
	return s.Memory.WithTx(ctx, func(tx benefit.Store) error {
		return fn(&staleHeadTx{Store: tx, parent: s})
	})
}

type staleHeadTx struct {
	benefit.Store
	parent *staleHeadStore
}

func (t *staleHeadTx) CreateClaim(ctx context.Context, c benefit.Claim, head int64) error {
	if t.parent.n > 0 {
		t.parent.n--
		return &generic.ConflictError{Resource: "ledger emp-1/p-2024"}
	}
	return t.Store.CreateClaim(ctx, c, head)
}

func TestSubmit_StaleHead_RedecidesAndWritesOnce(t *testing.T) {
	// GIVEN: A store whose first two ledger writes see a moved head
	// WHEN: One claim is submitted with three retries
	// THEN: The decision is recomputed twice and exactly one claim is stored

	store := &staleHeadStore{Memory: memory.New(), n: 2}
	seed(t, store.Memory)
	observer := &conflictCounter{}
	svc := benefit.NewClaimService(store, generic.FixedClock(at("2024-01-15", 10, 0)),
		benefit.WithLocker(nopLocker{}), benefit.WithObserver(observer), benefit.WithRetries(3))
	ctx := context.Background()

	res, err := svc.Submit(ctx, employee, submission("100"))

	require.NoError(t, err)
	assert.True(t, res.Claim.Considered.Equal(amt("100")))
	assert.Equal(t, 2, observer.conflicts)
	claims, err := store.ListClaims(ctx, benefit.ClaimFilter{})
	require.NoError(t, err)
	assert.Len(t, claims, 1)
}

func TestSubmit_StaleHead_GivesUpAfterRetries(t *testing.T) {
	store := &staleHeadStore{Memory: memory.New(), n: 10}
	seed(t, store.Memory)
	svc := benefit.NewClaimService(store, generic.FixedClock(at("2024-01-15", 10, 0)),
		benefit.WithLocker(nopLocker{}), benefit.WithRetries(2))

	_, err := svc.Submit(context.Background(), employee, submission("100"))

	assert.ErrorIs(t, err, generic.ErrConcurrentModification)
	claims, _ := store.ListClaims(context.Background(), benefit.ClaimFilter{})
	assert.Empty(t, claims)
}

// =============================================================================
// EDIT
// =============================================================================

func TestEdit_RecomputesExcludingItself(t *testing.T) {
	// GIVEN: Claim A 600 and claim B 300 against a ceiling of 1000
	// WHEN: A is edited to 800
	// THEN: A is measured against 1000 - 300 = 700

	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	a := mustSubmit(t, svc, submission("600"))
	mustSubmit(t, svc, submission("300"))

	requested := amt("800")
	edited, alloc, err := svc.Edit(context.Background(), approver, a.ID, benefit.EditInput{Requested: &requested})

	require.NoError(t, err)
	assert.True(t, edited.Considered.Equal(amt("700")))
	assert.True(t, edited.NotConsidered.Equal(amt("100")))
	assert.True(t, alloc.BlockedAfter)
	assert.Equal(t, benefit.StatusSubmitted, edited.Status)
	assert.Equal(t, a.Version+1, edited.Version)
}

func TestEdit_SubCentAmount_Refused(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	c := mustSubmit(t, svc, submission("100"))

	requested := subCent("100.001")
	_, _, err := svc.Edit(context.Background(), approver, c.ID, benefit.EditInput{Requested: &requested})

	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "requested", verr.Field)
}

func TestEdit_TerminalClaim_Refused(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()
	c := mustSubmit(t, svc, submission("100"))
	_, err := svc.Approve(ctx, approver, c.ID)
	require.NoError(t, err)

	desc := "changed"
	_, _, err = svc.Edit(ctx, approver, c.ID, benefit.EditInput{Description: &desc})

	assert.ErrorIs(t, err, generic.ErrPolicy)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func TestApprove_ThenApproveAgain_IsError(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()
	c := mustSubmit(t, svc, submission("100"))

	approved, err := svc.Approve(ctx, approver, c.ID)
	require.NoError(t, err)
	assert.Equal(t, benefit.StatusApproved, approved.Status)

	_, err = svc.Approve(ctx, approver, c.ID)
	assert.ErrorIs(t, err, generic.ErrPolicy)
}

func TestStartReview_ThenReject(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()
	c := mustSubmit(t, svc, submission("100"))

	inReview, err := svc.StartReview(ctx, approver, c.ID)
	require.NoError(t, err)
	assert.Equal(t, benefit.StatusInReview, inReview.Status)

	rejected, err := svc.Reject(ctx, approver, c.ID, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, benefit.StatusRejected, rejected.Status)
	assert.Equal(t, "duplicate", rejected.RejectionReason)
}

func TestApprove_WithoutRole_Unauthorized(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	c := mustSubmit(t, svc, submission("100"))

	_, err := svc.Approve(context.Background(), employee, c.ID)

	assert.ErrorIs(t, err, generic.ErrUnauthorized)
}

func TestApproveMany_PartialFailure(t *testing.T) {
	// GIVEN: Claim A submitted, claim B already rejected
	// WHEN: Approving both in one batch
	// THEN: One success, one per-item error

	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()
	a := mustSubmit(t, svc, submission("100"))
	b := mustSubmit(t, svc, submission("100"))
	_, err := svc.Reject(ctx, approver, b.ID, "no receipt")
	require.NoError(t, err)

	result, err := svc.ApproveMany(ctx, approver, []benefit.ClaimID{a.ID, b.ID})

	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, []benefit.BatchError{{ID: b.ID, Message: "invalid transition"}}, result.Errors)
}

func TestRejectMany_UnknownID_ReportedPerItem(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()
	a := mustSubmit(t, svc, submission("100"))

	result, err := svc.RejectMany(ctx, approver, []benefit.ClaimID{a.ID, "missing"}, "out of policy")

	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, benefit.ClaimID("missing"), result.Errors[0].ID)
}

func TestRejectMany_BlankReason_FailsWholeBatch(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))

	_, err := svc.RejectMany(context.Background(), approver, []benefit.ClaimID{"a"}, "")

	assert.ErrorIs(t, err, generic.ErrValidation)
}

// =============================================================================
// AUDIT
// =============================================================================

func TestAudit_RecordsEveryTransition(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()
	c := mustSubmit(t, svc, submission("100"))
	_, err := svc.StartReview(ctx, approver, c.ID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, approver, c.ID)
	require.NoError(t, err)

	history, err := svc.ClaimHistory(ctx, c.ID)

	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, generic.AuditClaimCreated, history[0].Action)
	assert.Equal(t, generic.AuditClaimReviewStart, history[1].Action)
	assert.Equal(t, generic.AuditClaimApproved, history[2].Action)
	assert.Equal(t, "claim", history[2].EntityType)
	assert.Equal(t, "rev-1", history[2].ActorID)
	assert.Equal(t, "em_analise", history[2].OldValues["status"])
	assert.Equal(t, "valido", history[2].NewValues["status"])
}

func TestAudit_SinkFailure_DoesNotBlock(t *testing.T) {
	failing := benefit.AuditSinkFunc(func(context.Context, generic.AuditEntry) error {
		return errors.New("audit backend down")
	})
	svc, _ := newTestService(t, at("2024-01-15", 10, 0), benefit.WithAuditSink(failing))
	c := mustSubmit(t, svc, submission("100"))

	_, err := svc.Approve(context.Background(), approver, c.ID)

	assert.NoError(t, err)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestLedger_ReflectsStatuses(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()
	a := mustSubmit(t, svc, submission("300"))
	b := mustSubmit(t, svc, submission("200"))
	mustSubmit(t, svc, submission("100"))
	_, err := svc.Approve(ctx, approver, a.ID)
	require.NoError(t, err)
	_, err = svc.Reject(ctx, approver, b.ID, "no")
	require.NoError(t, err)

	snap, err := svc.Ledger(ctx, "emp-1", "p-2024")

	require.NoError(t, err)
	assert.True(t, snap.ApprovedSum.Equal(amt("300")))
	assert.True(t, snap.PendingSum.Equal(amt("100")))
	assert.True(t, snap.RejectedSum.Equal(amt("200")))
	assert.True(t, snap.Remaining.Equal(amt("700")))
}

func TestEligibility_PreviewsWithoutWriting(t *testing.T) {
	svc, store := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()
	mustSubmit(t, svc, submission("800"))

	preview, err := svc.Eligibility(ctx, "emp-1", "p-2024", amt("300"))

	require.NoError(t, err)
	require.NotNil(t, preview.Allocation)
	assert.True(t, preview.Allocation.Considered.Equal(amt("200")))
	claims, _ := store.ListClaims(ctx, benefit.ClaimFilter{})
	assert.Len(t, claims, 1)
}

func TestTaxableConversion_PerEmployee(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()
	c := mustSubmit(t, svc, submission("600"))
	mustSubmit(t, svc, submission("100"))
	_, err := svc.Approve(ctx, approver, c.ID)
	require.NoError(t, err)

	report, err := svc.TaxableConversion(ctx, "p-2024")

	require.NoError(t, err)
	assert.False(t, report.Final)
	require.Len(t, report.Items, 2)
	assert.Equal(t, benefit.EmployeeID("emp-1"), report.Items[0].EmployeeID)
	assert.True(t, report.Items[0].Amount.Equal(amt("400")), "pending claims do not count")
	assert.True(t, report.Items[1].Amount.Equal(amt("500")))
	assert.True(t, report.Total.Equal(amt("900")))
}

// =============================================================================
// ADMINISTRATION
// =============================================================================

func TestClosePeriod_RedirectsNewClaims(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()

	closed, err := svc.ClosePeriod(ctx, admin, "p-2024")
	require.NoError(t, err)
	assert.Equal(t, benefit.PeriodClosed, closed.Status)

	res, err := svc.Submit(ctx, employee, submission("100"))
	require.NoError(t, err)
	assert.Equal(t, benefit.PeriodID("p-2025"), res.Claim.PeriodID)

	closed.Status = benefit.PeriodOpen
	_, err = svc.SavePeriod(ctx, admin, *closed)
	assert.ErrorIs(t, err, generic.ErrPolicy, "closing is final")
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()

	_, err := svc.ClosePeriod(ctx, approver, "p-2024")
	assert.ErrorIs(t, err, generic.ErrUnauthorized)

	_, err = svc.SaveEmployee(ctx, approver, benefit.Employee{ID: "emp-1", Ceiling: amt("5")})
	assert.ErrorIs(t, err, generic.ErrUnauthorized)
}

func TestSaveEmployee_AuditsCeilingChange(t *testing.T) {
	svc, store := newTestService(t, at("2024-01-15", 10, 0))
	ctx := context.Background()

	_, err := svc.SaveEmployee(ctx, admin, benefit.Employee{ID: "emp-1", Name: "Ana", Ceiling: amt("1200")})
	require.NoError(t, err)

	entries, err := store.QueryAudit(ctx, generic.AuditFilter{Actions: []generic.AuditAction{generic.AuditCeilingChanged}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "1000.00", entries[0].OldValues["ceiling"])
	assert.Equal(t, "1200.00", entries[0].NewValues["ceiling"])
}

func TestSaveEmployee_SubCentCeiling_Refused(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))

	_, err := svc.SaveEmployee(context.Background(), admin, benefit.Employee{ID: "emp-1", Ceiling: subCent("1000.005")})

	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestSaveExpenseType_Validates(t *testing.T) {
	svc, _ := newTestService(t, at("2024-01-15", 10, 0))

	_, err := svc.SaveExpenseType(context.Background(), admin, benefit.ExpenseType{
		ID: "gym", Name: "Gym", Classification: "other", AllowedOrigins: []benefit.Origin{benefit.OriginSelf},
	})

	assert.ErrorIs(t, err, generic.ErrValidation)
}
