/*
service.go - Claim orchestration

PURPOSE:
  ClaimService is the only writer of claims. It strings the pure pieces
  together inside a store transaction:

    Submit:  PeriodResolver -> LedgerAggregator -> QuotaAllocator -> create
    Edit:    LedgerAggregator (without the claim) -> QuotaAllocator -> update
    Review:  ExpenseLifecycle transition -> update

CEILING CHECK THEN WRITE:
  Two submissions for the same employee and period must not both be admitted
  on the same snapshot. Three layers guard it:
    1. A keyed lock on "benefit:ledger:<employee>:<period>" serializes
       writers that share a Locker (in-process, or Redis across nodes).
    2. The read, the decision and the write run in one store transaction.
    3. The write carries the ledger head read at the start; a moved head
       fails with ErrConcurrentModification and the decision is recomputed
       from fresh data, up to Retries times.

AUDIT:
  Every successful write emits an AuditEntry to the AuditSink after commit.
  A sink failure is logged and swallowed.

SEE ALSO:
  - admin.go: Periods, employees and expense types
  - report.go: Ledger, eligibility preview and taxable conversion
*/
package benefit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/warp/benefit-engine/generic"
)

// DefaultRetries is how many times a conflicting decision is recomputed.
const DefaultRetries = 3

// Observer is notified of decisions, for metrics.
type Observer interface {
	AllocationDecided(code string)
	ClaimTransitioned(to Status)
	ConflictDetected()
}

type nopObserver struct{}

func (nopObserver) AllocationDecided(string) {}
func (nopObserver) ClaimTransitioned(Status) {}
func (nopObserver) ConflictDetected()        {}

// ClaimService orchestrates submissions, edits and reviews.
type ClaimService struct {
	store    TxStore
	clock    generic.Clock
	locker   generic.Locker
	audit    AuditSink
	observer Observer
	logger   *slog.Logger
	retries  int
}

type Option func(*ClaimService)

func WithLocker(l generic.Locker) Option { return func(s *ClaimService) { s.locker = l } }
func WithAuditSink(a AuditSink) Option   { return func(s *ClaimService) { s.audit = a } }
func WithObserver(o Observer) Option     { return func(s *ClaimService) { s.observer = o } }
func WithLogger(l *slog.Logger) Option   { return func(s *ClaimService) { s.logger = l } }
func WithRetries(n int) Option           { return func(s *ClaimService) { s.retries = n } }

// NewClaimService builds a service. Without options it locks in-process,
// audits into the store itself and logs to slog.Default().
func NewClaimService(store TxStore, clock generic.Clock, opts ...Option) *ClaimService {
	s := &ClaimService{
		store:    store,
		clock:    clock,
		locker:   generic.NewKeyedMutex(),
		audit:    LogAuditSink{Log: store},
		observer: nopObserver{},
		logger:   slog.Default(),
		retries:  DefaultRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retries < 1 {
		s.retries = 1
	}
	return s
}

// LedgerLockKey names the critical section of one employee in one period.
func LedgerLockKey(employeeID EmployeeID, periodID PeriodID) string {
	return "benefit:ledger:" + string(employeeID) + ":" + string(periodID)
}

// =============================================================================
// SUBMIT
// =============================================================================

// SubmitInput is a new claim as entered. PeriodID is the period the claim is
// aimed at; the resolver may redirect it to the next period.
type SubmitInput struct {
	EmployeeID       EmployeeID
	PeriodID         PeriodID
	ExpenseTypeID    ExpenseTypeID
	Origin           Origin
	Description      string
	ExpenseDate      generic.Date
	ReceiptSignature string
	Requested        generic.Amount
}

// SubmitResult carries the created claim and the decisions behind it. On a
// policy refusal Claim is nil and the decisions explain why.
type SubmitResult struct {
	Claim      *Claim
	Resolution Resolution
	Allocation *Allocation
}

// Submit resolves the period, allocates the requested amount against the
// ceiling and creates the claim in status enviado.
func (s *ClaimService) Submit(ctx context.Context, actor Actor, in SubmitInput) (*SubmitResult, error) {
	if !in.Requested.IsPositive() {
		return nil, generic.NewValidationError("requested", "amount must be positive")
	}
	if err := requireCents("requested", in.Requested); err != nil {
		return nil, err
	}
	if _, err := ParseOrigin(string(in.Origin)); err != nil {
		return nil, err
	}
	if in.ExpenseDate.IsZero() {
		return nil, generic.NewValidationError("expenseDate", "required")
	}

	employee, err := s.store.GetEmployee(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !mayActFor(actor, *employee) {
		return nil, &generic.AuthorizationError{ActorID: actor.ID, Action: "submit", Role: RoleApprover}
	}
	expenseType, err := s.store.GetExpenseType(ctx, in.ExpenseTypeID)
	if err != nil {
		return nil, err
	}
	if !expenseType.Allows(in.Origin) {
		return nil, generic.NewValidationError("origin",
			fmt.Sprintf("origin %q not permitted for expense type %q", in.Origin, expenseType.Name))
	}

	target, next, err := s.loadPeriods(ctx, in.PeriodID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	result := &SubmitResult{Resolution: Resolve(now, target, next)}
	if err := result.Resolution.Err(); err != nil {
		s.observer.AllocationDecided(result.Resolution.Code)
		return result, err
	}
	destination := result.Resolution.PeriodID

	inAccrual := target.Accrual.ContainsDate(in.ExpenseDate)
	if !inAccrual && next != nil && destination == next.ID {
		inAccrual = next.Accrual.ContainsDate(in.ExpenseDate)
	}
	if !inAccrual {
		return result, generic.NewValidationError("expenseDate",
			"expense date "+in.ExpenseDate.String()+" is outside the accrual window")
	}

	unlock, err := s.locker.Lock(ctx, LedgerLockKey(in.EmployeeID, destination))
	if err != nil {
		return result, err
	}
	defer unlock()

	var created Claim
	err = s.retry(ctx, func() error {
		return s.store.WithTx(ctx, func(tx Store) error {
			if err := checkDuplicateReceipt(ctx, tx, in.EmployeeID, in.ReceiptSignature, ""); err != nil {
				return err
			}
			emp, err := tx.GetEmployee(ctx, in.EmployeeID)
			if err != nil {
				return err
			}
			head, err := tx.LedgerHead(ctx, in.EmployeeID, destination)
			if err != nil {
				return err
			}
			claims, err := tx.ListClaims(ctx, ClaimFilter{EmployeeID: in.EmployeeID, PeriodID: destination})
			if err != nil {
				return err
			}

			alloc, err := decide(in.Requested, Aggregate(in.EmployeeID, destination, emp.Ceiling, claims))
			result.Allocation = &alloc
			if err != nil {
				return err
			}

			created = Claim{
				ID:               ClaimID(uuid.NewString()),
				EmployeeID:       in.EmployeeID,
				PeriodID:         destination,
				ExpenseTypeID:    in.ExpenseTypeID,
				Origin:           in.Origin,
				Description:      strings.TrimSpace(in.Description),
				ExpenseDate:      in.ExpenseDate,
				ReceiptSignature: in.ReceiptSignature,
				Requested:        alloc.Requested,
				Considered:       alloc.Considered,
				NotConsidered:    alloc.NotConsidered,
				Status:           StatusSubmitted,
				SubmittedBy:      actor.ID,
				CreatedAt:        now,
				UpdatedAt:        now,
				Version:          1,
			}
			return tx.CreateClaim(ctx, created, head)
		})
	})
	if result.Allocation != nil {
		s.observer.AllocationDecided(result.Allocation.Code)
	}
	if err != nil {
		return result, err
	}

	result.Claim = &created
	s.logger.Info("claim submitted",
		"claim_id", created.ID,
		"employee_id", created.EmployeeID,
		"period_id", created.PeriodID,
		"requested", created.Requested.String(),
		"considered", created.Considered.String(),
		"outcome", result.Resolution.Outcome,
	)
	s.record(ctx, newAuditEntry(generic.AuditClaimCreated, EntityClaim, string(created.ID), actor, nil, claimValues(created), now))
	return result, nil
}

// decide applies the overflow rule and the allocator to a snapshot.
func decide(requested generic.Amount, snap LedgerSnapshot) (Allocation, error) {
	alloc := Allocate(requested, snap.Ceiling, snap.AlreadyUsed())
	if snap.BlockedByPriorOverflow() {
		alloc.Code = CodeBlockedByOverflow
		alloc.Message = "a previous claim exceeded the benefit ceiling; no further claims are allowed this period"
	}
	return alloc, alloc.Err()
}

func (s *ClaimService) loadPeriods(ctx context.Context, id PeriodID) (*Period, *Period, error) {
	if id == "" {
		return nil, nil, nil
	}
	target, err := s.store.GetPeriod(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if target.NextPeriodID == nil {
		return target, nil, nil
	}
	next, err := s.store.GetPeriod(ctx, *target.NextPeriodID)
	if generic.IsNotFound(err) {
		return target, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return target, next, nil
}

func checkDuplicateReceipt(ctx context.Context, tx Store, employeeID EmployeeID, signature string, self ClaimID) error {
	if signature == "" {
		return nil
	}
	existing, err := tx.ListClaims(ctx, ClaimFilter{
		EmployeeID:       employeeID,
		ReceiptSignature: signature,
		Statuses:         []Status{StatusSubmitted, StatusInReview, StatusApproved},
	})
	if err != nil {
		return err
	}
	for _, c := range existing {
		if c.ID != self {
			return generic.NewValidationError("receiptSignature", "receipt already used by claim "+string(c.ID))
		}
	}
	return nil
}

// mayActFor reports whether actor may submit for employee: the employee
// themselves, or an approver or admin on their behalf.
// requireCents refuses amounts finer than a cent. Stores and the wire keep
// two decimals, so a finer value would break considered + notConsidered ==
// requested once persisted.
func requireCents(field string, a generic.Amount) error {
	if a.HasSubCents() {
		return generic.NewValidationError(field, fmt.Sprintf("at most %d decimal places", generic.CentDigits))
	}
	return nil
}

func mayActFor(actor Actor, e Employee) bool {
	if actor.ID == string(e.ID) || (e.IdentityRef != "" && actor.ID == e.IdentityRef) {
		return true
	}
	return actor.HasRole(RoleApprover) || actor.HasRole(RoleAdmin)
}

// =============================================================================
// EDIT
// =============================================================================

// EditInput carries the fields to change; nil fields are left as they are.
type EditInput struct {
	ExpenseTypeID    *ExpenseTypeID
	Origin           *Origin
	Description      *string
	ExpenseDate      *generic.Date
	ReceiptSignature *string
	Requested        *generic.Amount
}

// Edit changes a pending claim and recomputes its allocation against the
// current ledger, not counting the claim's own previous allocation. The
// status is unchanged.
func (s *ClaimService) Edit(ctx context.Context, actor Actor, id ClaimID, in EditInput) (*Claim, *Allocation, error) {
	current, err := s.store.GetClaim(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := CanEdit(*current, actor); err != nil {
		return nil, nil, err
	}

	unlock, err := s.locker.Lock(ctx, LedgerLockKey(current.EmployeeID, current.PeriodID))
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	now := s.clock.Now()
	var before, after Claim
	var alloc *Allocation
	err = s.retry(ctx, func() error {
		return s.store.WithTx(ctx, func(tx Store) error {
			c, err := tx.GetClaim(ctx, id)
			if err != nil {
				return err
			}
			if err := CanEdit(*c, actor); err != nil {
				return err
			}
			before = *c
			edited, err := s.applyEdit(ctx, tx, *c, in)
			if err != nil {
				return err
			}
			if err := checkDuplicateReceipt(ctx, tx, edited.EmployeeID, edited.ReceiptSignature, edited.ID); err != nil {
				return err
			}

			emp, err := tx.GetEmployee(ctx, edited.EmployeeID)
			if err != nil {
				return err
			}
			head, err := tx.LedgerHead(ctx, edited.EmployeeID, edited.PeriodID)
			if err != nil {
				return err
			}
			claims, err := tx.ListClaims(ctx, ClaimFilter{EmployeeID: edited.EmployeeID, PeriodID: edited.PeriodID})
			if err != nil {
				return err
			}
			snap := Aggregate(edited.EmployeeID, edited.PeriodID, emp.Ceiling, excluding(claims, edited.ID))
			a, err := decide(edited.Requested, snap)
			alloc = &a
			if err != nil {
				return err
			}

			edited.Considered = a.Considered
			edited.NotConsidered = a.NotConsidered
			edited.UpdatedAt = now
			if err := tx.UpdateClaim(ctx, edited, head); err != nil {
				return err
			}
			edited.Version++
			after = edited
			return nil
		})
	})
	if alloc != nil {
		s.observer.AllocationDecided(alloc.Code)
	}
	if err != nil {
		return nil, alloc, err
	}

	s.logger.Info("claim edited", "claim_id", after.ID, "actor_id", actor.ID, "considered", after.Considered.String())
	s.record(ctx, newAuditEntry(generic.AuditClaimEdited, EntityClaim, string(after.ID), actor, claimValues(before), claimValues(after), now))
	return &after, alloc, nil
}

func (s *ClaimService) applyEdit(ctx context.Context, tx Store, c Claim, in EditInput) (Claim, error) {
	if in.Requested != nil {
		if !in.Requested.IsPositive() {
			return c, generic.NewValidationError("requested", "amount must be positive")
		}
		if err := requireCents("requested", *in.Requested); err != nil {
			return c, err
		}
		c.Requested = *in.Requested
	}
	if in.Origin != nil {
		if _, err := ParseOrigin(string(*in.Origin)); err != nil {
			return c, err
		}
		c.Origin = *in.Origin
	}
	if in.ExpenseTypeID != nil {
		c.ExpenseTypeID = *in.ExpenseTypeID
	}
	if in.Description != nil {
		c.Description = strings.TrimSpace(*in.Description)
	}
	if in.ReceiptSignature != nil {
		c.ReceiptSignature = *in.ReceiptSignature
	}
	if in.ExpenseDate != nil {
		period, err := tx.GetPeriod(ctx, c.PeriodID)
		if err != nil {
			return c, err
		}
		if !period.Accrual.ContainsDate(*in.ExpenseDate) {
			return c, generic.NewValidationError("expenseDate",
				"expense date "+in.ExpenseDate.String()+" is outside the accrual window")
		}
		c.ExpenseDate = *in.ExpenseDate
	}

	expenseType, err := tx.GetExpenseType(ctx, c.ExpenseTypeID)
	if err != nil {
		return c, err
	}
	if !expenseType.Allows(c.Origin) {
		return c, generic.NewValidationError("origin",
			fmt.Sprintf("origin %q not permitted for expense type %q", c.Origin, expenseType.Name))
	}
	return c, nil
}

// =============================================================================
// REVIEW TRANSITIONS
// =============================================================================

type transitionFunc func(c Claim, now time.Time) (Claim, error)

// StartReview moves a claim from enviado to em_analise.
func (s *ClaimService) StartReview(ctx context.Context, actor Actor, id ClaimID) (*Claim, error) {
	return s.transition(ctx, actor, id, generic.AuditClaimReviewStart, func(c Claim, now time.Time) (Claim, error) {
		return StartReview(c, actor, now)
	})
}

// Approve moves a pending claim to valido.
func (s *ClaimService) Approve(ctx context.Context, actor Actor, id ClaimID) (*Claim, error) {
	return s.transition(ctx, actor, id, generic.AuditClaimApproved, func(c Claim, now time.Time) (Claim, error) {
		return Approve(c, actor, now)
	})
}

// Reject moves a pending claim to invalido with a mandatory reason.
func (s *ClaimService) Reject(ctx context.Context, actor Actor, id ClaimID, reason string) (*Claim, error) {
	return s.transition(ctx, actor, id, generic.AuditClaimRejected, func(c Claim, now time.Time) (Claim, error) {
		return Reject(c, actor, reason, now)
	})
}

func (s *ClaimService) transition(ctx context.Context, actor Actor, id ClaimID, action generic.AuditAction, fn transitionFunc) (*Claim, error) {
	now := s.clock.Now()
	var before, after Claim
	err := s.retry(ctx, func() error {
		return s.store.WithTx(ctx, func(tx Store) error {
			c, err := tx.GetClaim(ctx, id)
			if err != nil {
				return err
			}
			before = *c
			next, err := fn(*c, now)
			if err != nil {
				return err
			}
			if err := tx.UpdateClaim(ctx, next, AnyHead); err != nil {
				return err
			}
			next.Version++
			after = next
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.observer.ClaimTransitioned(after.Status)
	s.logger.Info("claim transitioned",
		"claim_id", after.ID,
		"from", before.Status,
		"to", after.Status,
		"actor_id", actor.ID,
	)
	s.record(ctx, newAuditEntry(action, EntityClaim, string(after.ID), actor, claimValues(before), claimValues(after), now))
	return &after, nil
}

// ApproveMany approves each id independently.
func (s *ClaimService) ApproveMany(ctx context.Context, actor Actor, ids []ClaimID) (*BatchResult, error) {
	if err := requireApprover(actor, ActionApprove); err != nil {
		return nil, err
	}
	result := &BatchResult{Errors: []BatchError{}}
	for _, id := range ids {
		_, err := s.Approve(ctx, actor, id)
		result.record(id, err)
	}
	return result, nil
}

// RejectMany rejects each id independently with the same reason. A blank
// reason fails the whole batch, since no item could succeed.
func (s *ClaimService) RejectMany(ctx context.Context, actor Actor, ids []ClaimID, reason string) (*BatchResult, error) {
	if err := requireApprover(actor, ActionReject); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, generic.NewValidationError("reason", "rejection reason is required")
	}
	result := &BatchResult{Errors: []BatchError{}}
	for _, id := range ids {
		_, err := s.Reject(ctx, actor, id, reason)
		result.record(id, err)
	}
	return result, nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *ClaimService) GetClaim(ctx context.Context, id ClaimID) (*Claim, error) {
	return s.store.GetClaim(ctx, id)
}

func (s *ClaimService) ListClaims(ctx context.Context, filter ClaimFilter) ([]Claim, error) {
	return s.store.ListClaims(ctx, filter)
}

// ClaimHistory returns the audit trail of one claim.
func (s *ClaimService) ClaimHistory(ctx context.Context, id ClaimID) ([]generic.AuditEntry, error) {
	if _, err := s.store.GetClaim(ctx, id); err != nil {
		return nil, err
	}
	return s.store.QueryAudit(ctx, generic.AuditFilter{EntityType: EntityClaim, EntityID: string(id)})
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *ClaimService) retry(ctx context.Context, fn func() error) error {
	return generic.Retry(ctx, s.retries, func() error {
		err := fn()
		if errors.Is(err, generic.ErrConcurrentModification) {
			s.observer.ConflictDetected()
			s.logger.Debug("ledger changed during decision, retrying", "error", err)
		}
		return err
	})
}

func (s *ClaimService) record(ctx context.Context, entry generic.AuditEntry) {
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed",
			"error", err,
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
		)
	}
}
