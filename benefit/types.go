/*
Package benefit implements the benefit-basket ceiling engine.

PURPOSE:
  Tracks, per employee and per period, how much of a monetary ceiling has
  been consumed by expense claims, decides how much of a new claim fits, and
  governs each claim from submission to a terminal approved/rejected state.

KEY COMPONENTS:
  PeriodResolver   (resolver.go):  which period a new claim lands in, or blocked
  QuotaAllocator   (allocator.go): considered / not-considered split of a request
  LedgerAggregator (ledger.go):    totals recomputed from the current claims
  ExpenseLifecycle (lifecycle.go): claim status state machine
  ClaimService     (service.go):   transactional orchestration of the above

WIRE CONTRACT:
  Status and origin strings are part of the external contract and are kept
  verbatim: enviado / em_analise / valido / invalido and proprio / conjuge /
  filhos. Unknown strings fail with a ValidationError.

KEY CONCEPTS IN THIS FILE (types.go):
  - Status, Origin, Classification: closed enumerations
  - Period, Employee, ExpenseType, Claim: the data model
  - Actor: who is calling, and with which roles

SEE ALSO:
  - store.go: Persistence contracts
  - generic/: Amount, Date, Window and error kinds
*/
package benefit

import (
	"time"

	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PeriodID string
type EmployeeID string
type ExpenseTypeID string
type ClaimID string

// =============================================================================
// STATUS - Claim lifecycle states
// =============================================================================

type Status string

const (
	StatusSubmitted Status = "enviado"
	StatusInReview  Status = "em_analise"
	StatusApproved  Status = "valido"
	StatusRejected  Status = "invalido"
)

// ParseStatus converts a wire string into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusSubmitted, StatusInReview, StatusApproved, StatusRejected:
		return Status(s), nil
	}
	return "", generic.NewValidationError("status", "unknown status "+quote(s))
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// IsPending reports whether the claim still awaits a decision.
func (s Status) IsPending() bool {
	return s == StatusSubmitted || s == StatusInReview
}

// =============================================================================
// ORIGIN - Whose expense it is
// =============================================================================

type Origin string

const (
	OriginSelf     Origin = "proprio"
	OriginSpouse   Origin = "conjuge"
	OriginChildren Origin = "filhos"
)

func ParseOrigin(s string) (Origin, error) {
	switch Origin(s) {
	case OriginSelf, OriginSpouse, OriginChildren:
		return Origin(s), nil
	}
	return "", generic.NewValidationError("origin", "unknown origin "+quote(s))
}

// =============================================================================
// CLASSIFICATION - Expense type kind
// =============================================================================

type Classification string

const (
	ClassificationFixed    Classification = "fixa"
	ClassificationVariable Classification = "variavel"
)

func ParseClassification(s string) (Classification, error) {
	switch Classification(s) {
	case ClassificationFixed, ClassificationVariable:
		return Classification(s), nil
	}
	return "", generic.NewValidationError("classification", "unknown classification "+quote(s))
}

// =============================================================================
// PERIOD
// =============================================================================

type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "open"
	PeriodClosed PeriodStatus = "closed"
)

func ParsePeriodStatus(s string) (PeriodStatus, error) {
	switch PeriodStatus(s) {
	case PeriodOpen, PeriodClosed:
		return PeriodStatus(s), nil
	}
	return "", generic.NewValidationError("status", "unknown period status "+quote(s))
}

// Period is a time-boxed benefit cycle. Accrual is the span of dates an
// expense may reference; Submission is the span of dates a claim may be
// entered. NextPeriodID is an explicit link, never inferred from dates.
type Period struct {
	ID           PeriodID
	Label        string
	Accrual      generic.Window
	Submission   generic.Window
	Status       PeriodStatus
	NextPeriodID *PeriodID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks the period's own consistency.
func (p Period) Validate() error {
	if p.ID == "" {
		return generic.NewValidationError("id", "required")
	}
	if err := p.Accrual.Validate(); err != nil {
		return generic.NewValidationError("accrual", err.Error())
	}
	if err := p.Submission.Validate(); err != nil {
		return generic.NewValidationError("submission", err.Error())
	}
	if _, err := ParsePeriodStatus(string(p.Status)); err != nil {
		return err
	}
	if p.NextPeriodID != nil && *p.NextPeriodID == p.ID {
		return generic.NewValidationError("nextPeriodId", "a period cannot be its own next period")
	}
	return nil
}

// ValidatePeriodTransition allows open -> closed only. Closing is manual and
// final.
func ValidatePeriodTransition(current, target PeriodStatus) error {
	if current == target {
		return nil
	}
	if current == PeriodOpen && target == PeriodClosed {
		return nil
	}
	return &generic.PolicyError{
		Code:    "invalid_period_transition",
		Message: "period transition " + string(current) + " -> " + string(target) + " not allowed",
	}
}

// =============================================================================
// EMPLOYEE
// =============================================================================

// Employee is a person eligible for the benefit basket. The ceiling applies
// to every period and may be raised retroactively.
type Employee struct {
	ID          EmployeeID
	Name        string
	Ceiling     generic.Amount
	IdentityRef string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// EXPENSE TYPE
// =============================================================================

type ExpenseType struct {
	ID             ExpenseTypeID
	Name           string
	AllowedOrigins []Origin
	Classification Classification
}

// Allows reports whether claims of this type may carry origin o.
func (t ExpenseType) Allows(o Origin) bool {
	for _, allowed := range t.AllowedOrigins {
		if allowed == o {
			return true
		}
	}
	return false
}

// =============================================================================
// CLAIM
// =============================================================================

// Claim is a single reimbursement request.
//
// INVARIANTS:
//   - Considered + NotConsidered == Requested
//   - Considered never exceeds the ceiling room at evaluation time
//   - RejectionReason is set iff Status == StatusRejected
//   - Immutable once Status is terminal
type Claim struct {
	ID               ClaimID
	EmployeeID       EmployeeID
	PeriodID         PeriodID
	ExpenseTypeID    ExpenseTypeID
	Origin           Origin
	Description      string
	ExpenseDate      generic.Date
	ReceiptSignature string

	Requested     generic.Amount
	Considered    generic.Amount
	NotConsidered generic.Amount

	Status          Status
	RejectionReason string
	ReviewedBy      string
	ReviewedAt      *time.Time

	SubmittedBy string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Version increases on every write; stores use it for optimistic checks.
	Version int64
}

// =============================================================================
// ACTOR - Identity of the caller
// =============================================================================

// RoleApprover is the only role allowed to review claims.
const RoleApprover = "approver"

// RoleAdmin administers periods, employees and expense types.
const RoleAdmin = "admin"

type Actor struct {
	ID    string
	Roles []string
}

func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// SystemActor is used for writes that no person initiated.
var SystemActor = Actor{ID: "system"}

func quote(s string) string { return "\"" + s + "\"" }
