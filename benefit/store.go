/*
store.go - Persistence contracts for periods, employees, types and claims

PURPOSE:
  Defines the interface between the benefit logic and the database.
  Different implementations use SQLite, PostgreSQL, or in-memory storage.

LEDGER HEAD:
  Each (employee, period) pair has a head version. Every write that changes
  what counts against the ceiling advances it. The service reads the head
  together with the claims, decides the allocation, and writes with the head
  it read; if another writer advanced it in between, the write fails with
  ErrConcurrentModification and the whole decision is retried on fresh data.

  Transitions (approve, reject, start review) pass AnyHead: they never grow
  consumption, so they only need the per-claim Version check. They still
  advance the head so an allocation racing with a rejection re-reads.

IMPLEMENTATIONS:
  - store/memory:   In-memory, for tests and local runs
  - store/sqlite:   Single-node SQLite
  - store/postgres: PostgreSQL with SELECT ... FOR UPDATE on the head row

SEE ALSO:
  - service.go: Uses WithTx around read-allocate-write
  - generic/store.go: Transactional[S]
*/
package benefit

import (
	"context"

	"github.com/warp/benefit-engine/generic"
)

// AnyHead skips the ledger head check on UpdateClaim.
const AnyHead int64 = -1

// ClaimFilter selects claims. Empty fields match everything.
type ClaimFilter struct {
	EmployeeID       EmployeeID
	PeriodID         PeriodID
	ExpenseTypeID    ExpenseTypeID
	Statuses         []Status
	ReceiptSignature string
}

// Matches reports whether c passes every set criterion.
func (f ClaimFilter) Matches(c Claim) bool {
	if f.EmployeeID != "" && c.EmployeeID != f.EmployeeID {
		return false
	}
	if f.PeriodID != "" && c.PeriodID != f.PeriodID {
		return false
	}
	if f.ExpenseTypeID != "" && c.ExpenseTypeID != f.ExpenseTypeID {
		return false
	}
	if f.ReceiptSignature != "" && c.ReceiptSignature != f.ReceiptSignature {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, s := range f.Statuses {
			if s == c.Status {
				return true
			}
		}
		return false
	}
	return true
}

type PeriodStore interface {
	GetPeriod(ctx context.Context, id PeriodID) (*Period, error)
	ListPeriods(ctx context.Context) ([]Period, error)
	// SavePeriod inserts or replaces a period.
	SavePeriod(ctx context.Context, p Period) error
}

type EmployeeStore interface {
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	SaveEmployee(ctx context.Context, e Employee) error
}

type ExpenseTypeStore interface {
	GetExpenseType(ctx context.Context, id ExpenseTypeID) (*ExpenseType, error)
	ListExpenseTypes(ctx context.Context) ([]ExpenseType, error)
	SaveExpenseType(ctx context.Context, t ExpenseType) error
}

type ClaimStore interface {
	// GetClaim returns a NotFoundError when id is unknown.
	GetClaim(ctx context.Context, id ClaimID) (*Claim, error)

	// ListClaims returns matching claims ordered by CreatedAt, then ID.
	ListClaims(ctx context.Context, filter ClaimFilter) ([]Claim, error)

	// LedgerHead returns the head version of (employee, period); zero if
	// nothing was ever written.
	LedgerHead(ctx context.Context, employeeID EmployeeID, periodID PeriodID) (int64, error)

	// CreateClaim inserts c if the head still equals head, and advances it.
	CreateClaim(ctx context.Context, c Claim, head int64) error

	// UpdateClaim replaces c if the stored Version equals c.Version and, unless
	// head is AnyHead, the ledger head equals head. The stored Version becomes
	// c.Version+1 and the head advances.
	UpdateClaim(ctx context.Context, c Claim, head int64) error
}

// Store is everything the service persists.
type Store interface {
	PeriodStore
	EmployeeStore
	ExpenseTypeStore
	ClaimStore
	generic.AuditLog
}

// TxStore runs a function against a Store inside one transaction.
type TxStore interface {
	Store
	generic.Transactional[Store]
}
