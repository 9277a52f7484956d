// Package memory provides an in-memory benefit.TxStore for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	st state
}

type ledgerKey struct {
	EmployeeID benefit.EmployeeID
	PeriodID   benefit.PeriodID
}

// state holds the data. Its methods assume the caller holds the lock.
type state struct {
	periods      map[benefit.PeriodID]benefit.Period
	employees    map[benefit.EmployeeID]benefit.Employee
	expenseTypes map[benefit.ExpenseTypeID]benefit.ExpenseType
	claims       map[benefit.ClaimID]benefit.Claim
	heads        map[ledgerKey]int64
	audit        []generic.AuditEntry
}

func newState() state {
	return state{
		periods:      make(map[benefit.PeriodID]benefit.Period),
		employees:    make(map[benefit.EmployeeID]benefit.Employee),
		expenseTypes: make(map[benefit.ExpenseTypeID]benefit.ExpenseType),
		claims:       make(map[benefit.ClaimID]benefit.Claim),
		heads:        make(map[ledgerKey]int64),
	}
}

func New() *Memory {
	return &Memory{st: newState()}
}

var _ benefit.TxStore = (*Memory)(nil)

// =============================================================================
// LOCKED ACCESSORS
// =============================================================================

func (m *Memory) GetPeriod(ctx context.Context, id benefit.PeriodID) (*benefit.Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetPeriod(ctx, id)
}

func (m *Memory) ListPeriods(ctx context.Context) ([]benefit.Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListPeriods(ctx)
}

func (m *Memory) SavePeriod(ctx context.Context, p benefit.Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SavePeriod(ctx, p)
}

func (m *Memory) GetEmployee(ctx context.Context, id benefit.EmployeeID) (*benefit.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetEmployee(ctx, id)
}

func (m *Memory) ListEmployees(ctx context.Context) ([]benefit.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListEmployees(ctx)
}

func (m *Memory) SaveEmployee(ctx context.Context, e benefit.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveEmployee(ctx, e)
}

func (m *Memory) GetExpenseType(ctx context.Context, id benefit.ExpenseTypeID) (*benefit.ExpenseType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetExpenseType(ctx, id)
}

func (m *Memory) ListExpenseTypes(ctx context.Context) ([]benefit.ExpenseType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListExpenseTypes(ctx)
}

func (m *Memory) SaveExpenseType(ctx context.Context, t benefit.ExpenseType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveExpenseType(ctx, t)
}

func (m *Memory) GetClaim(ctx context.Context, id benefit.ClaimID) (*benefit.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetClaim(ctx, id)
}

func (m *Memory) ListClaims(ctx context.Context, filter benefit.ClaimFilter) ([]benefit.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListClaims(ctx, filter)
}

func (m *Memory) LedgerHead(ctx context.Context, employeeID benefit.EmployeeID, periodID benefit.PeriodID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.LedgerHead(ctx, employeeID, periodID)
}

func (m *Memory) CreateClaim(ctx context.Context, c benefit.Claim, head int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.CreateClaim(ctx, c, head)
}

func (m *Memory) UpdateClaim(ctx context.Context, c benefit.Claim, head int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.UpdateClaim(ctx, c, head)
}

func (m *Memory) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.AppendAudit(ctx, entry)
}

func (m *Memory) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.QueryAudit(ctx, filter)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn holding the write lock. Simulated with a snapshot that
// is restored if fn fails or panics.
func (m *Memory) WithTx(ctx context.Context, fn func(benefit.Store) error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	defer func() {
		if r := recover(); r != nil {
			m.st = snapshot
			panic(r)
		}
		if err != nil {
			m.st = snapshot
		}
	}()

	return fn(&m.st)
}

func (s *state) clone() state {
	out := newState()
	for k, v := range s.periods {
		out.periods[k] = v
	}
	for k, v := range s.employees {
		out.employees[k] = v
	}
	for k, v := range s.expenseTypes {
		out.expenseTypes[k] = v
	}
	for k, v := range s.claims {
		out.claims[k] = v
	}
	for k, v := range s.heads {
		out.heads[k] = v
	}
	out.audit = append([]generic.AuditEntry(nil), s.audit...)
	return out
}

// =============================================================================
// UNLOCKED OPERATIONS
// =============================================================================

func (s *state) GetPeriod(_ context.Context, id benefit.PeriodID) (*benefit.Period, error) {
	p, ok := s.periods[id]
	if !ok {
		return nil, &generic.NotFoundError{Entity: "period", ID: string(id)}
	}
	return &p, nil
}

func (s *state) ListPeriods(_ context.Context) ([]benefit.Period, error) {
	out := make([]benefit.Period, 0, len(s.periods))
	for _, p := range s.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Submission.Start.Equal(out[j].Submission.Start) {
			return out[i].Submission.Start.Before(out[j].Submission.Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *state) SavePeriod(_ context.Context, p benefit.Period) error {
	s.periods[p.ID] = p
	return nil
}

func (s *state) GetEmployee(_ context.Context, id benefit.EmployeeID) (*benefit.Employee, error) {
	e, ok := s.employees[id]
	if !ok {
		return nil, &generic.NotFoundError{Entity: "employee", ID: string(id)}
	}
	return &e, nil
}

func (s *state) ListEmployees(_ context.Context) ([]benefit.Employee, error) {
	out := make([]benefit.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) SaveEmployee(_ context.Context, e benefit.Employee) error {
	s.employees[e.ID] = e
	return nil
}

func (s *state) GetExpenseType(_ context.Context, id benefit.ExpenseTypeID) (*benefit.ExpenseType, error) {
	t, ok := s.expenseTypes[id]
	if !ok {
		return nil, &generic.NotFoundError{Entity: "expense type", ID: string(id)}
	}
	t.AllowedOrigins = append([]benefit.Origin(nil), t.AllowedOrigins...)
	return &t, nil
}

func (s *state) ListExpenseTypes(_ context.Context) ([]benefit.ExpenseType, error) {
	out := make([]benefit.ExpenseType, 0, len(s.expenseTypes))
	for _, t := range s.expenseTypes {
		t.AllowedOrigins = append([]benefit.Origin(nil), t.AllowedOrigins...)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) SaveExpenseType(_ context.Context, t benefit.ExpenseType) error {
	t.AllowedOrigins = append([]benefit.Origin(nil), t.AllowedOrigins...)
	s.expenseTypes[t.ID] = t
	return nil
}

func (s *state) GetClaim(_ context.Context, id benefit.ClaimID) (*benefit.Claim, error) {
	c, ok := s.claims[id]
	if !ok {
		return nil, &generic.NotFoundError{Entity: "claim", ID: string(id)}
	}
	return &c, nil
}

func (s *state) ListClaims(_ context.Context, filter benefit.ClaimFilter) ([]benefit.Claim, error) {
	var out []benefit.Claim
	for _, c := range s.claims {
		if filter.Matches(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *state) LedgerHead(_ context.Context, employeeID benefit.EmployeeID, periodID benefit.PeriodID) (int64, error) {
	return s.heads[ledgerKey{employeeID, periodID}], nil
}

func (s *state) CreateClaim(_ context.Context, c benefit.Claim, head int64) error {
	if _, exists := s.claims[c.ID]; exists {
		return generic.NewValidationError("id", "claim "+string(c.ID)+" already exists")
	}
	k := ledgerKey{c.EmployeeID, c.PeriodID}
	if s.heads[k] != head {
		return &generic.ConflictError{Resource: "ledger " + string(c.EmployeeID) + "/" + string(c.PeriodID)}
	}
	if c.Version == 0 {
		c.Version = 1
	}
	s.claims[c.ID] = c
	s.heads[k]++
	return nil
}

func (s *state) UpdateClaim(_ context.Context, c benefit.Claim, head int64) error {
	stored, ok := s.claims[c.ID]
	if !ok {
		return &generic.NotFoundError{Entity: "claim", ID: string(c.ID)}
	}
	if stored.Version != c.Version {
		return &generic.ConflictError{Resource: "claim " + string(c.ID)}
	}
	k := ledgerKey{c.EmployeeID, c.PeriodID}
	if head != benefit.AnyHead && s.heads[k] != head {
		return &generic.ConflictError{Resource: "ledger " + string(c.EmployeeID) + "/" + string(c.PeriodID)}
	}
	c.Version++
	s.claims[c.ID] = c
	s.heads[k]++
	return nil
}

func (s *state) AppendAudit(_ context.Context, entry generic.AuditEntry) error {
	s.audit = append(s.audit, entry)
	return nil
}

func (s *state) QueryAudit(_ context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	var out []generic.AuditEntry
	for _, e := range s.audit {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}
