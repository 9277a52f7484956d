/*
Package postgres provides a PostgreSQL-backed benefit.TxStore on pgx.

PURPOSE:
  Multi-node persistence. Several server processes may share one database;
  the ledger head row is what keeps their allocation decisions consistent.

LEDGER HEAD LOCKING:
  Inside WithTx, LedgerHead reads the head row with SELECT ... FOR UPDATE,
  so a second transaction deciding for the same employee and period waits
  until the first commits and then reads the new version. The write still
  compares the version (UPDATE ... WHERE version = $n), which covers the
  first write for a pair, when there is no row yet to lock.

AMOUNTS AND DATES:
  Amounts are NUMERIC(14,2), dates are DATE. Both cross the wire as text so
  no precision is lost between decimal.Decimal and the database.

MIGRATIONS:
  Versioned SQL files under migrations/, embedded into the binary and
  applied with golang-migrate (see migrate.go).

SEE ALSO:
  - benefit/store.go: Interface definitions
  - store/sqlite: Single-node equivalent
*/
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/generic"
)

const uniqueViolationCode = "23505"

// Queryer is satisfied by pgx.Tx and pgxpool.Pool.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Pool is a Queryer that can start transactions.
type Pool interface {
	Queryer
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Store implements benefit.TxStore.
type Store struct {
	queries
	pool Pool
}

type queries struct {
	q Queryer
}

var _ benefit.TxStore = (*Store)(nil)

// New wraps a pool. Tests pass a pgxmock pool.
func New(pool Pool) *Store {
	return &Store{queries: queries{q: pool}, pool: pool}
}

// NewPool creates a pgxpool.Pool and checks connectivity.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// WithTx executes fn within a read-write transaction.
func (s *Store) WithTx(ctx context.Context, fn func(benefit.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite})
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	if err := fn(&queries{q: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("postgres: rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// =============================================================================
// PERIODS
// =============================================================================

const periodColumns = `id, label, accrual_start::text, accrual_end::text, submission_start::text,
	submission_end::text, status, next_period_id, created_at, updated_at`

func (s *queries) SavePeriod(ctx context.Context, p benefit.Period) error {
	var next *string
	if p.NextPeriodID != nil {
		id := string(*p.NextPeriodID)
		next = &id
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO periods (id, label, accrual_start, accrual_end, submission_start, submission_end,
			status, next_period_id, created_at, updated_at)
		VALUES ($1, $2, $3::text::date, $4::text::date, $5::text::date, $6::text::date, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label,
			accrual_start = EXCLUDED.accrual_start,
			accrual_end = EXCLUDED.accrual_end,
			submission_start = EXCLUDED.submission_start,
			submission_end = EXCLUDED.submission_end,
			status = EXCLUDED.status,
			next_period_id = EXCLUDED.next_period_id,
			updated_at = EXCLUDED.updated_at`,
		string(p.ID), p.Label,
		p.Accrual.Start.String(), p.Accrual.End.String(),
		p.Submission.Start.String(), p.Submission.End.String(),
		string(p.Status), next, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save period: %w", err)
	}
	return nil
}

func (s *queries) GetPeriod(ctx context.Context, id benefit.PeriodID) (*benefit.Period, error) {
	row := s.q.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE id = $1`, string(id))
	p, err := scanPeriod(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &generic.NotFoundError{Entity: "period", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *queries) ListPeriods(ctx context.Context) ([]benefit.Period, error) {
	rows, err := s.q.Query(ctx, `SELECT `+periodColumns+` FROM periods ORDER BY submission_start, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list periods: %w", err)
	}
	defer rows.Close()

	var out []benefit.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPeriod(row pgx.Row) (benefit.Period, error) {
	var (
		p                                  benefit.Period
		id, label, status                  string
		accStart, accEnd, subStart, subEnd string
		next                               *string
		createdAt, updatedAt               time.Time
	)
	if err := row.Scan(&id, &label, &accStart, &accEnd, &subStart, &subEnd, &status, &next, &createdAt, &updatedAt); err != nil {
		return p, err
	}
	p.ID = benefit.PeriodID(id)
	p.Label = label
	p.Status = benefit.PeriodStatus(status)
	p.Accrual = generic.Window{Start: generic.MustParseDate(accStart), End: generic.MustParseDate(accEnd)}
	p.Submission = generic.Window{Start: generic.MustParseDate(subStart), End: generic.MustParseDate(subEnd)}
	if next != nil {
		n := benefit.PeriodID(*next)
		p.NextPeriodID = &n
	}
	p.CreatedAt = createdAt
	p.UpdatedAt = updatedAt
	return p, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, name, ceiling::text, identity_ref, created_at, updated_at`

func (s *queries) SaveEmployee(ctx context.Context, e benefit.Employee) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO employees (id, name, ceiling, identity_ref, created_at, updated_at)
		VALUES ($1, $2, $3::text::numeric, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			ceiling = EXCLUDED.ceiling,
			identity_ref = EXCLUDED.identity_ref,
			updated_at = EXCLUDED.updated_at`,
		string(e.ID), e.Name, e.Ceiling.Value.String(), nullable(e.IdentityRef), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save employee: %w", err)
	}
	return nil
}

func (s *queries) GetEmployee(ctx context.Context, id benefit.EmployeeID) (*benefit.Employee, error) {
	row := s.q.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, string(id))
	e, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &generic.NotFoundError{Entity: "employee", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *queries) ListEmployees(ctx context.Context) ([]benefit.Employee, error) {
	rows, err := s.q.Query(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list employees: %w", err)
	}
	defer rows.Close()

	var out []benefit.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEmployee(row pgx.Row) (benefit.Employee, error) {
	var (
		e                    benefit.Employee
		id, name, ceiling    string
		identity             *string
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &name, &ceiling, &identity, &createdAt, &updatedAt); err != nil {
		return e, err
	}
	amount, err := generic.ParseAmount(ceiling)
	if err != nil {
		return e, err
	}
	e.ID = benefit.EmployeeID(id)
	e.Name = name
	e.Ceiling = amount
	if identity != nil {
		e.IdentityRef = *identity
	}
	e.CreatedAt = createdAt
	e.UpdatedAt = updatedAt
	return e, nil
}

// =============================================================================
// EXPENSE TYPES
// =============================================================================

func (s *queries) SaveExpenseType(ctx context.Context, t benefit.ExpenseType) error {
	origins := make([]string, len(t.AllowedOrigins))
	for i, o := range t.AllowedOrigins {
		origins[i] = string(o)
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO expense_types (id, name, allowed_origins, classification)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			allowed_origins = EXCLUDED.allowed_origins,
			classification = EXCLUDED.classification`,
		string(t.ID), t.Name, origins, string(t.Classification),
	)
	if err != nil {
		return fmt.Errorf("postgres: save expense type: %w", err)
	}
	return nil
}

func (s *queries) GetExpenseType(ctx context.Context, id benefit.ExpenseTypeID) (*benefit.ExpenseType, error) {
	row := s.q.QueryRow(ctx,
		`SELECT id, name, allowed_origins, classification FROM expense_types WHERE id = $1`, string(id))
	t, err := scanExpenseType(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &generic.NotFoundError{Entity: "expense type", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *queries) ListExpenseTypes(ctx context.Context) ([]benefit.ExpenseType, error) {
	rows, err := s.q.Query(ctx, `SELECT id, name, allowed_origins, classification FROM expense_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list expense types: %w", err)
	}
	defer rows.Close()

	var out []benefit.ExpenseType
	for rows.Next() {
		t, err := scanExpenseType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanExpenseType(row pgx.Row) (benefit.ExpenseType, error) {
	var (
		t                        benefit.ExpenseType
		id, name, classification string
		origins                  []string
	)
	if err := row.Scan(&id, &name, &origins, &classification); err != nil {
		return t, err
	}
	t.ID = benefit.ExpenseTypeID(id)
	t.Name = name
	t.Classification = benefit.Classification(classification)
	for _, o := range origins {
		t.AllowedOrigins = append(t.AllowedOrigins, benefit.Origin(o))
	}
	return t, nil
}

// =============================================================================
// CLAIMS
// =============================================================================

const claimColumns = `id, employee_id, period_id, expense_type_id, origin, description, expense_date::text,
	receipt_signature, requested::text, considered::text, not_considered::text, status, rejection_reason,
	reviewed_by, reviewed_at, submitted_by, created_at, updated_at, version`

func (s *queries) GetClaim(ctx context.Context, id benefit.ClaimID) (*benefit.Claim, error) {
	row := s.q.QueryRow(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, string(id))
	c, err := scanClaim(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &generic.NotFoundError{Entity: "claim", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *queries) ListClaims(ctx context.Context, filter benefit.ClaimFilter) ([]benefit.Claim, error) {
	var where []string
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, clause+" $"+strconv.Itoa(len(args)))
	}
	if filter.EmployeeID != "" {
		add("employee_id =", string(filter.EmployeeID))
	}
	if filter.PeriodID != "" {
		add("period_id =", string(filter.PeriodID))
	}
	if filter.ExpenseTypeID != "" {
		add("expense_type_id =", string(filter.ExpenseTypeID))
	}
	if filter.ReceiptSignature != "" {
		add("receipt_signature =", filter.ReceiptSignature)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		where = append(where, "status = ANY($"+strconv.Itoa(len(args))+")")
	}

	query := `SELECT ` + claimColumns + ` FROM claims`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list claims: %w", err)
	}
	defer rows.Close()

	var out []benefit.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *queries) LedgerHead(ctx context.Context, employeeID benefit.EmployeeID, periodID benefit.PeriodID) (int64, error) {
	var version int64
	err := s.q.QueryRow(ctx,
		`SELECT version FROM ledger_heads WHERE employee_id = $1 AND period_id = $2 FOR UPDATE`,
		string(employeeID), string(periodID),
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: read ledger head: %w", err)
	}
	return version, nil
}

func (s *queries) CreateClaim(ctx context.Context, c benefit.Claim, head int64) error {
	if err := s.advanceHead(ctx, c.EmployeeID, c.PeriodID, head); err != nil {
		return err
	}
	if c.Version == 0 {
		c.Version = 1
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO claims (id, employee_id, period_id, expense_type_id, origin, description, expense_date,
			receipt_signature, requested, considered, not_considered, status, rejection_reason,
			reviewed_by, reviewed_at, submitted_by, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7::text::date, $8, $9::text::numeric, $10::text::numeric,
			$11::text::numeric, $12, $13, $14, $15, $16, $17, $18, $19)`,
		string(c.ID), string(c.EmployeeID), string(c.PeriodID), string(c.ExpenseTypeID), string(c.Origin),
		c.Description, c.ExpenseDate.String(), nullable(c.ReceiptSignature),
		c.Requested.Value.String(), c.Considered.Value.String(), c.NotConsidered.Value.String(),
		string(c.Status), nullable(c.RejectionReason), nullable(c.ReviewedBy), c.ReviewedAt,
		c.SubmittedBy, c.CreatedAt, c.UpdatedAt, c.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return generic.NewValidationError("id", "claim "+string(c.ID)+" already exists")
		}
		return fmt.Errorf("postgres: create claim: %w", err)
	}
	return nil
}

func (s *queries) UpdateClaim(ctx context.Context, c benefit.Claim, head int64) error {
	if err := s.advanceHead(ctx, c.EmployeeID, c.PeriodID, head); err != nil {
		return err
	}

	tag, err := s.q.Exec(ctx, `
		UPDATE claims SET
			expense_type_id = $1, origin = $2, description = $3, expense_date = $4::text::date,
			receipt_signature = $5, requested = $6::text::numeric, considered = $7::text::numeric,
			not_considered = $8::text::numeric, status = $9, rejection_reason = $10,
			reviewed_by = $11, reviewed_at = $12, updated_at = $13, version = version + 1
		WHERE id = $14 AND version = $15`,
		string(c.ExpenseTypeID), string(c.Origin), c.Description, c.ExpenseDate.String(),
		nullable(c.ReceiptSignature), c.Requested.Value.String(), c.Considered.Value.String(),
		c.NotConsidered.Value.String(), string(c.Status), nullable(c.RejectionReason),
		nullable(c.ReviewedBy), c.ReviewedAt, c.UpdatedAt, string(c.ID), c.Version,
	)
	if err != nil {
		return fmt.Errorf("postgres: update claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetClaim(ctx, c.ID); err != nil {
			return err
		}
		return &generic.ConflictError{Resource: "claim " + string(c.ID)}
	}
	return nil
}

func (s *queries) advanceHead(ctx context.Context, employeeID benefit.EmployeeID, periodID benefit.PeriodID, expected int64) error {
	conflict := &generic.ConflictError{Resource: "ledger " + string(employeeID) + "/" + string(periodID)}
	emp, period := string(employeeID), string(periodID)

	var (
		tag pgconn.CommandTag
		err error
	)
	switch expected {
	case benefit.AnyHead:
		tag, err = s.q.Exec(ctx, `
			INSERT INTO ledger_heads (employee_id, period_id, version) VALUES ($1, $2, 1)
			ON CONFLICT (employee_id, period_id) DO UPDATE SET version = ledger_heads.version + 1`,
			emp, period)
	case 0:
		tag, err = s.q.Exec(ctx, `
			INSERT INTO ledger_heads (employee_id, period_id, version) VALUES ($1, $2, 1)
			ON CONFLICT (employee_id, period_id) DO NOTHING`,
			emp, period)
	default:
		tag, err = s.q.Exec(ctx,
			`UPDATE ledger_heads SET version = version + 1 WHERE employee_id = $1 AND period_id = $2 AND version = $3`,
			emp, period, expected)
	}
	if err != nil {
		return fmt.Errorf("postgres: advance ledger head: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return conflict
	}
	return nil
}

func scanClaim(row pgx.Row) (benefit.Claim, error) {
	var (
		c                                               benefit.Claim
		id, employeeID, periodID, expenseTypeID, origin string
		description, expenseDate, status, submittedBy   string
		requested, considered, notConsidered            string
		signature, reason, reviewedBy                   *string
		reviewedAt                                      *time.Time
		createdAt, updatedAt                            time.Time
		version                                         int64
	)
	err := row.Scan(&id, &employeeID, &periodID, &expenseTypeID, &origin, &description, &expenseDate,
		&signature, &requested, &considered, &notConsidered, &status, &reason,
		&reviewedBy, &reviewedAt, &submittedBy, &createdAt, &updatedAt, &version)
	if err != nil {
		return c, err
	}

	c.ID = benefit.ClaimID(id)
	c.EmployeeID = benefit.EmployeeID(employeeID)
	c.PeriodID = benefit.PeriodID(periodID)
	c.ExpenseTypeID = benefit.ExpenseTypeID(expenseTypeID)
	c.Origin = benefit.Origin(origin)
	c.Description = description
	c.ExpenseDate = generic.MustParseDate(expenseDate)
	c.ReceiptSignature = deref(signature)
	c.Status = benefit.Status(status)
	c.RejectionReason = deref(reason)
	c.ReviewedBy = deref(reviewedBy)
	c.ReviewedAt = reviewedAt
	c.SubmittedBy = submittedBy
	c.CreatedAt = createdAt
	c.UpdatedAt = updatedAt
	c.Version = version

	if c.Requested, err = generic.ParseAmount(requested); err != nil {
		return c, err
	}
	if c.Considered, err = generic.ParseAmount(considered); err != nil {
		return c, err
	}
	if c.NotConsidered, err = generic.ParseAmount(notConsidered); err != nil {
		return c, err
	}
	return c, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *queries) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	oldValues, err := marshalValues(e.OldValues)
	if err != nil {
		return err
	}
	newValues, err := marshalValues(e.NewValues)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO audit_log (id, action, entity_type, entity_id, actor_id, old_values, new_values, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, string(e.Action), e.EntityType, e.EntityID, e.ActorID, oldValues, newValues, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: append audit: %w", err)
	}
	return nil
}

func (s *queries) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	var where []string
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, clause+" $"+strconv.Itoa(len(args)))
	}
	if filter.EntityType != "" {
		add("entity_type =", filter.EntityType)
	}
	if filter.EntityID != "" {
		add("entity_id =", filter.EntityID)
	}
	if filter.ActorID != "" {
		add("actor_id =", filter.ActorID)
	}
	if filter.From != nil {
		add("timestamp >=", *filter.From)
	}
	if filter.To != nil {
		add("timestamp <=", *filter.To)
	}

	query := `SELECT id, action, entity_type, entity_id, actor_id, old_values, new_values, timestamp FROM audit_log`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY timestamp, seq`

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query audit: %w", err)
	}
	defer rows.Close()

	var out []generic.AuditEntry
	for rows.Next() {
		var (
			e                generic.AuditEntry
			action           string
			oldJSON, newJSON []byte
		)
		if err := rows.Scan(&e.ID, &action, &e.EntityType, &e.EntityID, &e.ActorID, &oldJSON, &newJSON, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Action = generic.AuditAction(action)
		if e.OldValues, err = unmarshalValues(oldJSON); err != nil {
			return nil, err
		}
		if e.NewValues, err = unmarshalValues(newJSON); err != nil {
			return nil, err
		}
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func marshalValues(v map[string]any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode audit values: %w", err)
	}
	return data, nil
}

func unmarshalValues(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("postgres: decode audit values: %w", err)
	}
	return v, nil
}
