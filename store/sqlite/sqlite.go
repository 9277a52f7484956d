/*
Package sqlite provides a SQLite-backed implementation of benefit.TxStore.

PURPOSE:
  Single-node persistence for periods, employees, expense types, claims,
  ledger heads and the audit log.

KEY TABLES:
  periods:       Benefit cycles with accrual and submission windows
  employees:     Eligible employees and their ceiling
  expense_types: Allowed origins and classification
  claims:        One row per claim; amounts stored as decimal TEXT
  ledger_heads:  Version per (employee, period), advanced on every claim write
  audit_log:     Append-only record of state changes

CONCURRENCY:
  The pool is capped at one connection. SQLite has a single writer anyway,
  and with one connection a transaction started by WithTx sees no
  interleaved statement from another goroutine. Ledger heads are still
  compared on write, so the store stays correct if the cap is lifted.

  Inside WithTx, use only the Store passed to fn: the outer Store would wait
  for the connection the transaction holds.

USAGE:
  store, err := sqlite.New("./data/benefits.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). PostgreSQL deployments use versioned
  migrations instead (store/postgres).

SEE ALSO:
  - benefit/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/generic"
)

// timeLayout has fixed width so TEXT ordering matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements benefit.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
}

// queries runs every statement against q. Store uses the pool, WithTx a
// transaction.
type queries struct {
	q querier
}

var _ benefit.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{queries: queries{q: db}, db: db}
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

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS periods (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		accrual_start TEXT NOT NULL,
		accrual_end TEXT NOT NULL,
		submission_start TEXT NOT NULL,
		submission_end TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('open', 'closed')),
		next_period_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		ceiling TEXT NOT NULL,
		identity_ref TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS expense_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		allowed_origins_json TEXT NOT NULL,
		classification TEXT NOT NULL CHECK (classification IN ('fixa', 'variavel'))
	);

	CREATE TABLE IF NOT EXISTS claims (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		period_id TEXT NOT NULL REFERENCES periods(id),
		expense_type_id TEXT NOT NULL REFERENCES expense_types(id),
		origin TEXT NOT NULL CHECK (origin IN ('proprio', 'conjuge', 'filhos')),
		description TEXT NOT NULL DEFAULT '',
		expense_date TEXT NOT NULL,
		receipt_signature TEXT,
		requested TEXT NOT NULL,
		considered TEXT NOT NULL,
		not_considered TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('enviado', 'em_analise', 'valido', 'invalido')),
		rejection_reason TEXT,
		reviewed_by TEXT,
		reviewed_at TEXT,
		submitted_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_claims_employee_period
		ON claims(employee_id, period_id);
	CREATE INDEX IF NOT EXISTS idx_claims_status
		ON claims(status);
	CREATE INDEX IF NOT EXISTS idx_claims_receipt
		ON claims(employee_id, receipt_signature) WHERE receipt_signature IS NOT NULL;

	CREATE TABLE IF NOT EXISTS ledger_heads (
		employee_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		PRIMARY KEY (employee_id, period_id)
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		old_values_json TEXT,
		new_values_json TEXT,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_entity
		ON audit_log(entity_type, entity_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store benefit.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// PERIODS
// =============================================================================

const periodColumns = `id, label, accrual_start, accrual_end, submission_start, submission_end,
	status, next_period_id, created_at, updated_at`

func (s *queries) SavePeriod(ctx context.Context, p benefit.Period) error {
	query := `
		INSERT INTO periods (` + periodColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			accrual_start = excluded.accrual_start,
			accrual_end = excluded.accrual_end,
			submission_start = excluded.submission_start,
			submission_end = excluded.submission_end,
			status = excluded.status,
			next_period_id = excluded.next_period_id,
			updated_at = excluded.updated_at
	`

	var next sql.NullString
	if p.NextPeriodID != nil {
		next = nullString(string(*p.NextPeriodID))
	}
	_, err := s.q.ExecContext(ctx, query,
		p.ID, p.Label,
		p.Accrual.Start.String(), p.Accrual.End.String(),
		p.Submission.Start.String(), p.Submission.End.String(),
		p.Status, next,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save period: %w", err)
	}
	return nil
}

func (s *queries) GetPeriod(ctx context.Context, id benefit.PeriodID) (*benefit.Period, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+periodColumns+" FROM periods WHERE id = ?", id)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Entity: "period", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *queries) ListPeriods(ctx context.Context) ([]benefit.Period, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT "+periodColumns+" FROM periods ORDER BY submission_start, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanPeriod(row scanner) (benefit.Period, error) {
	var p benefit.Period
	var accStart, accEnd, subStart, subEnd, createdAt, updatedAt string
	var next sql.NullString

	if err := row.Scan(&p.ID, &p.Label, &accStart, &accEnd, &subStart, &subEnd,
		&p.Status, &next, &createdAt, &updatedAt); err != nil {
		return p, err
	}

	p.Accrual = generic.Window{Start: generic.MustParseDate(accStart), End: generic.MustParseDate(accEnd)}
	p.Submission = generic.Window{Start: generic.MustParseDate(subStart), End: generic.MustParseDate(subEnd)}
	if next.Valid {
		id := benefit.PeriodID(next.String)
		p.NextPeriodID = &id
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *queries) SaveEmployee(ctx context.Context, e benefit.Employee) error {
	query := `
		INSERT INTO employees (id, name, ceiling, identity_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			ceiling = excluded.ceiling,
			identity_ref = excluded.identity_ref,
			updated_at = excluded.updated_at
	`

	_, err := s.q.ExecContext(ctx, query,
		e.ID, e.Name, e.Ceiling.Value.String(), nullString(e.IdentityRef),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *queries) GetEmployee(ctx context.Context, id benefit.EmployeeID) (*benefit.Employee, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT id, name, ceiling, identity_ref, created_at, updated_at FROM employees WHERE id = ?", id)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Entity: "employee", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *queries) ListEmployees(ctx context.Context) ([]benefit.Employee, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, name, ceiling, identity_ref, created_at, updated_at FROM employees ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
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

func scanEmployee(row scanner) (benefit.Employee, error) {
	var e benefit.Employee
	var ceiling, createdAt, updatedAt string
	var identity sql.NullString

	if err := row.Scan(&e.ID, &e.Name, &ceiling, &identity, &createdAt, &updatedAt); err != nil {
		return e, err
	}
	amount, err := generic.ParseAmount(ceiling)
	if err != nil {
		return e, err
	}
	e.Ceiling = amount
	e.IdentityRef = identity.String
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

// =============================================================================
// EXPENSE TYPES
// =============================================================================

func (s *queries) SaveExpenseType(ctx context.Context, t benefit.ExpenseType) error {
	origins, err := json.Marshal(t.AllowedOrigins)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO expense_types (id, name, allowed_origins_json, classification)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			allowed_origins_json = excluded.allowed_origins_json,
			classification = excluded.classification
	`
	if _, err := s.q.ExecContext(ctx, query, t.ID, t.Name, string(origins), t.Classification); err != nil {
		return fmt.Errorf("failed to save expense type: %w", err)
	}
	return nil
}

func (s *queries) GetExpenseType(ctx context.Context, id benefit.ExpenseTypeID) (*benefit.ExpenseType, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT id, name, allowed_origins_json, classification FROM expense_types WHERE id = ?", id)
	t, err := scanExpenseType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Entity: "expense type", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *queries) ListExpenseTypes(ctx context.Context) ([]benefit.ExpenseType, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, name, allowed_origins_json, classification FROM expense_types ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list expense types: %w", err)
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

func scanExpenseType(row scanner) (benefit.ExpenseType, error) {
	var t benefit.ExpenseType
	var origins string
	if err := row.Scan(&t.ID, &t.Name, &origins, &t.Classification); err != nil {
		return t, err
	}
	if err := json.Unmarshal([]byte(origins), &t.AllowedOrigins); err != nil {
		return t, fmt.Errorf("failed to decode allowed origins of %s: %w", t.ID, err)
	}
	return t, nil
}

// =============================================================================
// CLAIMS
// =============================================================================

const claimColumns = `id, employee_id, period_id, expense_type_id, origin, description, expense_date,
	receipt_signature, requested, considered, not_considered, status, rejection_reason,
	reviewed_by, reviewed_at, submitted_by, created_at, updated_at, version`

func (s *queries) GetClaim(ctx context.Context, id benefit.ClaimID) (*benefit.Claim, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+claimColumns+" FROM claims WHERE id = ?", id)
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
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
	if filter.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if filter.PeriodID != "" {
		where = append(where, "period_id = ?")
		args = append(args, filter.PeriodID)
	}
	if filter.ExpenseTypeID != "" {
		where = append(where, "expense_type_id = ?")
		args = append(args, filter.ExpenseTypeID)
	}
	if filter.ReceiptSignature != "" {
		where = append(where, "receipt_signature = ?")
		args = append(args, filter.ReceiptSignature)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := "SELECT " + claimColumns + " FROM claims"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
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
	err := s.q.QueryRowContext(ctx,
		"SELECT version FROM ledger_heads WHERE employee_id = ? AND period_id = ?",
		employeeID, periodID,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger head: %w", err)
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

	query := `INSERT INTO claims (` + claimColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, query, claimArgs(c)...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.NewValidationError("id", "claim "+string(c.ID)+" already exists")
		}
		return fmt.Errorf("failed to create claim: %w", err)
	}
	return nil
}

func (s *queries) UpdateClaim(ctx context.Context, c benefit.Claim, head int64) error {
	if err := s.advanceHead(ctx, c.EmployeeID, c.PeriodID, head); err != nil {
		return err
	}

	query := `
		UPDATE claims SET
			expense_type_id = ?, origin = ?, description = ?, expense_date = ?,
			receipt_signature = ?, requested = ?, considered = ?, not_considered = ?,
			status = ?, rejection_reason = ?, reviewed_by = ?, reviewed_at = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`
	res, err := s.q.ExecContext(ctx, query,
		c.ExpenseTypeID, c.Origin, c.Description, c.ExpenseDate.String(),
		nullString(c.ReceiptSignature), c.Requested.Value.String(), c.Considered.Value.String(),
		c.NotConsidered.Value.String(), c.Status, nullString(c.RejectionReason),
		nullString(c.ReviewedBy), nullTime(c.ReviewedAt), formatTime(c.UpdatedAt),
		c.ID, c.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update claim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetClaim(ctx, c.ID); err != nil {
			return err
		}
		return &generic.ConflictError{Resource: "claim " + string(c.ID)}
	}
	return nil
}

// advanceHead moves the ledger head one step, first checking it still
// equals expected unless expected is AnyHead.
func (s *queries) advanceHead(ctx context.Context, employeeID benefit.EmployeeID, periodID benefit.PeriodID, expected int64) error {
	conflict := &generic.ConflictError{Resource: "ledger " + string(employeeID) + "/" + string(periodID)}

	if expected == benefit.AnyHead {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO ledger_heads (employee_id, period_id, version) VALUES (?, ?, 1)
			ON CONFLICT(employee_id, period_id) DO UPDATE SET version = version + 1`,
			employeeID, periodID)
		return err
	}

	if expected == 0 {
		_, err := s.q.ExecContext(ctx,
			"INSERT INTO ledger_heads (employee_id, period_id, version) VALUES (?, ?, 1)",
			employeeID, periodID)
		if isUniqueConstraintError(err) {
			return conflict
		}
		return err
	}

	res, err := s.q.ExecContext(ctx,
		"UPDATE ledger_heads SET version = version + 1 WHERE employee_id = ? AND period_id = ? AND version = ?",
		employeeID, periodID, expected)
	if err != nil {
		return fmt.Errorf("failed to advance ledger head: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return conflict
	}
	return nil
}

func claimArgs(c benefit.Claim) []any {
	return []any{
		c.ID, c.EmployeeID, c.PeriodID, c.ExpenseTypeID, c.Origin, c.Description,
		c.ExpenseDate.String(), nullString(c.ReceiptSignature),
		c.Requested.Value.String(), c.Considered.Value.String(), c.NotConsidered.Value.String(),
		c.Status, nullString(c.RejectionReason), nullString(c.ReviewedBy), nullTime(c.ReviewedAt),
		c.SubmittedBy, formatTime(c.CreatedAt), formatTime(c.UpdatedAt), c.Version,
	}
}

func scanClaim(row scanner) (benefit.Claim, error) {
	var c benefit.Claim
	var expenseDate, requested, considered, notConsidered, createdAt, updatedAt string
	var signature, reason, reviewedBy, reviewedAt sql.NullString

	err := row.Scan(&c.ID, &c.EmployeeID, &c.PeriodID, &c.ExpenseTypeID, &c.Origin, &c.Description,
		&expenseDate, &signature, &requested, &considered, &notConsidered, &c.Status, &reason,
		&reviewedBy, &reviewedAt, &c.SubmittedBy, &createdAt, &updatedAt, &c.Version)
	if err != nil {
		return c, err
	}

	c.ExpenseDate = generic.MustParseDate(expenseDate)
	c.ReceiptSignature = signature.String
	c.RejectionReason = reason.String
	c.ReviewedBy = reviewedBy.String
	if reviewedAt.Valid {
		t := parseTime(reviewedAt.String)
		c.ReviewedAt = &t
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)

	for _, f := range []struct {
		dst *generic.Amount
		src string
	}{{&c.Requested, requested}, {&c.Considered, considered}, {&c.NotConsidered, notConsidered}} {
		a, err := generic.ParseAmount(f.src)
		if err != nil {
			return c, err
		}
		*f.dst = a
	}
	return c, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *queries) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	oldJSON, err := marshalValues(e.OldValues)
	if err != nil {
		return err
	}
	newJSON, err := marshalValues(e.NewValues)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO audit_log (id, action, entity_type, entity_id, actor_id, old_values_json, new_values_json, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.EntityType, e.EntityID, e.ActorID, oldJSON, newJSON, formatTime(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *queries) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	var where []string
	var args []any
	if filter.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.ActorID != "" {
		where = append(where, "actor_id = ?")
		args = append(args, filter.ActorID)
	}

	query := "SELECT id, action, entity_type, entity_id, actor_id, old_values_json, new_values_json, timestamp FROM audit_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp, rowid"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []generic.AuditEntry
	for rows.Next() {
		var e generic.AuditEntry
		var oldJSON, newJSON sql.NullString
		var ts string
		if err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &e.EntityID, &e.ActorID, &oldJSON, &newJSON, &ts); err != nil {
			return nil, err
		}
		if e.OldValues, err = unmarshalValues(oldJSON); err != nil {
			return nil, err
		}
		if e.NewValues, err = unmarshalValues(newJSON); err != nil {
			return nil, err
		}
		e.Timestamp = parseTime(ts)
		// Actions and the time range are matched in Go.
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

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

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func marshalValues(v map[string]any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode audit values: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalValues(s sql.NullString) (map[string]any, error) {
	if !s.Valid {
		return nil, nil
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(s.String), &v); err != nil {
		return nil, fmt.Errorf("failed to decode audit values: %w", err)
	}
	return v, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
