package benefit

import (
	"context"
	"strings"

	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// ADMINISTRATION - Periods, employees, expense types
// =============================================================================
//
// All writes here require RoleAdmin. A ceiling change takes effect on the
// next ledger read: nothing is stored per claim that depends on it.

func requireAdmin(actor Actor, action string) error {
	if !actor.HasRole(RoleAdmin) {
		return &generic.AuthorizationError{ActorID: actor.ID, Action: action, Role: RoleAdmin}
	}
	return nil
}

// SavePeriod creates or updates a period. The status may only move from
// open to closed, and a linked next period must exist.
func (s *ClaimService) SavePeriod(ctx context.Context, actor Actor, p Period) (*Period, error) {
	if err := requireAdmin(actor, "save_period"); err != nil {
		return nil, err
	}
	if p.Status == "" {
		p.Status = PeriodOpen
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var before *Period
	err := s.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetPeriod(ctx, p.ID)
		switch {
		case generic.IsNotFound(err):
			p.CreatedAt = now
		case err != nil:
			return err
		default:
			if err := ValidatePeriodTransition(existing.Status, p.Status); err != nil {
				return err
			}
			before = existing
			p.CreatedAt = existing.CreatedAt
		}
		if p.NextPeriodID != nil {
			if _, err := tx.GetPeriod(ctx, *p.NextPeriodID); err != nil {
				return err
			}
		}
		p.UpdatedAt = now
		return tx.SavePeriod(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	var oldValues map[string]any
	if before != nil {
		oldValues = periodValues(*before)
	}
	s.logger.Info("period saved", "period_id", p.ID, "status", p.Status, "actor_id", actor.ID)
	s.record(ctx, newAuditEntry(generic.AuditPeriodChanged, EntityPeriod, string(p.ID), actor, oldValues, periodValues(p), now))
	return &p, nil
}

// ClosePeriod closes a period by hand. Claims aimed at it are redirected to
// its next period from then on.
func (s *ClaimService) ClosePeriod(ctx context.Context, actor Actor, id PeriodID) (*Period, error) {
	if err := requireAdmin(actor, "close_period"); err != nil {
		return nil, err
	}
	p, err := s.store.GetPeriod(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Status = PeriodClosed
	return s.SavePeriod(ctx, actor, *p)
}

func (s *ClaimService) GetPeriod(ctx context.Context, id PeriodID) (*Period, error) {
	return s.store.GetPeriod(ctx, id)
}

func (s *ClaimService) ListPeriods(ctx context.Context) ([]Period, error) {
	return s.store.ListPeriods(ctx)
}

// SaveEmployee creates or updates an employee. The ceiling must not be
// negative; raising it retroactively reopens room in every period.
func (s *ClaimService) SaveEmployee(ctx context.Context, actor Actor, e Employee) (*Employee, error) {
	if err := requireAdmin(actor, "save_employee"); err != nil {
		return nil, err
	}
	if e.ID == "" {
		return nil, generic.NewValidationError("id", "required")
	}
	if e.Ceiling.IsNegative() {
		return nil, generic.NewValidationError("ceiling", "must not be negative")
	}
	if err := requireCents("ceiling", e.Ceiling); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var before *Employee
	err := s.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetEmployee(ctx, e.ID)
		switch {
		case generic.IsNotFound(err):
			e.CreatedAt = now
		case err != nil:
			return err
		default:
			before = existing
			e.CreatedAt = existing.CreatedAt
		}
		e.UpdatedAt = now
		return tx.SaveEmployee(ctx, e)
	})
	if err != nil {
		return nil, err
	}

	if before == nil || !before.Ceiling.Equal(e.Ceiling) {
		var oldValues map[string]any
		if before != nil {
			oldValues = map[string]any{"ceiling": before.Ceiling.String()}
		}
		s.logger.Info("employee ceiling set", "employee_id", e.ID, "ceiling", e.Ceiling.String(), "actor_id", actor.ID)
		s.record(ctx, newAuditEntry(generic.AuditCeilingChanged, EntityEmployee, string(e.ID), actor,
			oldValues, map[string]any{"ceiling": e.Ceiling.String()}, now))
	}
	return &e, nil
}

func (s *ClaimService) GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error) {
	return s.store.GetEmployee(ctx, id)
}

func (s *ClaimService) ListEmployees(ctx context.Context) ([]Employee, error) {
	return s.store.ListEmployees(ctx)
}

// SaveExpenseType creates or updates an expense type.
func (s *ClaimService) SaveExpenseType(ctx context.Context, actor Actor, t ExpenseType) (*ExpenseType, error) {
	if err := requireAdmin(actor, "save_expense_type"); err != nil {
		return nil, err
	}
	if t.ID == "" {
		return nil, generic.NewValidationError("id", "required")
	}
	if strings.TrimSpace(t.Name) == "" {
		return nil, generic.NewValidationError("name", "required")
	}
	if _, err := ParseClassification(string(t.Classification)); err != nil {
		return nil, err
	}
	if len(t.AllowedOrigins) == 0 {
		return nil, generic.NewValidationError("allowedOrigins", "at least one origin is required")
	}
	for _, o := range t.AllowedOrigins {
		if _, err := ParseOrigin(string(o)); err != nil {
			return nil, err
		}
	}
	if err := s.store.SaveExpenseType(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("expense type saved", "expense_type_id", t.ID, "actor_id", actor.ID)
	return &t, nil
}

func (s *ClaimService) GetExpenseType(ctx context.Context, id ExpenseTypeID) (*ExpenseType, error) {
	return s.store.GetExpenseType(ctx, id)
}

func (s *ClaimService) ListExpenseTypes(ctx context.Context) ([]ExpenseType, error) {
	return s.store.ListExpenseTypes(ctx)
}
