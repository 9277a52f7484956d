package benefit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/warp/benefit-engine/generic"
)

// =============================================================================
// AUDIT SINK - Fire-and-forget record of every state change
// =============================================================================

// AuditSink receives audit entries. Record errors are logged by the caller
// and never fail the operation that produced the entry.
type AuditSink interface {
	Record(ctx context.Context, entry generic.AuditEntry) error
}

// AuditSinkFunc adapts a function to AuditSink.
type AuditSinkFunc func(ctx context.Context, entry generic.AuditEntry) error

func (f AuditSinkFunc) Record(ctx context.Context, entry generic.AuditEntry) error {
	return f(ctx, entry)
}

// LogAuditSink appends entries directly to an AuditLog.
type LogAuditSink struct {
	Log generic.AuditLog
}

func (s LogAuditSink) Record(ctx context.Context, entry generic.AuditEntry) error {
	return s.Log.AppendAudit(ctx, entry)
}

// Entity types used in audit entries.
const (
	EntityClaim       = "claim"
	EntityPeriod      = "period"
	EntityEmployee    = "employee"
	EntityExpenseType = "expense_type"
)

func newAuditEntry(action generic.AuditAction, entityType, entityID string, actor Actor, oldValues, newValues map[string]any, now time.Time) generic.AuditEntry {
	return generic.AuditEntry{
		ID:         uuid.NewString(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actor.ID,
		OldValues:  oldValues,
		NewValues:  newValues,
		Timestamp:  now,
	}
}

// claimValues is the audited view of a claim.
func claimValues(c Claim) map[string]any {
	v := map[string]any{
		"status":        string(c.Status),
		"periodId":      string(c.PeriodID),
		"expenseTypeId": string(c.ExpenseTypeID),
		"origin":        string(c.Origin),
		"expenseDate":   c.ExpenseDate.String(),
		"requested":     c.Requested.String(),
		"considered":    c.Considered.String(),
		"notConsidered": c.NotConsidered.String(),
	}
	if c.RejectionReason != "" {
		v["rejectionReason"] = c.RejectionReason
	}
	if c.ReviewedBy != "" {
		v["reviewedBy"] = c.ReviewedBy
	}
	return v
}

func periodValues(p Period) map[string]any {
	v := map[string]any{
		"label":      p.Label,
		"status":     string(p.Status),
		"accrual":    p.Accrual.String(),
		"submission": p.Submission.String(),
	}
	if p.NextPeriodID != nil {
		v["nextPeriodId"] = string(*p.NextPeriodID)
	}
	return v
}
