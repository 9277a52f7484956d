package generic

import (
	"context"
	"time"
)

// =============================================================================
// AUDIT LOG - Separate from the claims, tracks who did what when
// =============================================================================

// AuditEntry records one state change of one entity.
type AuditEntry struct {
	ID         string         `json:"id"`
	Action     AuditAction    `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	ActorID    string         `json:"actorId"`
	OldValues  map[string]any `json:"oldValues,omitempty"`
	NewValues  map[string]any `json:"newValues,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

type AuditAction string

const (
	AuditClaimCreated     AuditAction = "claim_created"
	AuditClaimEdited      AuditAction = "claim_edited"
	AuditClaimReviewStart AuditAction = "claim_review_started"
	AuditClaimApproved    AuditAction = "claim_approved"
	AuditClaimRejected    AuditAction = "claim_rejected"
	AuditPeriodChanged    AuditAction = "period_changed"
	AuditCeilingChanged   AuditAction = "ceiling_changed"
)

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	EntityType string
	EntityID   string
	ActorID    string
	Actions    []AuditAction
	From       *time.Time
	To         *time.Time
}

// Matches reports whether the entry passes every set criterion.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if a == e.Action {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}
