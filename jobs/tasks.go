package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/warp/benefit-engine/generic"
)

const (
	// QueueAudit carries audit entries produced by claim transitions.
	QueueAudit = "audit"
	// TaskClaimAudit persists one audit entry.
	TaskClaimAudit = "claim:audit"

	defaultMaxRetry = 5
)

// NewAuditTask wraps an audit entry in an asynq task.
func NewAuditTask(entry generic.AuditEntry) (*asynq.Task, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode audit entry: %w", err)
	}
	return asynq.NewTask(TaskClaimAudit, data), nil
}

// AuditHandler appends delivered entries to an audit log. Delivery is at
// least once, so an entry whose ID is already stored is skipped.
type AuditHandler struct {
	log    generic.AuditLog
	logger *slog.Logger
}

func NewAuditHandler(log generic.AuditLog, logger *slog.Logger) *AuditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditHandler{log: log, logger: logger}
}

// Handle processes TaskClaimAudit tasks.
func (h *AuditHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var entry generic.AuditEntry
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		h.logger.Error("audit payload", slog.Any("error", err))
		return fmt.Errorf("jobs: decode audit entry: %v: %w", err, asynq.SkipRetry)
	}

	existing, err := h.log.QueryAudit(ctx, generic.AuditFilter{
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
	})
	if err != nil {
		return fmt.Errorf("jobs: query audit: %w", err)
	}
	for _, e := range existing {
		if e.ID == entry.ID {
			h.logger.Debug("audit entry already stored", slog.String("id", entry.ID))
			return nil
		}
	}

	if err := h.log.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("jobs: append audit: %w", err)
	}
	h.logger.Debug("audit entry stored",
		slog.String("id", entry.ID),
		slog.String("action", string(entry.Action)),
		slog.String("entity", entry.EntityType+"/"+entry.EntityID))
	return nil
}
