package jobs

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/generic"
)

// Enqueuer is the subset of *asynq.Client used to publish tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AuditPublisher is a benefit.AuditSink that hands entries to the worker
// instead of writing them inline.
type AuditPublisher struct {
	client Enqueuer
}

var _ benefit.AuditSink = (*AuditPublisher)(nil)

func NewAuditPublisher(client Enqueuer) *AuditPublisher {
	return &AuditPublisher{client: client}
}

func (p *AuditPublisher) Record(ctx context.Context, entry generic.AuditEntry) error {
	task, err := NewAuditTask(entry)
	if err != nil {
		return err
	}
	_, err = p.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueAudit),
		asynq.MaxRetry(defaultMaxRetry),
	)
	return err
}
