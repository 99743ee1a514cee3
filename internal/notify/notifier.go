package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kalambet/provform/internal/profile"
	"github.com/kalambet/provform/internal/storage"
)

// Enqueuer adds jobs to the queue.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
}

// QueueNotifier implements profile.Notifier by enqueueing a job for the
// Worker. Failures are logged; the submission itself has already succeeded.
type QueueNotifier struct {
	queue  Enqueuer
	logger *slog.Logger
}

var _ profile.Notifier = (*QueueNotifier)(nil)

func NewQueueNotifier(queue Enqueuer) *QueueNotifier {
	return &QueueNotifier{queue: queue, logger: slog.Default()}
}

func (n *QueueNotifier) NotifySubmitted(ctx context.Context, p profile.SavedProfile) {
	ev := NewSubmittedEvent(p)
	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error("encoding submission event", "profile_id", p.ID, "error", err)
		return
	}

	// The caller's request may finish right after this returns.
	ctx = context.WithoutCancel(ctx)
	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        JobType,
		PayloadJSON: string(payload),
		MaxAttempts: 5,
	}
	if err := n.queue.EnqueueJob(ctx, job); err != nil {
		n.logger.Error("enqueueing submission event", "profile_id", p.ID, "error", err)
		return
	}
	n.logger.Debug("submission event queued", "profile_id", p.ID, "job_id", job.ID)
}
