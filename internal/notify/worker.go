// Package notify delivers "profile submitted" events outside the request
// path. Submissions enqueue a job in the SQLite queue; the Worker claims
// jobs and publishes them, retrying with backoff on failure.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/provform/internal/storage"
)

// JobType is the queue job type for submission events.
const JobType = "profile_submitted"

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
}

// Worker processes profile_submitted jobs from the SQLite job queue.
type Worker struct {
	store     JobStore
	publisher Publisher
	poll      time.Duration
	logger    *slog.Logger

	// OnPublished, if set, is called after each successful publish.
	OnPublished func(Event)
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, publisher Publisher, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:     store,
		publisher: publisher,
		poll:      pollInterval,
		logger:    slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("notify worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and publishes a single job. It returns true if a job was
// processed, whether or not publishing succeeded.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	ev, err := w.processJob(ctx, job)
	if err != nil {
		w.logger.Warn("notify job failed", "job_id", job.ID, "attempt", job.Attempts+1, "error", err)
		if failErr := w.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	if w.OnPublished != nil {
		w.OnPublished(ev)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(job.PayloadJSON), &ev); err != nil {
		return Event{}, fmt.Errorf("parsing payload: %w", err)
	}
	if ev.ProfileID == "" {
		return Event{}, fmt.Errorf("payload has no profile_id")
	}
	if err := w.publisher.Publish(ctx, ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
