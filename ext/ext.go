// Package ext defines the extension system for courier.
// Extensions are notified of lifecycle events (job enqueued, completed,
// failed, event triggered, schedule fired) and can react to them.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/courier/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobEnqueued is called after a job is accepted into the queue.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, j *job.Job) error
}

// JobStarted is called when a worker begins an attempt.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job, attempt int) error
}

// JobCompleted is called after a job finishes successfully.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobRetrying is called when an attempt fails and the job will run again
// after delay.
type JobRetrying interface {
	OnJobRetrying(ctx context.Context, j *job.Job, attempt int, delay time.Duration) error
}

// JobFailed is called when a job exhausts its retry budget.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// EventTriggered is called when a webhook event fans out to its
// subscribers.
type EventTriggered interface {
	OnEventTriggered(ctx context.Context, eventID, eventName string, deliveries int) error
}

// ScheduleFired is called after a recurring schedule submitted its job.
type ScheduleFired interface {
	OnScheduleFired(ctx context.Context, scheduleName, jobID string) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
