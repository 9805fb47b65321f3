package relayhook

import (
	"context"
	"time"

	"github.com/xraph/courier/ext"
	"github.com/xraph/courier/job"
	"github.com/xraph/courier/webhook"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Extension)(nil)
	_ ext.JobEnqueued   = (*Extension)(nil)
	_ ext.JobStarted    = (*Extension)(nil)
	_ ext.JobCompleted  = (*Extension)(nil)
	_ ext.JobFailed     = (*Extension)(nil)
	_ ext.JobRetrying   = (*Extension)(nil)
	_ ext.ScheduleFired = (*Extension)(nil)

	_ Triggerer = (*webhook.Dispatcher)(nil)
)

// Triggerer fans an event out to its subscribers. *webhook.Dispatcher
// implements it.
type Triggerer interface {
	Trigger(ctx context.Context, event string, data any) ([]string, error)
}

// Extension relays job lifecycle events to webhook subscribers. Each
// lifecycle hook triggers a typed event via [Triggerer.Trigger].
type Extension struct {
	dispatcher Triggerer
	enabled    map[string]bool        // nil = all enabled
	payloads   map[string]PayloadFunc // custom payload builders
	skip       map[string]bool        // job kinds never relayed
}

// New creates an Extension that triggers job lifecycle events through d.
func New(d Triggerer, opts ...Option) *Extension {
	h := &Extension{
		dispatcher: d,
		skip:       map[string]bool{webhook.KindDeliver: true},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements ext.Extension.
func (h *Extension) Name() string { return "relay-hook" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobEnqueued implements ext.JobEnqueued.
func (h *Extension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	return h.send(ctx, EventJobEnqueued, j, newJobPayload(j))
}

// OnJobStarted implements ext.JobStarted.
func (h *Extension) OnJobStarted(ctx context.Context, j *job.Job, attempt int) error {
	return h.send(ctx, EventJobStarted, j, &jobAttemptPayload{
		jobPayload: *newJobPayload(j),
		Attempt:    attempt,
	})
}

// OnJobCompleted implements ext.JobCompleted.
func (h *Extension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return h.send(ctx, EventJobCompleted, j, &jobCompletedPayload{
		jobPayload: *newJobPayload(j),
		ElapsedMs:  elapsed.Milliseconds(),
	})
}

// OnJobFailed implements ext.JobFailed.
func (h *Extension) OnJobFailed(ctx context.Context, j *job.Job, jobErr error) error {
	return h.send(ctx, EventJobFailed, j, &jobFailedPayload{
		jobPayload: *newJobPayload(j),
		Error:      jobErr.Error(),
	})
}

// OnJobRetrying implements ext.JobRetrying.
func (h *Extension) OnJobRetrying(ctx context.Context, j *job.Job, attempt int, delay time.Duration) error {
	return h.send(ctx, EventJobRetrying, j, &jobRetryingPayload{
		jobPayload: *newJobPayload(j),
		Attempt:    attempt,
		DelayMs:    delay.Milliseconds(),
	})
}

// ── Schedule hooks ──────────────────────────────────

// OnScheduleFired implements ext.ScheduleFired.
func (h *Extension) OnScheduleFired(ctx context.Context, scheduleName, jobID string) error {
	return h.trigger(ctx, EventScheduleFired, &schedulePayload{
		Schedule: scheduleName,
		JobID:    jobID,
	})
}

// ── Internal helpers ────────────────────────────────

// send relays a job lifecycle event unless j's kind is skipped.
func (h *Extension) send(ctx context.Context, eventType string, j *job.Job, defaultData any) error {
	if h.skip[j.Name] {
		return nil
	}
	return h.trigger(ctx, eventType, defaultData)
}

// trigger fans eventType out if it is enabled.
func (h *Extension) trigger(ctx context.Context, eventType string, defaultData any) error {
	if h.enabled != nil && !h.enabled[eventType] {
		return nil
	}

	data := defaultData
	if fn, ok := h.payloads[eventType]; ok {
		custom, err := fn(defaultData)
		if err != nil {
			return err
		}
		data = custom
	}

	_, err := h.dispatcher.Trigger(ctx, eventType, data)
	return err
}

// ── Default payload types ───────────────────────────

type jobPayload struct {
	JobID    string       `json:"job_id"`
	JobName  string       `json:"job_name"`
	Priority job.Priority `json:"priority"`
}

func newJobPayload(j *job.Job) *jobPayload {
	return &jobPayload{
		JobID:    j.ID,
		JobName:  j.Name,
		Priority: j.Priority,
	}
}

type jobAttemptPayload struct {
	jobPayload
	Attempt int `json:"attempt"`
}

type jobCompletedPayload struct {
	jobPayload
	ElapsedMs int64 `json:"elapsed_ms"`
}

type jobFailedPayload struct {
	jobPayload
	Error string `json:"error"`
}

type jobRetryingPayload struct {
	jobPayload
	Attempt int   `json:"attempt"`
	DelayMs int64 `json:"delay_ms"`
}

type schedulePayload struct {
	Schedule string `json:"schedule"`
	JobID    string `json:"job_id"`
}
