package ext

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/courier/job"
)

// hookSet caches the registered implementations of one hook interface,
// each paired with the extension name captured at registration time.
type hookSet[H any] struct {
	method string
	names  []string
	hooks  []H
}

func (s *hookSet[H]) offer(name string, e Extension) {
	if h, ok := e.(H); ok {
		s.names = append(s.names, name)
		s.hooks = append(s.hooks, h)
	}
}

// Registry holds registered extensions and fans lifecycle events out to
// them. Extensions are sorted into per-hook sets at registration, so an
// emit only visits extensions that implement the hook.
//
// Register all extensions before the pool starts; emit methods do not
// lock.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	jobEnqueued    hookSet[JobEnqueued]
	jobStarted     hookSet[JobStarted]
	jobCompleted   hookSet[JobCompleted]
	jobRetrying    hookSet[JobRetrying]
	jobFailed      hookSet[JobFailed]
	eventTriggered hookSet[EventTriggered]
	scheduleFired  hookSet[ScheduleFired]
	shutdown       hookSet[Shutdown]
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:         logger,
		jobEnqueued:    hookSet[JobEnqueued]{method: "OnJobEnqueued"},
		jobStarted:     hookSet[JobStarted]{method: "OnJobStarted"},
		jobCompleted:   hookSet[JobCompleted]{method: "OnJobCompleted"},
		jobRetrying:    hookSet[JobRetrying]{method: "OnJobRetrying"},
		jobFailed:      hookSet[JobFailed]{method: "OnJobFailed"},
		eventTriggered: hookSet[EventTriggered]{method: "OnEventTriggered"},
		scheduleFired:  hookSet[ScheduleFired]{method: "OnScheduleFired"},
		shutdown:       hookSet[Shutdown]{method: "OnShutdown"},
	}
}

// Register adds an extension to every hook set it implements. Extensions
// are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	r.jobEnqueued.offer(name, e)
	r.jobStarted.offer(name, e)
	r.jobCompleted.offer(name, e)
	r.jobRetrying.offer(name, e)
	r.jobFailed.offer(name, e)
	r.eventTriggered.offer(name, e)
	r.scheduleFired.offer(name, e)
	r.shutdown.offer(name, e)
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Job event emitters
// ──────────────────────────────────────────────────

// EmitJobEnqueued notifies all extensions that implement JobEnqueued.
func (r *Registry) EmitJobEnqueued(ctx context.Context, j *job.Job) {
	emit(r, &r.jobEnqueued, func(h JobEnqueued) error { return h.OnJobEnqueued(ctx, j) })
}

// EmitJobStarted notifies all extensions that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, j *job.Job, attempt int) {
	emit(r, &r.jobStarted, func(h JobStarted) error { return h.OnJobStarted(ctx, j, attempt) })
}

// EmitJobCompleted notifies all extensions that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) {
	emit(r, &r.jobCompleted, func(h JobCompleted) error { return h.OnJobCompleted(ctx, j, elapsed) })
}

// EmitJobRetrying notifies all extensions that implement JobRetrying.
func (r *Registry) EmitJobRetrying(ctx context.Context, j *job.Job, attempt int, delay time.Duration) {
	emit(r, &r.jobRetrying, func(h JobRetrying) error { return h.OnJobRetrying(ctx, j, attempt, delay) })
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, jobErr error) {
	emit(r, &r.jobFailed, func(h JobFailed) error { return h.OnJobFailed(ctx, j, jobErr) })
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitEventTriggered notifies all extensions that implement EventTriggered.
func (r *Registry) EmitEventTriggered(ctx context.Context, eventID, eventName string, deliveries int) {
	emit(r, &r.eventTriggered, func(h EventTriggered) error {
		return h.OnEventTriggered(ctx, eventID, eventName, deliveries)
	})
}

// EmitScheduleFired notifies all extensions that implement ScheduleFired.
func (r *Registry) EmitScheduleFired(ctx context.Context, scheduleName, jobID string) {
	emit(r, &r.scheduleFired, func(h ScheduleFired) error {
		return h.OnScheduleFired(ctx, scheduleName, jobID)
	})
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(r, &r.shutdown, func(h Shutdown) error { return h.OnShutdown(ctx) })
}

// emit calls fn for every hook in s. Hook errors and panics are logged and
// never reach the caller.
func emit[H any](r *Registry, s *hookSet[H], fn func(H) error) {
	for i, h := range s.hooks {
		if err := callHook(h, fn); err != nil {
			r.logger.Warn("extension hook error",
				slog.String("hook", s.method),
				slog.String("extension", s.names[i]),
				slog.String("error", err.Error()),
			)
		}
	}
}

func callHook[H any](h H, fn func(H) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("hook panicked: %v", p)
		}
	}()
	return fn(h)
}
