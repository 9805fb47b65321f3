// Package engine wires the courier subsystems together and provides the
// caller-facing API for registering and submitting work. It creates the
// extension registry, job registry, middleware chain and worker pool, and
// answers status, result and wait queries against the pool.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/courier"
	"github.com/xraph/courier/backoff"
	"github.com/xraph/courier/ext"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
	mw "github.com/xraph/courier/middleware"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/worker"
)

// DefaultIDPrefix prefixes the identifiers of submitted jobs.
const DefaultIDPrefix = "task"

// Engine is the job manager. It owns one worker pool and is safe for
// concurrent use. Create one with New; there are no package-level
// instances.
type Engine struct {
	config     courier.Config
	extensions *ext.Registry
	exts       []ext.Extension
	registry   *job.Registry
	seq        *id.Sequence
	idPrefix   string
	bo         backoff.Strategy
	pool       *worker.Pool
	mws        []mw.Middleware
	logger     *slog.Logger

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg courier.Config) Option {
	return func(eng *Engine) { eng.config = cfg }
}

// WithLogger sets the logger used by the engine and its pool.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.exts = append(eng.exts, e) }
}

// WithMiddleware adds middleware to the engine's chain. User middleware
// runs innermost, after the built-in stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithBackoff sets the retry backoff strategy. If not set,
// backoff.Default() (2^attempts seconds) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) { eng.bo = b }
}

// WithIDPrefix sets the prefix of generated job identifiers.
func WithIDPrefix(prefix string) Option {
	return func(eng *Engine) { eng.idPrefix = prefix }
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, both the metrics middleware and the observability extension
// use this provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// New creates an Engine. The pool is not started until Start is called.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		config:   courier.DefaultConfig(),
		registry: job.NewRegistry(),
		idPrefix: DefaultIDPrefix,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(eng)
	}
	if err := eng.config.Validate(); err != nil {
		return nil, err
	}

	eng.extensions = ext.NewRegistry(eng.logger)
	for _, e := range eng.exts {
		eng.extensions.Register(e)
	}

	if eng.bo == nil {
		eng.bo = backoff.Default()
	}
	eng.seq = id.NewSequence(eng.idPrefix)

	// Build tracing middleware (custom provider or global).
	tracingMw := mw.Tracing()
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/xraph/courier"))
	}

	// Build metrics middleware (custom provider or global).
	metricsMw := mw.Metrics()
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter("github.com/xraph/courier"))
	}

	// Register the observability metrics extension.
	obsExt := observability.NewMetricsExtension()
	if eng.meterProvider != nil {
		obsExt = observability.NewMetricsExtensionWithMeter(
			eng.meterProvider.Meter("github.com/xraph/courier/observability"))
	}
	eng.extensions.Register(obsExt)

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	allMws := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
		mw.Timeout(eng.logger),
	}
	allMws = append(allMws, eng.mws...)

	executor := worker.NewExecutor(eng.registry, eng.extensions, eng.bo, eng.logger, allMws...)
	eng.pool = worker.NewPool(executor, eng.extensions, eng.logger,
		worker.WithPoolConcurrency(eng.config.Workers),
		worker.WithPollInterval(eng.config.PollInterval),
		worker.WithShutdownTimeout(eng.config.ShutdownTimeout),
		worker.WithHistorySize(eng.config.HistorySize),
	)

	return eng, nil
}

// Register registers a typed job definition with the engine.
func Register[T, R any](eng *Engine, def *job.Definition[T, R]) {
	job.RegisterDefinition(eng.registry, def)
}

// Submit serializes payload and submits a job of the named kind. It
// returns the job identifier.
func Submit[T any](ctx context.Context, eng *Engine, name string, payload T, opts ...job.Option) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload for job %q: %w", name, err)
	}
	return eng.SubmitRaw(ctx, name, data, opts...)
}

// HasKind reports whether a handler is registered under name.
func (eng *Engine) HasKind(name string) bool {
	_, ok := eng.registry.Get(name)
	return ok
}

// SubmitRaw submits a job with a pre-serialized payload. Options apply in
// order: engine defaults, the kind's registered options, then opts. It
// never blocks.
func (eng *Engine) SubmitRaw(ctx context.Context, name string, payload []byte, opts ...job.Option) (string, error) {
	if _, ok := eng.registry.Get(name); !ok {
		return "", fmt.Errorf("%w: %q", courier.ErrUnknownJobKind, name)
	}

	all := make([]job.Option, 0, len(opts)+2)
	all = append(all, job.WithMaxAttempts(eng.config.MaxAttempts))
	all = append(all, eng.registry.Options(name)...)
	all = append(all, opts...)

	n, jobID := eng.seq.Next()
	rec := job.NewRecord(job.New(jobID, n, name, payload, all...))
	if err := eng.pool.Enqueue(ctx, rec); err != nil {
		return "", err
	}
	return jobID, nil
}

// Status returns the current state of a job.
func (eng *Engine) Status(jobID string) (job.State, error) {
	rec, ok := eng.pool.Lookup(jobID)
	if !ok {
		return "", courier.ErrJobNotFound
	}
	return rec.State(), nil
}

// Record returns a snapshot of a job's execution record.
func (eng *Engine) Record(jobID string) (job.Snapshot, error) {
	rec, ok := eng.pool.Lookup(jobID)
	if !ok {
		return job.Snapshot{}, courier.ErrJobNotFound
	}
	return rec.Snapshot(), nil
}

// Result returns the value produced by a completed job. A failed job
// yields *courier.JobFailedError carrying the last error; a job that has
// not finished yields courier.ErrNotReady; an unknown or evicted id yields
// courier.ErrJobNotFound.
func (eng *Engine) Result(jobID string) (any, error) {
	snap, err := eng.Record(jobID)
	if err != nil {
		return nil, err
	}
	switch snap.State {
	case job.StateCompleted:
		return snap.Result, nil
	case job.StateFailed:
		return nil, &courier.JobFailedError{JobID: jobID, Attempts: snap.Attempts, Message: snap.Error}
	default:
		return nil, courier.ErrNotReady
	}
}

// ResultAs is Result with the value asserted to R.
func ResultAs[R any](eng *Engine, jobID string) (R, error) {
	var zero R
	v, err := eng.Result(jobID)
	if err != nil {
		return zero, err
	}
	r, ok := v.(R)
	if !ok {
		return zero, fmt.Errorf("courier: result of job %s is %T, not %T", jobID, v, zero)
	}
	return r, nil
}

// Wait polls a job until it reaches a terminal state, the timeout elapses
// or ctx is done. It returns (nil, nil) on timeout; the job keeps running.
func (eng *Engine) Wait(ctx context.Context, jobID string, timeout time.Duration) (*job.Snapshot, error) {
	ticker := time.NewTicker(eng.config.WaitPollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		snap, err := eng.Record(jobID)
		if err != nil {
			return nil, err
		}
		if snap.State.IsTerminal() {
			return &snap, nil
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Stats returns pool statistics.
func (eng *Engine) Stats() worker.Stats { return eng.pool.Stats() }

// Pending returns snapshots of queued and retrying jobs.
func (eng *Engine) Pending() []job.Snapshot { return eng.pool.Pending() }

// Running returns snapshots of executing jobs.
func (eng *Engine) Running() []job.Snapshot { return eng.pool.Running() }

// Start begins job processing.
func (eng *Engine) Start(ctx context.Context) error {
	return eng.pool.Start(ctx)
}

// Stop gracefully shuts down the pool. A shutdown timeout is reported but
// is not fatal to the caller's own shutdown sequence.
func (eng *Engine) Stop(ctx context.Context) error {
	err := eng.pool.Stop(ctx)
	if errors.Is(err, courier.ErrShutdownTimeout) {
		eng.logger.Warn("engine stopped with units still running", slog.String("error", err.Error()))
	}
	return err
}

// Config returns the engine configuration.
func (eng *Engine) Config() courier.Config { return eng.config }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Registry returns the job registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Pool returns the worker pool.
func (eng *Engine) Pool() *worker.Pool { return eng.pool }

// Logger returns the engine logger.
func (eng *Engine) Logger() *slog.Logger { return eng.logger }
