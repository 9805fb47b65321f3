package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/ext"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
	"github.com/xraph/courier/queue"
)

// Default pool settings.
const (
	DefaultConcurrency     = 4
	DefaultPollInterval    = time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultHistorySize     = 1000
)

// Pool runs a fixed set of worker goroutines over a priority queue. It owns
// every record it is given: the active map holds records that are pending,
// running or retrying, and terminal records move to bounded histories.
type Pool struct {
	queue           *queue.PriorityQueue
	executor        *Executor
	extensions      *ext.Registry
	concurrency     int
	pollInterval    time.Duration
	shutdownTimeout time.Duration
	historySize     int
	workerID        id.WorkerID
	logger          *slog.Logger

	// execCtx is the parent context of every attempt. It is never
	// cancelled by Stop; in-flight units run to completion.
	execCtx context.Context

	// stopCtx is cancelled by Stop to wake idle and sleeping workers.
	stopCtx    context.Context
	cancelStop context.CancelFunc

	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	stopped bool

	activeMu sync.RWMutex
	active   map[string]*job.Record

	completed *history
	failed    *history
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithPollInterval sets how long an idle worker waits on the queue before
// re-checking the stop signal.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithShutdownTimeout bounds how long Stop waits for in-flight units.
func WithShutdownTimeout(d time.Duration) PoolOption {
	return func(p *Pool) { p.shutdownTimeout = d }
}

// WithHistorySize caps the completed and failed histories independently.
func WithHistorySize(n int) PoolOption {
	return func(p *Pool) { p.historySize = n }
}

// NewPool creates a worker pool.
func NewPool(
	executor *Executor,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		queue:           queue.NewPriorityQueue(),
		executor:        executor,
		extensions:      extensions,
		concurrency:     DefaultConcurrency,
		pollInterval:    DefaultPollInterval,
		shutdownTimeout: DefaultShutdownTimeout,
		historySize:     DefaultHistorySize,
		workerID:        id.NewWorkerID(),
		logger:          logger,
		execCtx:         context.Background(),
		active:          make(map[string]*job.Record),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	if p.pollInterval <= 0 {
		p.pollInterval = DefaultPollInterval
	}
	if p.shutdownTimeout <= 0 {
		p.shutdownTimeout = DefaultShutdownTimeout
	}
	if p.historySize < 1 {
		p.historySize = DefaultHistorySize
	}
	p.stopCtx, p.cancelStop = context.WithCancel(context.Background())
	p.completed = newHistory(p.historySize)
	p.failed = newHistory(p.historySize)
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Concurrency returns the number of worker goroutines.
func (p *Pool) Concurrency() int { return p.concurrency }

// Start launches the worker goroutines. It returns immediately and is a
// no-op when the pool is already running. A stopped pool cannot be
// restarted.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	if p.stopped {
		return courier.ErrPoolStopped
	}
	p.running = true
	p.execCtx = context.WithoutCancel(ctx)

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.workerLoop()
	}
	return nil
}

// Stop signals all workers to finish their current unit and exit, then
// waits for them up to the shutdown timeout or the ctx deadline, whichever
// comes first. Queued units are left pending and never run. Stop is
// idempotent; it returns courier.ErrShutdownTimeout if workers are still
// busy when the wait ends.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.stopped = true
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))
	p.cancelStop()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(p.shutdownTimeout)
	defer timer.Stop()

	var err error
	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully",
			slog.Int("abandoned", p.queue.Len()),
		)
	case <-timer.C:
		err = fmt.Errorf("%w after %s", courier.ErrShutdownTimeout, p.shutdownTimeout)
	case <-ctx.Done():
		err = fmt.Errorf("%w: %w", courier.ErrShutdownTimeout, ctx.Err())
	}
	if err != nil {
		p.logger.Warn("worker pool shutdown timed out",
			slog.Int("running", len(p.Running())),
		)
	}

	p.extensions.EmitShutdown(ctx)
	return err
}

// Enqueue hands rec to the pool. It never blocks. The record must be
// pending.
func (p *Pool) Enqueue(ctx context.Context, rec *job.Record) error {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return courier.ErrPoolStopped
	}
	if st := rec.State(); st != job.StatePending {
		return fmt.Errorf("%w: enqueue %s in state %s", courier.ErrInvalidState, rec.ID(), st)
	}

	p.activeMu.Lock()
	p.active[rec.ID()] = rec
	p.activeMu.Unlock()

	p.queue.Push(rec)
	p.extensions.EmitJobEnqueued(ctx, rec.Job())
	return nil
}

// workerLoop is run by each worker goroutine.
func (p *Pool) workerLoop() {
	defer p.wg.Done()

	for {
		if p.stopCtx.Err() != nil {
			return
		}

		rec, ok := p.queue.Pop(p.stopCtx, p.pollInterval)
		if !ok {
			continue
		}

		// Stop raced the pop: leave the unit queued.
		if p.stopCtx.Err() != nil {
			p.queue.Push(rec)
			return
		}

		p.process(rec)
	}
}

// process runs one attempt and routes the record by outcome. It never lets
// a panic escape, so a worker goroutine survives anything a unit does.
func (p *Pool) process(rec *job.Record) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker recovered from panic",
				slog.String("job_id", rec.ID()),
				slog.Any("panic", r),
			)
		}
	}()

	out := p.executor.Execute(p.execCtx, rec)
	switch out.State {
	case job.StateCompleted:
		p.retire(rec, p.completed)
	case job.StateFailed:
		p.retire(rec, p.failed)
	case job.StateRetrying:
		p.backoff(rec, out.Delay)
	default:
		p.discard(rec, out.Err)
	}
}

// discard handles a record whose attempt could not begin. A record that
// is already terminal is filed under its history; anything else is
// dropped from the active map so it stops counting as active.
func (p *Pool) discard(rec *job.Record, cause error) {
	switch rec.State() {
	case job.StateCompleted:
		p.retire(rec, p.completed)
		return
	case job.StateFailed:
		p.retire(rec, p.failed)
		return
	}

	p.logger.Error("dropping job that cannot run",
		slog.String("job_id", rec.ID()),
		slog.String("state", string(rec.State())),
		slog.Any("error", cause),
	)
	p.activeMu.Lock()
	delete(p.active, rec.ID())
	p.activeMu.Unlock()
}

// backoff sleeps on the current worker, then puts rec back in the queue
// with its original priority and sequence. Stop cuts the sleep short; the
// record is re-queued as pending and abandoned with the rest of the queue.
func (p *Pool) backoff(rec *job.Record, delay time.Duration) {
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-p.stopCtx.Done():
			timer.Stop()
		}
	}

	if err := rec.Requeue(); err != nil {
		p.logger.Error("failed to requeue job",
			slog.String("job_id", rec.ID()),
			slog.String("error", err.Error()),
		)
		return
	}
	p.queue.Push(rec)
}

// retire moves a terminal record from the active map to a history. The
// record is added to the history first so Lookup never misses it.
func (p *Pool) retire(rec *job.Record, h *history) {
	if evicted := h.add(rec); evicted != nil {
		p.logger.Debug("job evicted from history", slog.String("job_id", evicted.ID()))
	}
	p.activeMu.Lock()
	delete(p.active, rec.ID())
	p.activeMu.Unlock()
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// Lookup finds a record among active units and both histories. Evicted and
// unknown ids are indistinguishable.
func (p *Pool) Lookup(jobID string) (*job.Record, bool) {
	p.activeMu.RLock()
	rec, ok := p.active[jobID]
	p.activeMu.RUnlock()
	if ok {
		return rec, true
	}
	if rec, ok := p.completed.get(jobID); ok {
		return rec, true
	}
	return p.failed.get(jobID)
}

// Stats is a point-in-time summary of the pool.
type Stats struct {
	Active      int `json:"active"`
	Queued      int `json:"queued"`
	Completed   int `json:"completed"`
	Successful  int `json:"successful"`
	Failed      int `json:"failed"`
	WorkerCount int `json:"worker_count"`

	// SuccessRate is successful / completed as a percentage, zero before
	// any unit finished.
	SuccessRate float64 `json:"success_rate"`
}

// Stats returns counts over the active map, the queue and the histories.
// Completed counts every terminal record still in history.
func (p *Pool) Stats() Stats {
	p.activeMu.RLock()
	active := len(p.active)
	p.activeMu.RUnlock()

	successful := p.completed.len()
	failed := p.failed.len()
	st := Stats{
		Active:      active,
		Queued:      p.queue.Len(),
		Completed:   successful + failed,
		Successful:  successful,
		Failed:      failed,
		WorkerCount: p.concurrency,
	}
	if st.Completed > 0 {
		st.SuccessRate = float64(successful) / float64(st.Completed) * 100
	}
	return st
}

// QueueDepth returns the number of units waiting for a worker.
func (p *Pool) QueueDepth() int { return p.queue.Len() }

// Pending returns snapshots of queued and retrying units in submission
// order.
func (p *Pool) Pending() []job.Snapshot {
	return p.activeIn(job.StatePending, job.StateRetrying)
}

// Running returns snapshots of units currently executing.
func (p *Pool) Running() []job.Snapshot {
	return p.activeIn(job.StateRunning)
}

// Completed returns snapshots of the completed history, oldest first.
func (p *Pool) Completed() []job.Snapshot { return snapshots(p.completed.list()) }

// Failed returns snapshots of the failed history, oldest first.
func (p *Pool) Failed() []job.Snapshot { return snapshots(p.failed.list()) }

func (p *Pool) activeIn(states ...job.State) []job.Snapshot {
	p.activeMu.RLock()
	recs := make([]*job.Record, 0, len(p.active))
	for _, rec := range p.active {
		recs = append(recs, rec)
	}
	p.activeMu.RUnlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].Job().Seq < recs[j].Job().Seq })

	out := make([]job.Snapshot, 0, len(recs))
	for _, rec := range recs {
		s := rec.Snapshot()
		for _, st := range states {
			if s.State == st {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func snapshots(recs []*job.Record) []job.Snapshot {
	out := make([]job.Snapshot, len(recs))
	for i, rec := range recs {
		out[i] = rec.Snapshot()
	}
	return out
}
