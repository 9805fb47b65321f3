package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/courier"
	"github.com/xraph/courier/job"
)

// SubmitFunc is the callback the scheduler uses to submit jobs.
// engine.Engine.SubmitRaw satisfies it.
type SubmitFunc func(ctx context.Context, name string, payload []byte, opts ...job.Option) (string, error)

// Emitter emits schedule lifecycle events.
// ext.Registry satisfies this interface via EmitScheduleFired.
type Emitter interface {
	EmitScheduleFired(ctx context.Context, scheduleName, jobID string)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the time zone expressions are evaluated in. The
// default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.location = loc }
}

// WithEmitter sets the receiver of ScheduleFired events.
func WithEmitter(e Emitter) Option {
	return func(s *Scheduler) { s.emitter = e }
}

// WithKnownKinds makes Set reject entries whose job kind known does not
// recognise.
func WithKnownKinds(known func(name string) bool) Option {
	return func(s *Scheduler) { s.known = known }
}

// slot is the scheduler's view of one entry.
type slot struct {
	entry    Entry
	schedule cronlib.Schedule
	opts     []job.Option
	cronID   cronlib.EntryID // zero while paused
}

// Scheduler submits jobs on cron schedules. Entries live in memory and
// are lost on restart.
type Scheduler struct {
	cron     *cronlib.Cron
	submit   SubmitFunc
	emitter  Emitter
	known    func(string) bool
	location *time.Location
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*slot
	ctx     context.Context
}

// NewScheduler creates a Scheduler. Entries do not fire until Start.
func NewScheduler(submit SubmitFunc, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		submit:   submit,
		location: time.UTC,
		logger:   logger,
		entries:  make(map[string]*slot),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	cl := cronLogger{logger}
	s.cron = cronlib.New(
		cronlib.WithParser(parser),
		cronlib.WithLocation(s.location),
		cronlib.WithLogger(cl),
		cronlib.WithChain(cronlib.Recover(cl)),
	)
	return s
}

// Set adds e, or replaces the entry with the same name. A replaced entry
// keeps its run history.
func (s *Scheduler) Set(e Entry) (Entry, error) {
	sl, err := s.prepare(e)
	if err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[e.Name]; ok {
		s.unschedule(old)
		sl.entry.Runs = old.entry.Runs
		sl.entry.LastRunAt = old.entry.LastRunAt
		sl.entry.LastJobID = old.entry.LastJobID
		sl.entry.LastError = old.entry.LastError
	}
	s.entries[e.Name] = sl
	if !sl.entry.Paused {
		s.schedule(sl)
	}

	s.logger.Info("schedule saved",
		slog.String("schedule", e.Name),
		slog.String("expr", e.Schedule),
		slog.String("job_name", e.JobName),
		slog.Bool("paused", e.Paused),
	)
	return s.view(sl), nil
}

func (s *Scheduler) prepare(e Entry) (*slot, error) {
	switch {
	case e.Name == "":
		return nil, fmt.Errorf("%w: name is required", courier.ErrInvalidSchedule)
	case e.JobName == "":
		return nil, fmt.Errorf("%w: job name is required", courier.ErrInvalidSchedule)
	case len(e.Payload) > 0 && !json.Valid(e.Payload):
		return nil, fmt.Errorf("%w: payload of %q is not valid JSON", courier.ErrInvalidSchedule, e.Name)
	case e.MaxAttempts < 0:
		return nil, fmt.Errorf("%w: max attempts must not be negative", courier.ErrInvalidSchedule)
	}
	if s.known != nil && !s.known(e.JobName) {
		return nil, fmt.Errorf("%w: %s", courier.ErrUnknownJobKind, e.JobName)
	}
	sched, err := ParseSchedule(e.Schedule)
	if err != nil {
		return nil, err
	}
	var opts []job.Option
	if e.Priority != "" {
		prio, err := job.ParsePriority(e.Priority)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", courier.ErrInvalidSchedule, err)
		}
		opts = append(opts, job.WithPriority(prio))
	}
	if e.MaxAttempts > 0 {
		opts = append(opts, job.WithMaxAttempts(e.MaxAttempts))
	}

	e.Payload = append(json.RawMessage(nil), e.Payload...)
	e.Runs, e.LastRunAt, e.LastJobID, e.LastError, e.NextRunAt = 0, nil, "", "", nil
	return &slot{entry: e, schedule: sched, opts: opts}, nil
}

// schedule and unschedule must be called with mu held.
func (s *Scheduler) schedule(sl *slot) {
	name := sl.entry.Name
	sl.cronID = s.cron.Schedule(sl.schedule, cronlib.FuncJob(func() {
		s.fire(name)
	}))
}

func (s *Scheduler) unschedule(sl *slot) {
	if sl.cronID != 0 {
		s.cron.Remove(sl.cronID)
		sl.cronID = 0
	}
}

// Pause stops or resumes an entry without losing it.
func (s *Scheduler) Pause(name string, paused bool) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", courier.ErrScheduleNotFound, name)
	}
	if sl.entry.Paused != paused {
		sl.entry.Paused = paused
		if paused {
			s.unschedule(sl)
		} else {
			s.schedule(sl)
		}
		s.logger.Info("schedule paused", slog.String("schedule", name), slog.Bool("paused", paused))
	}
	return s.view(sl), nil
}

// Remove deletes an entry.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", courier.ErrScheduleNotFound, name)
	}
	s.unschedule(sl)
	delete(s.entries, name)
	s.logger.Info("schedule removed", slog.String("schedule", name))
	return nil
}

// Clear deletes every entry.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.entries {
		s.unschedule(sl)
	}
	n := len(s.entries)
	s.entries = make(map[string]*slot)
	s.logger.Info("schedules cleared", slog.Int("count", n))
}

// Get returns one entry.
func (s *Scheduler) Get(name string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", courier.ErrScheduleNotFound, name)
	}
	return s.view(sl), nil
}

// Entries returns every entry ordered by name, with its next run time.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, sl := range s.entries {
		out = append(out, s.view(sl))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// view must be called with mu held. Before Start the cron library has no
// next time yet, so it is computed from the schedule.
func (s *Scheduler) view(sl *slot) Entry {
	e := sl.entry
	e.Payload = append(json.RawMessage(nil), sl.entry.Payload...)
	if sl.cronID == 0 {
		return e
	}
	next := s.cron.Entry(sl.cronID).Next
	if next.IsZero() {
		next = sl.schedule.Next(time.Now().In(s.location))
	}
	next = next.UTC()
	e.NextRunAt = &next
	return e
}

// RunNow submits the entry's job immediately, paused or not, and records
// the run like a scheduled one.
func (s *Scheduler) RunNow(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	_, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", courier.ErrScheduleNotFound, name)
	}
	return s.run(ctx, name, true)
}

// fire runs a scheduled tick. Submit errors are recorded on the entry.
func (s *Scheduler) fire(name string) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	_, _ = s.run(ctx, name, false)
}

func (s *Scheduler) run(ctx context.Context, name string, manual bool) (string, error) {
	s.mu.Lock()
	sl, ok := s.entries[name]
	if !ok || (sl.entry.Paused && !manual) {
		s.mu.Unlock()
		return "", nil
	}
	jobName, payload, opts := sl.entry.JobName, sl.entry.Payload, sl.opts
	s.mu.Unlock()

	jobID, err := s.submit(ctx, jobName, payload, opts...)
	now := time.Now().UTC()

	s.mu.Lock()
	sl.entry.Runs++
	sl.entry.LastRunAt = &now
	sl.entry.LastJobID = jobID
	sl.entry.LastError = ""
	if err != nil {
		sl.entry.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("schedule submit failed",
			slog.String("schedule", name),
			slog.String("job_name", jobName),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("cron: submit %q: %w", name, err)
	}

	if s.emitter != nil {
		s.emitter.EmitScheduleFired(ctx, name, jobID)
	}
	s.logger.Info("schedule fired",
		slog.String("schedule", name),
		slog.String("job_name", jobName),
		slog.String("job_id", jobID),
		slog.Bool("manual", manual),
	)
	return jobID, nil
}

// Start begins firing entries. Jobs are submitted with a context derived
// from ctx that is never cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = context.WithoutCancel(ctx)
	n := len(s.entries)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("entries", n),
		slog.String("location", s.location.String()),
	)
	return nil
}

// Stop stops firing and waits for submissions in flight, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("cron scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: cron scheduler: %w", courier.ErrShutdownTimeout, ctx.Err())
	}
}

// cronLogger adapts slog to the cron library's logger. Its chatty Info
// output goes to debug.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
