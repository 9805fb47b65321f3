package cron_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/cron"
	"github.com/xraph/courier/job"
)

// ──────────────────────────────────────────────────
// Test doubles
// ──────────────────────────────────────────────────

type submission struct {
	name    string
	payload string
	opts    job.Options
}

// submitter records submissions and hands out sequential job ids.
type submitter struct {
	mu    sync.Mutex
	calls []submission
	err   error
}

func (f *submitter) submit(_ context.Context, name string, payload []byte, opts ...job.Option) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	o := job.DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	f.calls = append(f.calls, submission{name: name, payload: string(payload), opts: o})
	return fmt.Sprintf("task_%d_1700000000", len(f.calls)), nil
}

func (f *submitter) submitted(name string) []submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []submission
	for _, c := range f.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

type firedLog struct {
	mu    sync.Mutex
	fired []string
}

func (e *firedLog) EmitScheduleFired(_ context.Context, name, jobID string) {
	e.mu.Lock()
	e.fired = append(e.fired, name+"="+jobID)
	e.mu.Unlock()
}

func (e *firedLog) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.fired...)
}

func newScheduler(t *testing.T, f *submitter, opts ...cron.Option) *cron.Scheduler {
	t.Helper()
	s := cron.NewScheduler(f.submit, slog.Default(), opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func mustSet(t *testing.T, s *cron.Scheduler, e cron.Entry) cron.Entry {
	t.Helper()
	out, err := s.Set(e)
	if err != nil {
		t.Fatalf("Set(%s): %v", e.Name, err)
	}
	return out
}

// ──────────────────────────────────────────────────
// Expressions
// ──────────────────────────────────────────────────

func TestExpressions(t *testing.T) {
	daily, err := cron.Daily("02:00")
	if err != nil {
		t.Fatal(err)
	}
	weekly, err := cron.Weekly(time.Monday, "09:30")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		expr string
		want string
	}{
		{"daily", daily, "0 2 * * *"},
		{"weekly", weekly, "30 9 * * 1"},
		{"hourly", cron.Hourly(), "@hourly"},
		{"every", cron.Every(15 * time.Minute), "@every 15m0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.expr != tt.want {
				t.Errorf("expr = %q, want %q", tt.expr, tt.want)
			}
			if _, err := cron.ParseSchedule(tt.expr); err != nil {
				t.Errorf("ParseSchedule(%q): %v", tt.expr, err)
			}
		})
	}

	for _, bad := range []string{"25:00", "2am", ""} {
		if _, err := cron.Daily(bad); !errors.Is(err, courier.ErrInvalidSchedule) {
			t.Errorf("Daily(%q) err = %v, want ErrInvalidSchedule", bad, err)
		}
	}
	if _, err := cron.Weekly(time.Weekday(9), "10:00"); !errors.Is(err, courier.ErrInvalidSchedule) {
		t.Errorf("Weekly(9) err = %v, want ErrInvalidSchedule", err)
	}
}

// ──────────────────────────────────────────────────
// Entries
// ──────────────────────────────────────────────────

func TestScheduler_SetValidates(t *testing.T) {
	s := newScheduler(t, &submitter{}, cron.WithKnownKinds(func(name string) bool {
		return name == "backup"
	}))

	tests := []struct {
		name  string
		entry cron.Entry
		want  error
	}{
		{"no name", cron.Entry{Schedule: "@hourly", JobName: "backup"}, courier.ErrInvalidSchedule},
		{"no job", cron.Entry{Name: "a", Schedule: "@hourly"}, courier.ErrInvalidSchedule},
		{"bad expr", cron.Entry{Name: "a", Schedule: "every tuesday", JobName: "backup"}, courier.ErrInvalidSchedule},
		{"bad payload", cron.Entry{Name: "a", Schedule: "@hourly", JobName: "backup", Payload: json.RawMessage("{")}, courier.ErrInvalidSchedule},
		{"bad priority", cron.Entry{Name: "a", Schedule: "@hourly", JobName: "backup", Priority: "urgent"}, courier.ErrInvalidSchedule},
		{"unknown kind", cron.Entry{Name: "a", Schedule: "@hourly", JobName: "reindex"}, courier.ErrUnknownJobKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Set(tt.entry); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if got := len(s.Entries()); got != 0 {
		t.Errorf("rejected entries stored: %d", got)
	}
}

func TestScheduler_NextRunBeforeStart(t *testing.T) {
	s := newScheduler(t, &submitter{})
	mustSet(t, s, cron.Entry{Name: "daily-backup", Schedule: "0 2 * * *", JobName: "backup"})
	mustSet(t, s, cron.Entry{Name: "cleanup", Schedule: "0 3 * * *", JobName: "cleanup", Paused: true})

	entries := s.Entries()
	if len(entries) != 2 || entries[0].Name != "cleanup" || entries[1].Name != "daily-backup" {
		t.Fatalf("entries = %+v, want cleanup then daily-backup", entries)
	}
	if entries[0].NextRunAt != nil {
		t.Errorf("paused entry has next run %v", entries[0].NextRunAt)
	}

	next := entries[1].NextRunAt
	if next == nil {
		t.Fatal("active entry has no next run")
	}
	if next.Hour() != 2 || next.Minute() != 0 || !next.After(time.Now()) {
		t.Errorf("next run = %v, want a future 02:00 UTC", next)
	}
}

func TestScheduler_SetReplacesAndKeepsHistory(t *testing.T) {
	f := &submitter{}
	s := newScheduler(t, f)
	mustSet(t, s, cron.Entry{Name: "report", Schedule: "@daily", JobName: "report"})

	if _, err := s.RunNow(context.Background(), "report"); err != nil {
		t.Fatal(err)
	}
	e := mustSet(t, s, cron.Entry{Name: "report", Schedule: "@weekly", JobName: "report-v2"})
	if e.Schedule != "@weekly" || e.JobName != "report-v2" || e.Runs != 1 || e.LastJobID == "" {
		t.Errorf("replaced entry = %+v", e)
	}

	if err := s.Remove("report"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get("report"); !errors.Is(err, courier.ErrScheduleNotFound) {
		t.Errorf("Get after Remove err = %v", err)
	}
	if err := s.Remove("report"); !errors.Is(err, courier.ErrScheduleNotFound) {
		t.Errorf("second Remove err = %v", err)
	}

	mustSet(t, s, cron.Entry{Name: "a", Schedule: "@hourly", JobName: "x"})
	mustSet(t, s, cron.Entry{Name: "b", Schedule: "@hourly", JobName: "x"})
	s.Clear()
	if got := len(s.Entries()); got != 0 {
		t.Errorf("entries after Clear = %d", got)
	}
}

// ──────────────────────────────────────────────────
// Firing
// ──────────────────────────────────────────────────

func TestScheduler_RunNow(t *testing.T) {
	f := &submitter{}
	emitted := &firedLog{}
	s := newScheduler(t, f, cron.WithEmitter(emitted))
	mustSet(t, s, cron.Entry{
		Name:        "health",
		Schedule:    "*/15 * * * *",
		JobName:     "health-check",
		Payload:     json.RawMessage(`{"deep":true}`),
		Priority:    "high",
		MaxAttempts: 7,
		Paused:      true,
	})

	jobID, err := s.RunNow(context.Background(), "health")
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	calls := f.submitted("health-check")
	if len(calls) != 1 {
		t.Fatalf("submissions = %d, want 1", len(calls))
	}
	c := calls[0]
	if c.payload != `{"deep":true}` || c.opts.Priority != job.PriorityHigh || c.opts.MaxAttempts != 7 {
		t.Errorf("submission = %+v", c)
	}

	e, _ := s.Get("health")
	if e.Runs != 1 || e.LastJobID != jobID || e.LastRunAt == nil || e.LastError != "" {
		t.Errorf("entry after run = %+v", e)
	}
	if got := emitted.list(); len(got) != 1 || got[0] != "health="+jobID {
		t.Errorf("emitted = %v", got)
	}

	if _, err := s.RunNow(context.Background(), "missing"); !errors.Is(err, courier.ErrScheduleNotFound) {
		t.Errorf("RunNow(missing) err = %v", err)
	}
}

func TestScheduler_SubmitFailureRecorded(t *testing.T) {
	f := &submitter{err: courier.ErrPoolStopped}
	emitted := &firedLog{}
	s := newScheduler(t, f, cron.WithEmitter(emitted))
	mustSet(t, s, cron.Entry{Name: "sync", Schedule: "@hourly", JobName: "sync"})

	if _, err := s.RunNow(context.Background(), "sync"); !errors.Is(err, courier.ErrPoolStopped) {
		t.Fatalf("RunNow err = %v, want ErrPoolStopped", err)
	}
	e, _ := s.Get("sync")
	if e.Runs != 1 || e.LastError == "" || e.LastJobID != "" {
		t.Errorf("entry after failed run = %+v", e)
	}
	if got := emitted.list(); len(got) != 0 {
		t.Errorf("failed run emitted %v", got)
	}
}

func TestScheduler_FiresOnSchedule(t *testing.T) {
	f := &submitter{}
	s := newScheduler(t, f)
	mustSet(t, s, cron.Entry{Name: "tick", Schedule: cron.Every(time.Second), JobName: "tick"})
	mustSet(t, s, cron.Entry{Name: "held", Schedule: cron.Every(time.Second), JobName: "held", Paused: true})

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	var e cron.Entry
	deadline := time.Now().Add(5 * time.Second)
	for e, _ = s.Get("tick"); e.Runs < 2; e, _ = s.Get("tick") {
		if time.Now().After(deadline) {
			t.Fatalf("tick ran %d times, want 2", e.Runs)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if got := len(f.submitted("tick")); got < 2 {
		t.Errorf("tick submissions = %d", got)
	}
	if got := len(f.submitted("held")); got != 0 {
		t.Errorf("paused entry fired %d times", got)
	}
	if e.NextRunAt == nil || e.LastRunAt == nil || !e.NextRunAt.After(*e.LastRunAt) {
		t.Errorf("entry = %+v", e)
	}

	if _, err := s.Pause("held", false); err != nil {
		t.Fatal(err)
	}
	e, _ = s.Get("held")
	if e.Paused || e.NextRunAt == nil {
		t.Errorf("resumed entry = %+v", e)
	}
}

func TestScheduler_RegisterDefinition(t *testing.T) {
	type backupInput struct {
		Target string `json:"target"`
	}
	f := &submitter{}
	s := newScheduler(t, f)

	e, err := cron.Register(s, cron.Definition[backupInput]{
		Name:     "daily-backup",
		Schedule: "0 2 * * *",
		JobName:  "backup",
		Payload:  backupInput{Target: "s3"},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if string(e.Payload) != `{"target":"s3"}` {
		t.Errorf("payload = %s", e.Payload)
	}
	if _, err := s.RunNow(context.Background(), "daily-backup"); err != nil {
		t.Fatal(err)
	}
	if calls := f.submitted("backup"); len(calls) != 1 || calls[0].opts.Priority != job.PriorityNormal {
		t.Errorf("submissions = %+v", calls)
	}
}
