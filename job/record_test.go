package job_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/job"
)

func newRecord(maxAttempts int) *job.Record {
	return job.NewRecord(job.New("task_1_1", 1, "test", nil, job.WithMaxAttempts(maxAttempts)))
}

func TestNew_Defaults(t *testing.T) {
	j := job.New("task_1_1", 1, "test", nil)
	if j.MaxAttempts != job.DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", j.MaxAttempts, job.DefaultMaxAttempts)
	}
	if j.Priority != job.PriorityNormal {
		t.Errorf("Priority = %v, want normal", j.Priority)
	}
	if j.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0", j.Timeout)
	}
	if j.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestRecord_CompletePath(t *testing.T) {
	r := newRecord(3)
	if r.State() != job.StatePending {
		t.Fatalf("initial state = %s, want pending", r.State())
	}

	attempt, err := r.Begin(time.Now())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if attempt != 1 {
		t.Errorf("attempt = %d, want 1", attempt)
	}
	if err := r.Complete("ok", time.Now()); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	snap := r.Snapshot()
	if snap.State != job.StateCompleted {
		t.Errorf("State = %s, want completed", snap.State)
	}
	if snap.Result != "ok" {
		t.Errorf("Result = %v, want ok", snap.Result)
	}
	if snap.Error != "" {
		t.Errorf("Error = %q, want empty", snap.Error)
	}
	if snap.StartedAt == nil || snap.CompletedAt == nil {
		t.Error("StartedAt and CompletedAt should be set")
	}
}

func TestRecord_RetryThenFail(t *testing.T) {
	r := newRecord(2)
	boom := errors.New("boom")

	if _, err := r.Begin(time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := r.Retry(boom); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	snap := r.Snapshot()
	if snap.State != job.StateRetrying {
		t.Fatalf("State = %s, want retrying", snap.State)
	}
	if snap.Error != "" {
		t.Errorf("Error should be hidden while retrying, got %q", snap.Error)
	}
	if r.LastError() != "boom" {
		t.Errorf("LastError = %q, want boom", r.LastError())
	}

	if err := r.Requeue(); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	attempt, err := r.Begin(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if attempt != 2 {
		t.Errorf("attempt = %d, want 2", attempt)
	}

	// Budget exhausted: retrying is no longer legal.
	if err := r.Retry(boom); !errors.Is(err, courier.ErrInvalidState) {
		t.Fatalf("Retry after budget: got %v, want ErrInvalidState", err)
	}
	if err := r.Fail(boom, time.Now()); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	snap = r.Snapshot()
	if snap.State != job.StateFailed {
		t.Errorf("State = %s, want failed", snap.State)
	}
	if snap.Attempts != 2 || snap.MaxAttempts != 2 {
		t.Errorf("Attempts = %d/%d, want 2/2", snap.Attempts, snap.MaxAttempts)
	}
	if snap.Error != "boom" {
		t.Errorf("Error = %q, want boom", snap.Error)
	}
}

func TestRecord_IllegalTransitions(t *testing.T) {
	r := newRecord(1)

	if err := r.Complete(nil, time.Now()); !errors.Is(err, courier.ErrInvalidState) {
		t.Errorf("Complete from pending: got %v", err)
	}
	if err := r.Requeue(); !errors.Is(err, courier.ErrInvalidState) {
		t.Errorf("Requeue from pending: got %v", err)
	}
	if _, err := r.Begin(time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Begin(time.Now()); !errors.Is(err, courier.ErrInvalidState) {
		t.Errorf("Begin from running: got %v", err)
	}
	if err := r.Fail(errors.New("x"), time.Now()); err != nil {
		t.Fatal(err)
	}

	// Terminal states accept nothing.
	if _, err := r.Begin(time.Now()); !errors.Is(err, courier.ErrInvalidState) {
		t.Errorf("Begin from failed: got %v", err)
	}
	if r.State() != job.StateFailed {
		t.Errorf("state changed after rejected transition: %s", r.State())
	}
}

func TestRecord_FailBeforeBudget(t *testing.T) {
	r := newRecord(3)
	if _, err := r.Begin(time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := r.Fail(errors.New("x"), time.Now()); !errors.Is(err, courier.ErrInvalidState) {
		t.Fatalf("Fail with attempts left: got %v", err)
	}
}

func TestRecord_RestartOverwritesStartedAt(t *testing.T) {
	r := newRecord(2)
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Minute)

	_, _ = r.Begin(first)
	_ = r.Retry(errors.New("x"))
	_ = r.Requeue()
	_, _ = r.Begin(second)

	if got := r.Snapshot().StartedAt; got == nil || !got.Equal(second) {
		t.Errorf("StartedAt = %v, want %v", got, second)
	}
}

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		s    job.State
		want bool
	}{
		{job.StatePending, false},
		{job.StateRunning, false},
		{job.StateRetrying, false},
		{job.StateCompleted, true},
		{job.StateFailed, true},
	}
	for _, tt := range tests {
		if got := tt.s.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestPriority_Text(t *testing.T) {
	var p job.Priority
	if err := json.Unmarshal([]byte(`"high"`), &p); err != nil {
		t.Fatal(err)
	}
	if p != job.PriorityHigh {
		t.Errorf("got %v, want high", p)
	}
	out, _ := json.Marshal(job.PriorityCritical)
	if string(out) != `"critical"` {
		t.Errorf("marshal = %s", out)
	}
	if _, err := job.ParsePriority("urgent"); err == nil {
		t.Error("expected error for unknown priority")
	}
}

func TestAttemptContext(t *testing.T) {
	ctx := job.WithAttempt(context.Background(), "task_7_1", 2)
	if got := job.AttemptFrom(ctx); got != 2 {
		t.Errorf("AttemptFrom = %d, want 2", got)
	}
	if got := job.IDFrom(ctx); got != "task_7_1" {
		t.Errorf("IDFrom = %q", got)
	}
	if got := job.AttemptFrom(context.Background()); got != 0 {
		t.Errorf("AttemptFrom(empty) = %d, want 0", got)
	}
}
