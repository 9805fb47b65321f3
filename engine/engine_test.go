package engine_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/courier"
	"github.com/xraph/courier/backoff"
	"github.com/xraph/courier/engine"
	"github.com/xraph/courier/job"
)

// ──────────────────────────────────────────────────
// Test payloads and helpers
// ──────────────────────────────────────────────────

type emailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
}

type emailReceipt struct {
	MessageID string `json:"message_id"`
}

func testConfig() courier.Config {
	cfg := courier.DefaultConfig()
	cfg.Workers = 2
	cfg.PollInterval = 20 * time.Millisecond
	cfg.WaitPollInterval = 10 * time.Millisecond
	return cfg
}

func newEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	opts = append([]engine.Option{
		engine.WithConfig(testConfig()),
		engine.WithBackoff(backoff.NewConstant(5 * time.Millisecond)),
	}, opts...)
	eng, err := engine.New(opts...)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = eng.Stop(ctx)
	})
	return eng
}

func waitTerminal(t *testing.T, eng *engine.Engine, jobID string) *job.Snapshot {
	t.Helper()
	snap, err := eng.Wait(context.Background(), jobID, 5*time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if snap == nil {
		t.Fatalf("timed out waiting for %s", jobID)
	}
	return snap
}

// lifecycleTracker records which hooks fired.
type lifecycleTracker struct {
	enqueued  atomic.Int32
	started   atomic.Int32
	completed atomic.Int32
	retrying  atomic.Int32
	failed    atomic.Int32
	shutdown  atomic.Bool
}

func (l *lifecycleTracker) Name() string { return "tracker" }

func (l *lifecycleTracker) OnJobEnqueued(_ context.Context, _ *job.Job) error {
	l.enqueued.Add(1)
	return nil
}

func (l *lifecycleTracker) OnJobStarted(_ context.Context, _ *job.Job, _ int) error {
	l.started.Add(1)
	return nil
}

func (l *lifecycleTracker) OnJobCompleted(_ context.Context, _ *job.Job, _ time.Duration) error {
	l.completed.Add(1)
	return nil
}

func (l *lifecycleTracker) OnJobRetrying(_ context.Context, _ *job.Job, _ int, _ time.Duration) error {
	l.retrying.Add(1)
	return nil
}

func (l *lifecycleTracker) OnJobFailed(_ context.Context, _ *job.Job, _ error) error {
	l.failed.Add(1)
	return nil
}

func (l *lifecycleTracker) OnShutdown(_ context.Context) error {
	l.shutdown.Store(true)
	return nil
}

// ──────────────────────────────────────────────────
// End-to-end: Register → Submit → Process → Result
// ──────────────────────────────────────────────────

func TestEngine_EndToEnd_RegisterSubmitProcess(t *testing.T) {
	eng := newEngine(t)

	var got emailPayload
	engine.Register(eng, job.NewDefinition("send-email", func(_ context.Context, p emailPayload) (emailReceipt, error) {
		got = p
		return emailReceipt{MessageID: "msg-1"}, nil
	}))

	jobID, err := engine.Submit(context.Background(), eng, "send-email", emailPayload{
		To:      "alice@example.com",
		Subject: "Hello from courier",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var n, unix int64
	if _, err := fmt.Sscanf(jobID, "task_%d_%d", &n, &unix); err != nil || n != 1 {
		t.Errorf("job id %q does not look like task_1_<unix>", jobID)
	}

	if st, _ := eng.Status(jobID); st != job.StatePending {
		t.Errorf("Status before start = %q, want pending", st)
	}
	if _, err := eng.Result(jobID); !errors.Is(err, courier.ErrNotReady) {
		t.Errorf("Result before start: got %v, want ErrNotReady", err)
	}

	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap := waitTerminal(t, eng, jobID)
	if snap.State != job.StateCompleted {
		t.Fatalf("State = %s, want completed", snap.State)
	}
	if got.To != "alice@example.com" {
		t.Errorf("payload.To = %q", got.To)
	}

	receipt, err := engine.ResultAs[emailReceipt](eng, jobID)
	if err != nil {
		t.Fatalf("ResultAs: %v", err)
	}
	if receipt.MessageID != "msg-1" {
		t.Errorf("MessageID = %q, want msg-1", receipt.MessageID)
	}
	if _, err := engine.ResultAs[int](eng, jobID); err == nil {
		t.Error("expected type mismatch error from ResultAs[int]")
	}
}

func TestEngine_SubmitUnknownKind(t *testing.T) {
	eng := newEngine(t)
	_, err := engine.Submit(context.Background(), eng, "never-registered", struct{}{})
	if !errors.Is(err, courier.ErrUnknownJobKind) {
		t.Fatalf("got %v, want ErrUnknownJobKind", err)
	}
}

func TestEngine_UnknownID(t *testing.T) {
	eng := newEngine(t)

	if _, err := eng.Status("task_999_0"); !errors.Is(err, courier.ErrJobNotFound) {
		t.Errorf("Status: got %v", err)
	}
	if _, err := eng.Result("task_999_0"); !errors.Is(err, courier.ErrJobNotFound) {
		t.Errorf("Result: got %v", err)
	}
	if _, err := eng.Wait(context.Background(), "task_999_0", time.Second); !errors.Is(err, courier.ErrJobNotFound) {
		t.Errorf("Wait: got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Retry scenarios
// ──────────────────────────────────────────────────

func TestEngine_RetryThenSucceed(t *testing.T) {
	tracker := &lifecycleTracker{}
	eng := newEngine(t, engine.WithExtension(tracker))

	var calls atomic.Int32
	engine.Register(eng, job.NewDefinition("flaky", func(_ context.Context, _ struct{}) (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("not yet")
		}
		return "done", nil
	}))

	jobID, err := engine.Submit(context.Background(), eng, "flaky", struct{}{}, job.WithMaxAttempts(3))
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := waitTerminal(t, eng, jobID)
	if snap.State != job.StateCompleted {
		t.Fatalf("State = %s, want completed", snap.State)
	}
	if snap.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", snap.Attempts)
	}
	if got := tracker.retrying.Load(); got != 2 {
		t.Errorf("OnJobRetrying fired %d times, want 2", got)
	}
}

func TestEngine_AlwaysFails(t *testing.T) {
	tracker := &lifecycleTracker{}
	eng := newEngine(t, engine.WithExtension(tracker))

	engine.Register(eng, job.NewDefinition("doomed", func(_ context.Context, _ struct{}) (int, error) {
		return 0, errors.New("permanent failure")
	}))

	jobID, err := engine.Submit(context.Background(), eng, "doomed", struct{}{}, job.WithMaxAttempts(2))
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := waitTerminal(t, eng, jobID)
	if snap.State != job.StateFailed {
		t.Fatalf("State = %s, want failed", snap.State)
	}
	if snap.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", snap.Attempts)
	}
	if snap.Error != "permanent failure" {
		t.Errorf("Error = %q", snap.Error)
	}

	_, err = eng.Result(jobID)
	var failed *courier.JobFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("Result error = %v, want *JobFailedError", err)
	}
	if failed.Message != "permanent failure" || failed.Attempts != 2 {
		t.Errorf("JobFailedError = %+v", failed)
	}
	if !errors.Is(err, courier.ErrRetryExhausted) {
		t.Error("expected ErrRetryExhausted class")
	}
	if got := tracker.failed.Load(); got != 1 {
		t.Errorf("OnJobFailed fired %d times, want 1", got)
	}
}

func TestEngine_DefinitionOptionsApply(t *testing.T) {
	eng := newEngine(t)
	engine.Register(eng, job.NewDefinition("important",
		func(_ context.Context, _ struct{}) (int, error) { return 0, nil },
		job.WithPriority(job.PriorityCritical),
	))

	jobID, err := engine.Submit(context.Background(), eng, "important", struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	snap, _ := eng.Record(jobID)
	if snap.Priority != job.PriorityCritical {
		t.Errorf("Priority = %v, want critical", snap.Priority)
	}
	if snap.MaxAttempts != courier.DefaultConfig().MaxAttempts {
		t.Errorf("MaxAttempts = %d, want engine default", snap.MaxAttempts)
	}

	// Per-call options win over the definition.
	jobID, _ = engine.Submit(context.Background(), eng, "important", struct{}{}, job.WithPriority(job.PriorityLow))
	snap, _ = eng.Record(jobID)
	if snap.Priority != job.PriorityLow {
		t.Errorf("Priority = %v, want low", snap.Priority)
	}
}

// ──────────────────────────────────────────────────
// Wait semantics
// ──────────────────────────────────────────────────

func TestEngine_WaitTimeoutLeavesJobRunning(t *testing.T) {
	eng := newEngine(t)

	release := make(chan struct{})
	engine.Register(eng, job.NewDefinition("slow", func(_ context.Context, _ struct{}) (int, error) {
		<-release
		return 1, nil
	}))

	jobID, _ := engine.Submit(context.Background(), eng, "slow", struct{}{})
	if err := eng.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap, err := eng.Wait(context.Background(), jobID, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil snapshot on timeout, got %+v", snap)
	}

	close(release)
	final := waitTerminal(t, eng, jobID)
	if final.State != job.StateCompleted {
		t.Errorf("State = %s, want completed", final.State)
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestEngine_ExtensionLifecycleEvents(t *testing.T) {
	tracker := &lifecycleTracker{}
	eng := newEngine(t, engine.WithExtension(tracker))

	engine.Register(eng, job.NewDefinition("tracked-job", func(_ context.Context, _ struct{}) (int, error) {
		return 0, nil
	}))

	jobID, err := engine.Submit(context.Background(), eng, "tracked-job", struct{}{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if tracker.enqueued.Load() != 1 {
		t.Error("expected OnJobEnqueued to fire on submit")
	}

	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitTerminal(t, eng, jobID)

	if tracker.started.Load() != 1 {
		t.Error("expected OnJobStarted to fire")
	}
	if tracker.completed.Load() != 1 {
		t.Error("expected OnJobCompleted to fire")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := eng.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !tracker.shutdown.Load() {
		t.Error("expected OnShutdown to fire on stop")
	}
}

func TestEngine_Stats(t *testing.T) {
	eng := newEngine(t)
	engine.Register(eng, job.NewDefinition("ok", func(_ context.Context, _ struct{}) (int, error) { return 0, nil }))
	engine.Register(eng, job.NewDefinition("bad", func(_ context.Context, _ struct{}) (int, error) {
		return 0, errors.New("bad")
	}))

	ok1, _ := engine.Submit(context.Background(), eng, "ok", struct{}{})
	ok2, _ := engine.Submit(context.Background(), eng, "ok", struct{}{})
	bad, _ := engine.Submit(context.Background(), eng, "bad", struct{}{}, job.WithMaxAttempts(1))

	if st := eng.Stats(); st.Active != 3 || st.Queued != 3 {
		t.Errorf("Stats before start = %+v, want 3 active and queued", st)
	}
	if got := len(eng.Pending()); got != 3 {
		t.Errorf("Pending() = %d, want 3", got)
	}

	if err := eng.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{ok1, ok2, bad} {
		waitTerminal(t, eng, id)
	}

	st := eng.Stats()
	if st.Successful != 2 || st.Failed != 1 || st.Completed != 3 {
		t.Errorf("Stats = %+v, want 2 successful, 1 failed, 3 completed", st)
	}
	if st.WorkerCount != testConfig().Workers {
		t.Errorf("WorkerCount = %d", st.WorkerCount)
	}
	if st.Active != 0 || st.Queued != 0 {
		t.Errorf("Stats = %+v, want nothing active", st)
	}
	if want := 200.0 / 3; st.SuccessRate < want-0.01 || st.SuccessRate > want+0.01 {
		t.Errorf("SuccessRate = %v, want %.2f", st.SuccessRate, want)
	}
}

func TestEngine_IsolatedInstances(t *testing.T) {
	a := newEngine(t)
	b := newEngine(t)
	engine.Register(a, job.NewDefinition("only-a", func(_ context.Context, _ struct{}) (int, error) { return 0, nil }))

	idA, err := engine.Submit(context.Background(), a, "only-a", struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Submit(context.Background(), b, "only-a", struct{}{}); !errors.Is(err, courier.ErrUnknownJobKind) {
		t.Errorf("engine b should not know kinds registered on a, got %v", err)
	}
	if _, err := b.Status(idA); !errors.Is(err, courier.ErrJobNotFound) {
		t.Errorf("engine b should not see jobs of a, got %v", err)
	}
}

func TestEngine_WithMeterProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	eng := newEngine(t, engine.WithMeterProvider(mp), engine.WithLogger(slog.Default()))

	engine.Register(eng, job.NewDefinition("metered", func(_ context.Context, _ struct{}) (int, error) { return 0, nil }))
	jobID, _ := engine.Submit(context.Background(), eng, "metered", struct{}{})
	if err := eng.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitTerminal(t, eng, jobID)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := map[string]bool{"courier.job.executions": false, "courier.job.completed": false}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if _, ok := want[m.Name]; ok {
				want[m.Name] = true
			}
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("metric %s not recorded on the injected provider", name)
		}
	}
}

func TestEngine_InvalidConfig(t *testing.T) {
	cfg := courier.DefaultConfig()
	cfg.Workers = 0
	if _, err := engine.New(engine.WithConfig(cfg)); err == nil {
		t.Fatal("expected error for zero workers")
	}
}

func TestEngine_RejectsZeroWaitPollInterval(t *testing.T) {
	cfg := courier.Config{
		Workers:      1,
		MaxAttempts:  3,
		HistorySize:  10,
		PollInterval: 10 * time.Millisecond,
		Webhook:      courier.WebhookConfig{Workers: 1, MaxAttempts: 5},
	}
	if _, err := engine.New(engine.WithConfig(cfg)); err == nil {
		t.Fatal("expected error for config without wait poll interval")
	}
}
