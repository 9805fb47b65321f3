package job_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"

	"github.com/xraph/courier/job"
)

type emailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
}

type emailReceipt struct {
	MessageID string `json:"message_id"`
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := job.NewRegistry()

	var got emailPayload
	def := job.NewDefinition("send-email", func(_ context.Context, p emailPayload) (emailReceipt, error) {
		got = p
		return emailReceipt{MessageID: "m-1"}, nil
	})

	job.RegisterDefinition(r, def)

	h, ok := r.Get("send-email")
	if !ok {
		t.Fatal("expected handler to be registered")
	}

	payload, _ := json.Marshal(emailPayload{To: "alice@example.com", Subject: "Hello"})
	res, err := h(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.To != "alice@example.com" {
		t.Errorf("To = %q, want %q", got.To, "alice@example.com")
	}
	if got.Subject != "Hello" {
		t.Errorf("Subject = %q, want %q", got.Subject, "Hello")
	}
	receipt, ok := res.(emailReceipt)
	if !ok || receipt.MessageID != "m-1" {
		t.Errorf("result = %#v, want emailReceipt{m-1}", res)
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := job.NewRegistry()
	_, ok := r.Get("nonexistent")
	if ok {
		t.Fatal("expected no handler for unregistered job")
	}
}

func TestRegistry_Names(t *testing.T) {
	r := job.NewRegistry()

	noop := func(_ context.Context, _ struct{}) (struct{}, error) { return struct{}{}, nil }
	job.RegisterDefinition(r, job.NewDefinition("job-a", noop))
	job.RegisterDefinition(r, job.NewDefinition("job-b", noop))
	job.RegisterDefinition(r, job.NewDefinition("job-c", noop))

	names := r.Names()
	sort.Strings(names)
	if len(names) != 3 {
		t.Fatalf("expected 3 names, got %d", len(names))
	}
	expected := []string{"job-a", "job-b", "job-c"}
	for i, want := range expected {
		if names[i] != want {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want)
		}
	}
}

func TestRegistry_InvalidJSON(t *testing.T) {
	r := job.NewRegistry()
	job.RegisterDefinition(r, job.NewDefinition("typed-job", func(_ context.Context, _ emailPayload) (int, error) {
		t.Fatal("handler should not be called with invalid JSON")
		return 0, nil
	}))

	h, _ := r.Get("typed-job")
	if _, err := h(context.Background(), []byte(`{invalid json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestRegistry_EmptyPayload(t *testing.T) {
	r := job.NewRegistry()
	called := false
	job.RegisterDefinition(r, job.NewDefinition("no-payload", func(_ context.Context, _ struct{}) (int, error) {
		called = true
		return 42, nil
	}))

	h, _ := r.Get("no-payload")
	res, err := h(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with empty payload")
	}
	if res != 42 {
		t.Errorf("result = %v, want 42", res)
	}
}

func TestRegistry_HandlerError(t *testing.T) {
	r := job.NewRegistry()
	want := errors.New("handler failed")
	job.RegisterDefinition(r, job.NewDefinition("failing", func(_ context.Context, _ struct{}) (int, error) {
		return 0, want
	}))

	h, _ := r.Get("failing")
	if _, err := h(context.Background(), nil); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestRegistry_OverwriteHandler(t *testing.T) {
	r := job.NewRegistry()

	job.RegisterDefinition(r, job.NewDefinition("overwrite", func(_ context.Context, _ struct{}) (int, error) {
		return 0, errors.New("old")
	}))
	job.RegisterDefinition(r, job.NewDefinition("overwrite", func(_ context.Context, _ struct{}) (int, error) {
		return 0, errors.New("new")
	}))

	h, _ := r.Get("overwrite")
	_, err := h(context.Background(), nil)
	if err == nil || err.Error() != "new" {
		t.Fatalf("expected 'new' error, got %v", err)
	}
}

func TestRegistry_DefinitionOptions(t *testing.T) {
	r := job.NewRegistry()
	job.RegisterDefinition(r, job.NewDefinition("urgent",
		func(_ context.Context, _ struct{}) (int, error) { return 0, nil },
		job.WithPriority(job.PriorityCritical),
		job.WithMaxAttempts(7),
	))

	j := job.New("task_1_1", 1, "urgent", nil, r.Options("urgent")...)
	if j.Priority != job.PriorityCritical {
		t.Errorf("Priority = %v, want critical", j.Priority)
	}
	if j.MaxAttempts != 7 {
		t.Errorf("MaxAttempts = %d, want 7", j.MaxAttempts)
	}
}
