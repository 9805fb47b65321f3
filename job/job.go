package job

import (
	"encoding/json"
	"time"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StatePending means the job is queued and waiting for a worker.
	StatePending State = "pending"
	// StateRunning means a worker is currently executing the job.
	StateRunning State = "running"
	// StateCompleted means the job finished successfully.
	StateCompleted State = "completed"
	// StateFailed means the job exhausted its retry budget.
	StateFailed State = "failed"
	// StateRetrying means the job failed and is waiting out its backoff.
	StateRetrying State = "retrying"
)

// IsTerminal reports whether no further transitions can occur.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is an immutable unit of work. It is created at submission time and
// referenced, never copied, by its Record.
type Job struct {
	ID          string          `json:"id"`
	Seq         uint64          `json:"seq"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Priority    Priority        `json:"priority"`
	MaxAttempts int             `json:"max_attempts"`
	Timeout     time.Duration   `json:"timeout,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// New builds a Job. seq orders jobs of equal priority; callers normally
// obtain both jobID and seq from an id.Sequence.
func New(jobID string, seq uint64, name string, payload []byte, opts ...Option) *Job {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 1
	}
	return &Job{
		ID:          jobID,
		Seq:         seq,
		Name:        name,
		Payload:     payload,
		Priority:    o.Priority,
		MaxAttempts: o.MaxAttempts,
		Timeout:     o.Timeout,
		CreatedAt:   time.Now().UTC(),
	}
}
