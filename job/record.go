package job

import (
	"fmt"
	"sync"
	"time"

	"github.com/xraph/courier"
)

// Record is the mutable execution record of a Job. Transitions are guarded
// by the state machine; any illegal move returns courier.ErrInvalidState
// and leaves the record untouched.
type Record struct {
	job *Job

	mu          sync.RWMutex
	state       State
	attempts    int
	startedAt   *time.Time
	completedAt *time.Time
	result      any
	lastErr     string
}

// NewRecord attaches a pending record to j.
func NewRecord(j *Job) *Record {
	return &Record{job: j, state: StatePending}
}

// Job returns the immutable job this record tracks.
func (r *Record) Job() *Job { return r.job }

// ID returns the job ID.
func (r *Record) ID() string { return r.job.ID }

// State returns the current state.
func (r *Record) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Attempts returns the number of executions started so far.
func (r *Record) Attempts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.attempts
}

// LastError returns the error of the most recent failed attempt, whatever
// the current state.
func (r *Record) LastError() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// Begin moves the record from pending to running and counts the attempt.
// It returns the 1-based attempt number.
func (r *Record) Begin(now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(StateRunning); err != nil {
		return 0, err
	}
	if r.attempts >= r.job.MaxAttempts {
		return 0, fmt.Errorf("%w: job %s already used %d of %d attempts",
			courier.ErrInvalidState, r.job.ID, r.attempts, r.job.MaxAttempts)
	}
	r.attempts++
	r.state = StateRunning
	r.startedAt = &now
	return r.attempts, nil
}

// Complete moves a running record to completed and stores its result.
func (r *Record) Complete(result any, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(StateCompleted); err != nil {
		return err
	}
	r.state = StateCompleted
	r.result = result
	r.completedAt = &now
	return nil
}

// Retry moves a running record to retrying. It fails when the retry budget
// is exhausted; use Fail instead.
func (r *Record) Retry(cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(StateRetrying); err != nil {
		return err
	}
	if r.attempts >= r.job.MaxAttempts {
		return fmt.Errorf("%w: job %s has no attempts left", courier.ErrInvalidState, r.job.ID)
	}
	r.state = StateRetrying
	r.lastErr = errString(cause)
	return nil
}

// Requeue moves a retrying record back to pending once its backoff elapsed.
func (r *Record) Requeue() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(StatePending); err != nil {
		return err
	}
	r.state = StatePending
	return nil
}

// Fail moves a running record to failed. Only a record that used its whole
// retry budget may fail.
func (r *Record) Fail(cause error, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(StateFailed); err != nil {
		return err
	}
	if r.attempts < r.job.MaxAttempts {
		return fmt.Errorf("%w: job %s failed with %d of %d attempts used",
			courier.ErrInvalidState, r.job.ID, r.attempts, r.job.MaxAttempts)
	}
	r.state = StateFailed
	r.lastErr = errString(cause)
	r.completedAt = &now
	return nil
}

// check must be called with mu held.
func (r *Record) check(to State) error {
	if !CanTransition(r.state, to) {
		return fmt.Errorf("%w: job %s %s -> %s", courier.ErrInvalidState, r.job.ID, r.state, to)
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Snapshot is a point-in-time copy of a record. Result and Error are set
// only in terminal states.
type Snapshot struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Priority    Priority   `json:"priority"`
	State       State      `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Snapshot returns a consistent copy of the record.
func (r *Record) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Snapshot{
		ID:          r.job.ID,
		Name:        r.job.Name,
		Priority:    r.job.Priority,
		State:       r.state,
		Attempts:    r.attempts,
		MaxAttempts: r.job.MaxAttempts,
		CreatedAt:   r.job.CreatedAt,
		StartedAt:   copyTime(r.startedAt),
		CompletedAt: copyTime(r.completedAt),
	}
	switch r.state {
	case StateCompleted:
		s.Result = r.result
	case StateFailed:
		s.Error = r.lastErr
	}
	return s
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
