package courier

import (
	"errors"
	"fmt"
)

var (
	// Lookup errors.
	ErrJobNotFound          = errors.New("courier: job not found")
	ErrSubscriptionNotFound = errors.New("courier: subscription not found")
	ErrDeliveryNotFound     = errors.New("courier: delivery not found")
	ErrScheduleNotFound     = errors.New("courier: schedule not found")
	ErrUnknownJobKind       = errors.New("courier: no handler registered for job kind")

	// State errors.
	ErrNotReady       = errors.New("courier: job not finished")
	ErrInvalidState   = errors.New("courier: invalid state transition")
	ErrRetryExhausted = errors.New("courier: retry budget exhausted")

	// ErrSubscriptionInUse is returned when purging a subscription that
	// deliveries in history still reference.
	ErrSubscriptionInUse = errors.New("courier: subscription referenced by deliveries")

	// Validation errors.
	ErrInvalidSubscription = errors.New("courier: invalid subscription")
	ErrInvalidSchedule     = errors.New("courier: invalid schedule")

	// Execution and transport errors.
	ErrExecution         = errors.New("courier: job execution failed")
	ErrDeliveryTransport = errors.New("courier: webhook delivery failed")

	// Lifecycle errors.
	ErrShutdownTimeout = errors.New("courier: shutdown timed out")
	ErrPoolStopped     = errors.New("courier: worker pool stopped")
)

// ExecutionError is produced when a unit of work returns an error or
// panics. It is stored on the execution record and never escapes the
// worker goroutine.
type ExecutionError struct {
	JobID   string
	Name    string
	Attempt int
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("job %s (%s) attempt %d: %v", e.JobID, e.Name, e.Attempt, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Is reports ErrExecution so callers can match the whole class.
func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }

// JobFailedError is returned to callers asking for the result of a job
// that exhausted its retry budget. Message is the last recorded error.
type JobFailedError struct {
	JobID    string
	Attempts int
	Message  string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed after %d attempts: %s", e.JobID, e.Attempts, e.Message)
}

// Is reports ErrRetryExhausted.
func (e *JobFailedError) Is(target error) bool { return target == ErrRetryExhausted }
