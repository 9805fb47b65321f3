package job

import "time"

// DefaultMaxAttempts is the retry budget of a job submitted without
// WithMaxAttempts.
const DefaultMaxAttempts = 3

// Options configures per-job behavior such as retries and priority.
type Options struct {
	// MaxAttempts is the total number of executions allowed, including
	// the first.
	MaxAttempts int

	// Priority determines dequeue ordering. Higher values are processed first.
	Priority Priority

	// Timeout is the maximum duration a single attempt may run. Zero
	// means no limit.
	Timeout time.Duration
}

// DefaultOptions returns the default job options.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: DefaultMaxAttempts,
		Priority:    PriorityNormal,
	}
}

// Option is a functional option for configuring a job.
type Option func(*Options)

// WithMaxAttempts sets the retry budget.
func WithMaxAttempts(n int) Option {
	return func(o *Options) { o.MaxAttempts = n }
}

// WithPriority sets the dequeue priority.
func WithPriority(p Priority) Option {
	return func(o *Options) { o.Priority = p }
}

// WithTimeout sets the per-attempt execution timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}
