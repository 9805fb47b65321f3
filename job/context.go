package job

import "context"

type attemptKey struct{}

type attemptInfo struct {
	jobID   string
	attempt int
}

// WithAttempt returns a context carrying the identity and 1-based attempt
// number of the job being executed.
func WithAttempt(ctx context.Context, jobID string, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey{}, attemptInfo{jobID: jobID, attempt: attempt})
}

// AttemptFrom returns the 1-based attempt number of the executing job, or 0
// when ctx does not belong to a job execution.
func AttemptFrom(ctx context.Context) int {
	info, _ := ctx.Value(attemptKey{}).(attemptInfo)
	return info.attempt
}

// IDFrom returns the ID of the executing job.
func IDFrom(ctx context.Context) string {
	info, _ := ctx.Value(attemptKey{}).(attemptInfo)
	return info.jobID
}
