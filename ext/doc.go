// Package ext defines the extension system for courier.
//
// Extensions are notified of lifecycle events and can react to them by
// recording metrics or writing audit logs. Each lifecycle hook is a
// separate interface so extensions opt in only to the events they care
// about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
//	    log.Printf("job %s completed in %s", j.ID, elapsed)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobEnqueued]: job was accepted into the queue
//   - [JobStarted]: worker began an attempt
//   - [JobCompleted]: job finished successfully
//   - [JobRetrying]: attempt failed, the job will run again
//   - [JobFailed]: job failed with no attempts remaining
//
// # Other Hooks
//
//   - [EventTriggered]: a webhook event fanned out to its subscribers
//   - [Shutdown]: the pool is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
