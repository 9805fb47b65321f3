package relayhook

// Job lifecycle event names. Each constant maps to one ext lifecycle hook
// and is the event name subscribers register for.
const (
	EventJobEnqueued  = "courier.job.enqueued"
	EventJobStarted   = "courier.job.started"
	EventJobCompleted = "courier.job.completed"
	EventJobFailed    = "courier.job.failed"
	EventJobRetrying  = "courier.job.retrying"

	// EventScheduleFired is relayed when a cron entry submits its job.
	EventScheduleFired = "courier.schedule.fired"
)

// AllEvents returns every event name this extension can emit.
func AllEvents() []string {
	return []string{
		EventJobEnqueued,
		EventJobStarted,
		EventJobCompleted,
		EventJobFailed,
		EventJobRetrying,
		EventScheduleFired,
	}
}
