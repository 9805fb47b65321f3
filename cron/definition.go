package cron

import (
	"encoding/json"
	"fmt"
)

// Definition is a typed schedule. T is the payload type and must be
// JSON-serializable.
type Definition[T any] struct {
	// Name is the unique identifier of the schedule.
	Name string

	// Schedule is a cron expression (e.g., "*/5 * * * *" or "@every 30s").
	Schedule string

	// JobName is the name of the job to submit on each tick.
	JobName string

	// Payload is marshaled once and submitted with every job.
	Payload T

	Priority    string
	MaxAttempts int
}

// Register adds def to s, replacing any schedule with the same name.
func Register[T any](s *Scheduler, def Definition[T]) (Entry, error) {
	raw, err := json.Marshal(def.Payload)
	if err != nil {
		return Entry{}, fmt.Errorf("cron: marshal payload for %q: %w", def.Name, err)
	}
	return s.Set(Entry{
		Name:        def.Name,
		Schedule:    def.Schedule,
		JobName:     def.JobName,
		Payload:     raw,
		Priority:    def.Priority,
		MaxAttempts: def.MaxAttempts,
	})
}
