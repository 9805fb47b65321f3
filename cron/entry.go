package cron

import (
	"encoding/json"
	"time"
)

// Entry is a named recurring job submission.
type Entry struct {
	// Name identifies the entry. Setting an entry with an existing name
	// replaces it.
	Name string `json:"name"`

	// Schedule is a cron expression such as "0 2 * * *" or "@every 15m".
	Schedule string `json:"schedule"`

	// JobName is the registered job kind submitted on each tick.
	JobName string `json:"job_name"`

	// Payload is passed unchanged to every submitted job.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Priority is the job priority name; empty keeps the kind's default.
	Priority string `json:"priority,omitempty"`

	// MaxAttempts overrides the job kind's retry budget when positive.
	MaxAttempts int `json:"max_attempts,omitempty"`

	// Paused entries keep their place but do not fire.
	Paused bool `json:"paused"`

	Runs      int        `json:"runs"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastJobID string     `json:"last_job_id,omitempty"`
	LastError string     `json:"last_error,omitempty"`

	// NextRunAt is nil while the entry is paused.
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
}
