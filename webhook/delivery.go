package webhook

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/xraph/courier/job"
)

// Status is the lifecycle state of a delivery.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusRetrying  Status = "retrying"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further attempts will be made.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// statusOf maps a delivery job's state onto a delivery status.
func statusOf(st job.State) Status {
	switch st {
	case job.StateRunning:
		return StatusRunning
	case job.StateRetrying:
		return StatusRetrying
	case job.StateCompleted:
		return StatusDelivered
	case job.StateFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// Delivery tracks one event sent to one subscriber across all its
// attempts.
type Delivery struct {
	id           string
	eventID      string
	event        string
	subscriberID string
	url          string
	body         []byte
	signature    string
	maxAttempts  int
	createdAt    time.Time

	mu            sync.RWMutex
	jobID         string
	status        Status
	attempts      int
	statusCode    int
	snippet       string
	lastErr       string
	lastAttemptAt *time.Time
}

// DeliverySnapshot is a point-in-time copy of a Delivery.
type DeliverySnapshot struct {
	ID              string          `json:"id"`
	JobID           string          `json:"job_id,omitempty"`
	EventID         string          `json:"event_id"`
	Event           string          `json:"event"`
	SubscriberID    string          `json:"subscriber_id"`
	URL             string          `json:"url"`
	Signature       string          `json:"signature,omitempty"`
	Status          Status          `json:"status"`
	Attempts        int             `json:"attempts"`
	MaxAttempts     int             `json:"max_attempts"`
	StatusCode      int             `json:"status_code,omitempty"`
	ResponseSnippet string          `json:"response_snippet,omitempty"`
	Error           string          `json:"error,omitempty"`
	Envelope        json.RawMessage `json:"envelope"`
	CreatedAt       time.Time       `json:"created_at"`
	LastAttemptAt   *time.Time      `json:"last_attempt_at,omitempty"`
}

func (d *Delivery) setJobID(jobID string) {
	d.mu.Lock()
	d.jobID = jobID
	d.mu.Unlock()
}

func (d *Delivery) begin(attempt int, now time.Time) {
	d.mu.Lock()
	d.status = StatusRunning
	d.attempts = attempt
	d.lastAttemptAt = &now
	d.mu.Unlock()
}

// record stores the outcome of one attempt.
func (d *Delivery) record(resp Response, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statusCode = resp.StatusCode
	d.snippet = resp.Snippet
	d.lastErr = ""
	if err != nil {
		d.lastErr = err.Error()
		var te *TransportError
		if errors.As(err, &te) && d.snippet == "" {
			d.snippet = te.Snippet
		}
	}
}

func (d *Delivery) setStatus(s Status) {
	d.mu.Lock()
	d.status = s
	d.mu.Unlock()
}

// fail marks a delivery that never reached the queue.
func (d *Delivery) fail(err error) {
	d.mu.Lock()
	d.status = StatusFailed
	d.lastErr = err.Error()
	d.mu.Unlock()
}

// Snapshot returns a copy of the delivery.
func (d *Delivery) Snapshot() DeliverySnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return DeliverySnapshot{
		ID:              d.id,
		JobID:           d.jobID,
		EventID:         d.eventID,
		Event:           d.event,
		SubscriberID:    d.subscriberID,
		URL:             d.url,
		Signature:       d.signature,
		Status:          d.status,
		Attempts:        d.attempts,
		MaxAttempts:     d.maxAttempts,
		StatusCode:      d.statusCode,
		ResponseSnippet: d.snippet,
		Error:           d.lastErr,
		Envelope:        json.RawMessage(d.body),
		CreatedAt:       d.createdAt,
		LastAttemptAt:   d.lastAttemptAt,
	}
}
