package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/xraph/courier"
	"github.com/xraph/courier/job"
)

type submitRequest struct {
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload"`
	Priority    *job.Priority   `json:"priority,omitempty"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
}

// SubmitOption configures a submit request.
type SubmitOption func(*submitRequest)

// WithPriority sets the job priority.
func WithPriority(p job.Priority) SubmitOption {
	return func(r *submitRequest) { r.Priority = &p }
}

// WithMaxAttempts overrides the attempt budget of the job.
func WithMaxAttempts(n int) SubmitOption {
	return func(r *submitRequest) { r.MaxAttempts = n }
}

// Submit enqueues a job on the daemon and returns its id.
func (c *Client) Submit(ctx context.Context, name string, payload any, opts ...SubmitOption) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req := submitRequest{Name: name, Payload: raw}
	for _, opt := range opts {
		opt(&req)
	}

	var out struct {
		ID string `json:"id"`
	}
	if _, err := c.do(ctx, call{method: http.MethodPost, path: "/v1/jobs", body: req}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// GetJob returns the daemon's snapshot of a job.
func (c *Client) GetJob(ctx context.Context, jobID string) (job.Snapshot, error) {
	var snap job.Snapshot
	_, err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     "/v1/jobs/" + url.PathEscape(jobID),
		notFound: courier.ErrJobNotFound,
	}, &snap)
	return snap, err
}

// Result returns the raw JSON result of a completed job. It returns
// courier.ErrNotReady while the job is unfinished and an error wrapping
// courier.ErrRetryExhausted once it has failed.
func (c *Client) Result(ctx context.Context, jobID string) (json.RawMessage, error) {
	var out struct {
		Status job.State       `json:"status"`
		Result json.RawMessage `json:"result"`
	}
	status, err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     "/v1/jobs/" + url.PathEscape(jobID) + "/result",
		notFound: courier.ErrJobNotFound,
	}, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusAccepted {
		return nil, fmt.Errorf("%w: job %s is %s", courier.ErrNotReady, jobID, out.Status)
	}
	return out.Result, nil
}

// ListJobs returns jobs in the given state. The empty state lists pending
// jobs.
func (c *Client) ListJobs(ctx context.Context, state job.State) ([]job.Snapshot, error) {
	path := "/v1/jobs"
	if state != "" {
		path += "?state=" + url.QueryEscape(string(state))
	}
	var snaps []job.Snapshot
	_, err := c.do(ctx, call{method: http.MethodGet, path: path}, &snaps)
	return snaps, err
}
