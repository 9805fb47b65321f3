package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/xraph/courier"
	"github.com/xraph/courier/cron"
)

// Schedule is the writable part of a cron entry.
type Schedule struct {
	Schedule    string          `json:"schedule"`
	JobName     string          `json:"job_name"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Priority    string          `json:"priority,omitempty"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
	Paused      bool            `json:"paused,omitempty"`
}

func schedulePath(name string) string {
	return "/v1/schedules/" + url.PathEscape(name)
}

// PutSchedule creates or replaces a cron entry. A replaced entry keeps its
// run history.
func (c *Client) PutSchedule(ctx context.Context, name string, s Schedule) (cron.Entry, error) {
	var e cron.Entry
	_, err := c.do(ctx, call{method: http.MethodPut, path: schedulePath(name), body: s}, &e)
	return e, err
}

// GetSchedule returns one cron entry with its next run time.
func (c *Client) GetSchedule(ctx context.Context, name string) (cron.Entry, error) {
	var e cron.Entry
	_, err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     schedulePath(name),
		notFound: courier.ErrScheduleNotFound,
	}, &e)
	return e, err
}

// ListSchedules returns every cron entry ordered by name.
func (c *Client) ListSchedules(ctx context.Context) ([]cron.Entry, error) {
	var entries []cron.Entry
	_, err := c.do(ctx, call{method: http.MethodGet, path: "/v1/schedules"}, &entries)
	return entries, err
}

// DeleteSchedule removes a cron entry.
func (c *Client) DeleteSchedule(ctx context.Context, name string) error {
	_, err := c.do(ctx, call{
		method:   http.MethodDelete,
		path:     schedulePath(name),
		notFound: courier.ErrScheduleNotFound,
	}, nil)
	return err
}

// PauseSchedule stops or resumes a cron entry.
func (c *Client) PauseSchedule(ctx context.Context, name string, paused bool) (cron.Entry, error) {
	action := "/resume"
	if paused {
		action = "/pause"
	}
	var e cron.Entry
	_, err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     schedulePath(name) + action,
		notFound: courier.ErrScheduleNotFound,
	}, &e)
	return e, err
}

// RunSchedule submits the entry's job now and returns its job id.
func (c *Client) RunSchedule(ctx context.Context, name string) (string, error) {
	var resp struct {
		JobID string `json:"job_id"`
	}
	_, err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     schedulePath(name) + "/run",
		notFound: courier.ErrScheduleNotFound,
	}, &resp)
	return resp.JobID, err
}
