// Package client provides a Go client for a remote courier daemon over its
// HTTP API.
//
// Usage:
//
//	c := client.New("http://localhost:8080",
//	    client.WithRetry(3, 200*time.Millisecond),
//	)
//
//	// Submit a job and read its result.
//	jobID, err := c.Submit(ctx, "send-email", payload)
//	res, err := c.Result(ctx, jobID)
//
//	// Register a webhook and fire an event at it.
//	_, err = c.PutSubscription(ctx, "crm", client.Subscription{
//	    URL:    "https://crm.example.com/hooks",
//	    Events: []string{"passport.created"},
//	})
//	deliveries, err := c.Trigger(ctx, "passport.created", data)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/backoff"
)

// Client talks to a courier daemon.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	// Retries on transport errors and 5xx answers.
	maxRetries int
	bo         backoff.Strategy
}

// New returns a client for the daemon at baseURL, e.g.
// "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
		bo:      backoff.NewExponential(100*time.Millisecond, 5*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx answer from the daemon. It unwraps to the courier
// sentinel matching the status code where one exists.
type APIError struct {
	StatusCode int
	Message    string
	err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("courier/client: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.err }

// call describes one request.
type call struct {
	method   string
	path     string
	body     any
	notFound error // sentinel for 404
	conflict error // sentinel for 409; ErrRetryExhausted when nil
}

// do sends the request and decodes a 2xx answer into out when out is not
// nil. It returns the status code of the final answer.
func (c *Client) do(ctx context.Context, rq call, out any) (int, error) {
	var payload []byte
	if rq.body != nil {
		raw, err := json.Marshal(rq.body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		payload = raw
	}

	var (
		status int
		data   []byte
		err    error
	)
	for attempt := 0; ; attempt++ {
		status, data, err = c.send(ctx, rq.method, rq.path, payload)
		retryable := err != nil || status >= http.StatusInternalServerError
		if !retryable || attempt >= c.maxRetries || ctx.Err() != nil {
			break
		}

		delay := c.bo.Delay(attempt)
		c.logger.Warn("courier client retrying",
			slog.String("path", rq.path),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if err != nil {
		return 0, err
	}

	if status >= 300 {
		return status, apiError(status, data, rq)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return status, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return status, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("courier/client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func apiError(status int, data []byte, rq call) error {
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}

	e := &APIError{StatusCode: status, Message: msg}
	switch status {
	case http.StatusNotFound:
		e.err = rq.notFound
	case http.StatusConflict:
		e.err = rq.conflict
		if e.err == nil {
			e.err = courier.ErrRetryExhausted
		}
	case http.StatusServiceUnavailable:
		e.err = courier.ErrPoolStopped
	}
	return e
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
