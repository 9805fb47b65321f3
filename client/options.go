package client

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/xraph/courier/backoff"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRetry retries transport errors and 5xx answers up to maxRetries
// times with exponential backoff starting at baseDelay.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.bo = backoff.NewExponential(baseDelay, 30*time.Second)
	}
}
