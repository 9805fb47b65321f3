package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/queue"
)

// Sender defaults.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "courier-webhook/1.0"

	// MaxSnippet bounds the response body kept on a delivery.
	MaxSnippet = 1000
)

// Outbound request headers.
const (
	HeaderEvent     = "X-Webhook-Event"
	HeaderID        = "X-Webhook-ID"
	HeaderAttempt   = "X-Webhook-Attempt"
	HeaderSignature = "X-Webhook-Signature"
)

// TransportError describes a failed delivery attempt: a timeout, a
// connection error or a non-2xx response. It is always retryable.
type TransportError struct {
	// StatusCode is zero when no response was received.
	StatusCode int
	Snippet    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("webhook endpoint returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports courier.ErrDeliveryTransport.
func (e *TransportError) Is(target error) bool { return target == courier.ErrDeliveryTransport }

// Request is one outbound delivery attempt.
type Request struct {
	URL          string
	Event        string
	SubscriberID string
	Attempt      int
	Body         []byte
	Signature    string
}

// Response is what a subscriber answered.
type Response struct {
	StatusCode int           `json:"status_code"`
	Snippet    string        `json:"response_snippet,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Sender posts webhook requests. It is safe for concurrent use.
type Sender struct {
	client    *http.Client
	userAgent string
	limiter   *queue.Limiter
	logger    *slog.Logger
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithHTTPClient replaces the HTTP client. Its Timeout bounds each attempt.
func WithHTTPClient(c *http.Client) SenderOption {
	return func(s *Sender) { s.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) SenderOption {
	return func(s *Sender) { s.userAgent = ua }
}

// WithLimiter throttles requests per destination host.
func WithLimiter(l *queue.Limiter) SenderOption {
	return func(s *Sender) { s.limiter = l }
}

// WithSenderLogger sets the sender logger.
func WithSenderLogger(l *slog.Logger) SenderOption {
	return func(s *Sender) { s.logger = l }
}

// NewSender creates a Sender with a 30s client timeout.
func NewSender(opts ...SenderOption) *Sender {
	s := &Sender{
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send posts r.Body to r.URL. Any 2xx answer is a success; everything else
// returns a *TransportError. The response is returned whenever one was
// received.
func (s *Sender) Send(ctx context.Context, r Request) (Response, error) {
	target, err := url.Parse(r.URL)
	if err != nil {
		return Response{}, &TransportError{Snippet: "invalid url", Err: err}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, target.Host); err != nil {
			return Response{}, &TransportError{Snippet: "rate limit wait aborted", Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(r.Body))
	if err != nil {
		return Response{}, &TransportError{Snippet: "invalid request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set(HeaderEvent, r.Event)
	req.Header.Set(HeaderID, r.SubscriberID)
	req.Header.Set(HeaderAttempt, strconv.Itoa(r.Attempt))
	if r.Signature != "" {
		req.Header.Set(HeaderSignature, SignaturePrefix+r.Signature)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return Response{Duration: time.Since(start)}, &TransportError{Snippet: failureSnippet(err), Err: err}
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, MaxSnippet))
	// Drain a bounded remainder so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	out := Response{
		StatusCode: resp.StatusCode,
		Snippet:    string(snippet),
		Duration:   time.Since(start),
	}

	s.logger.Debug("webhook response",
		slog.String("url", r.URL),
		slog.String("subscriber_id", r.SubscriberID),
		slog.Int("attempt", r.Attempt),
		slog.Int("status_code", resp.StatusCode),
		slog.Duration("duration", out.Duration),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &TransportError{StatusCode: resp.StatusCode, Snippet: out.Snippet}
	}
	return out, nil
}

func failureSnippet(err error) string {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "request timeout"
	}
	return "connection error"
}
