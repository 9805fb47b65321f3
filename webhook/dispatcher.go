package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/backoff"
	"github.com/xraph/courier/engine"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
	"github.com/xraph/courier/queue"
)

// KindDeliver is the job kind that performs one delivery attempt.
const KindDeliver = "webhook.deliver"

// Identifier prefixes.
const (
	DeliveryIDPrefix = "delivery"
	jobIDPrefix      = "webhook"
)

// DefaultRecentLimit is the Recent limit used when none is given.
const DefaultRecentLimit = 100

// deliveryArgs is the serialized payload of a delivery job. It carries
// everything an attempt needs so the job does not depend on dispatcher
// state.
type deliveryArgs struct {
	DeliveryID   string `json:"delivery_id"`
	EventID      string `json:"event_id"`
	Event        string `json:"event"`
	SubscriberID string `json:"subscriber_id"`
	URL          string `json:"url"`
	Body         []byte `json:"body"`
	Signature    string `json:"signature,omitempty"`
}

// Dispatcher fans events out to matching subscriptions and delivers each
// one as a retried job on its own worker pool.
type Dispatcher struct {
	config     courier.Config
	registry   *Registry
	sender     *Sender
	bo         backoff.Strategy
	engine     *engine.Engine
	engineOpts []engine.Option
	seq        *id.Sequence
	logger     *slog.Logger

	mu         sync.RWMutex
	deliveries map[string]*Delivery
	order      []string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConfig replaces the default configuration. The dispatcher uses the
// Webhook section plus the pool timings.
func WithConfig(cfg courier.Config) Option {
	return func(d *Dispatcher) { d.config = cfg }
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithSender replaces the sender built from the configuration.
func WithSender(s *Sender) Option {
	return func(d *Dispatcher) { d.sender = s }
}

// WithBackoff replaces the delivery backoff (2^attempt seconds capped at
// Webhook.BackoffCap).
func WithBackoff(b backoff.Strategy) Option {
	return func(d *Dispatcher) { d.bo = b }
}

// WithEngineOptions passes options to the dispatcher's job engine, such as
// telemetry providers or extensions.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(d *Dispatcher) { d.engineOpts = append(d.engineOpts, opts...) }
}

// NewDispatcher creates a Dispatcher over registry. Deliveries are not
// attempted until Start is called.
func NewDispatcher(registry *Registry, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		config:     courier.DefaultConfig(),
		registry:   registry,
		seq:        id.NewSequence(DeliveryIDPrefix),
		logger:     slog.Default(),
		deliveries: make(map[string]*Delivery),
	}
	for _, opt := range opts {
		opt(d)
	}

	wh := d.config.Webhook
	if d.bo == nil {
		d.bo = backoff.NewExponential(time.Second, wh.BackoffCap)
	}
	if d.sender == nil {
		senderOpts := []SenderOption{
			WithHTTPClient(&http.Client{Timeout: wh.Timeout}),
			WithUserAgent(wh.UserAgent),
			WithSenderLogger(d.logger),
		}
		if wh.RateLimit > 0 {
			senderOpts = append(senderOpts, WithLimiter(queue.NewLimiter(queue.Config{
				RateLimit: wh.RateLimit,
				RateBurst: wh.RateBurst,
			})))
		}
		d.sender = NewSender(senderOpts...)
	}

	cfg := d.config
	cfg.Workers = wh.Workers
	cfg.MaxAttempts = wh.MaxAttempts
	cfg.HistorySize = wh.HistorySize

	engOpts := []engine.Option{
		engine.WithConfig(cfg),
		engine.WithLogger(d.logger),
		engine.WithBackoff(d.bo),
		engine.WithIDPrefix(jobIDPrefix),
		engine.WithExtension(&tracker{d: d}),
	}
	engOpts = append(engOpts, d.engineOpts...)

	eng, err := engine.New(engOpts...)
	if err != nil {
		return nil, fmt.Errorf("webhook dispatcher: %w", err)
	}
	eng.Registry().Register(KindDeliver, d.deliver)
	d.engine = eng
	registry.trackReferences(d.references)
	return d, nil
}

// Trigger sends event to every active subscription listing it, one
// delivery job per subscription. It returns the delivery ids. data is
// encoded to JSON once and embedded in every envelope. Enqueue failures
// mark the affected deliveries failed and are joined into the error.
func (d *Dispatcher) Trigger(ctx context.Context, event string, data any) ([]string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal data for event %q: %w", event, err)
	}

	subs := d.registry.Match(event)
	eventID := id.NewEventID().String()
	now := time.Now().UTC()

	ids := make([]string, 0, len(subs))
	var errs []error
	for i := range subs {
		deliveryID, err := d.enqueue(ctx, eventID, event, &subs[i], raw, now)
		if deliveryID != "" {
			ids = append(ids, deliveryID)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	d.engine.Extensions().EmitEventTriggered(ctx, eventID, event, len(ids))
	d.logger.Info("event triggered",
		slog.String("event", event),
		slog.String("event_id", eventID),
		slog.Int("deliveries", len(ids)),
	)
	return ids, errors.Join(errs...)
}

func (d *Dispatcher) enqueue(ctx context.Context, eventID, event string, sub *Subscription, data json.RawMessage, now time.Time) (string, error) {
	body, err := NewEnvelope(event, sub.ID, data, now).Encode()
	if err != nil {
		return "", err
	}
	var sig string
	if sub.Secret != "" {
		sig = Sign(sub.Secret, body)
	}

	_, deliveryID := d.seq.Next()
	del := &Delivery{
		id:           deliveryID,
		eventID:      eventID,
		event:        event,
		subscriberID: sub.ID,
		url:          sub.URL,
		body:         body,
		signature:    sig,
		maxAttempts:  d.config.Webhook.MaxAttempts,
		createdAt:    now,
		status:       StatusPending,
	}
	d.track(del)

	payload, err := json.Marshal(deliveryArgs{
		DeliveryID:   deliveryID,
		EventID:      eventID,
		Event:        event,
		SubscriberID: sub.ID,
		URL:          sub.URL,
		Body:         body,
		Signature:    sig,
	})
	if err != nil {
		del.fail(err)
		return deliveryID, fmt.Errorf("delivery %s: %w", deliveryID, err)
	}

	jobID, err := d.engine.SubmitRaw(ctx, KindDeliver, payload,
		job.WithMaxAttempts(d.config.Webhook.MaxAttempts))
	if err != nil {
		del.fail(err)
		return deliveryID, fmt.Errorf("delivery %s: %w", deliveryID, err)
	}
	del.setJobID(jobID)
	return deliveryID, nil
}

// deliver is the handler of KindDeliver jobs.
func (d *Dispatcher) deliver(ctx context.Context, payload []byte) (any, error) {
	var args deliveryArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, fmt.Errorf("decode delivery: %w", err)
	}

	resp, err := d.sender.Send(ctx, Request{
		URL:          args.URL,
		Event:        args.Event,
		SubscriberID: args.SubscriberID,
		Attempt:      job.AttemptFrom(ctx),
		Body:         args.Body,
		Signature:    args.Signature,
	})
	if del, ok := d.lookup(args.DeliveryID); ok {
		del.record(resp, err)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// track adds del to the bounded delivery history, evicting the oldest.
func (d *Dispatcher) track(del *Delivery) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries[del.id] = del
	d.order = append(d.order, del.id)
	for len(d.order) > d.config.Webhook.HistorySize {
		delete(d.deliveries, d.order[0])
		d.order = d.order[1:]
	}
}

// references reports whether any delivery in history belongs to
// subscriberID.
func (d *Dispatcher) references(subscriberID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, del := range d.deliveries {
		if del.subscriberID == subscriberID {
			return true
		}
	}
	return false
}

func (d *Dispatcher) lookup(deliveryID string) (*Delivery, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	del, ok := d.deliveries[deliveryID]
	return del, ok
}

// snapshot copies del, taking status and attempts from its job while the
// job is still known to the pool.
func (d *Dispatcher) snapshot(del *Delivery) DeliverySnapshot {
	s := del.Snapshot()
	if s.JobID == "" {
		return s
	}
	if rec, err := d.engine.Record(s.JobID); err == nil {
		s.Status = statusOf(rec.State)
		s.Attempts = rec.Attempts
	}
	return s
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// Stats summarizes the deliveries still in history.
type Stats struct {
	Total     int `json:"total"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`

	// Pending counts deliveries that are not terminal yet.
	Pending int `json:"pending"`

	// SuccessRate is delivered / total as a percentage.
	SuccessRate float64 `json:"success_rate"`
	AvgAttempts float64 `json:"avg_attempts"`

	// QueueDepth is the number of attempts waiting for a worker. It is
	// only set by Dispatcher.Stats.
	QueueDepth int `json:"queue_depth"`
}

// Stats returns aggregate delivery statistics.
func (d *Dispatcher) Stats() Stats {
	st := summarize(d.collect(""))
	st.QueueDepth = d.engine.Pool().QueueDepth()
	return st
}

// SubscriberStats returns delivery statistics for one subscriber.
func (d *Dispatcher) SubscriberStats(subscriberID string) Stats {
	return summarize(d.collect(subscriberID))
}

// Recent returns up to limit deliveries, newest first, optionally filtered
// by subscriber. A limit of zero or less means DefaultRecentLimit.
func (d *Dispatcher) Recent(subscriberID string, limit int) []DeliverySnapshot {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	all := d.collect(subscriberID)
	out := make([]DeliverySnapshot, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out
}

// Get returns one delivery.
func (d *Dispatcher) Get(deliveryID string) (DeliverySnapshot, error) {
	del, ok := d.lookup(deliveryID)
	if !ok {
		return DeliverySnapshot{}, fmt.Errorf("%w: %s", courier.ErrDeliveryNotFound, deliveryID)
	}
	return d.snapshot(del), nil
}

// collect snapshots the history oldest first. An empty subscriberID
// matches every delivery.
func (d *Dispatcher) collect(subscriberID string) []DeliverySnapshot {
	d.mu.RLock()
	dels := make([]*Delivery, 0, len(d.order))
	for _, deliveryID := range d.order {
		del := d.deliveries[deliveryID]
		if subscriberID == "" || del.subscriberID == subscriberID {
			dels = append(dels, del)
		}
	}
	d.mu.RUnlock()

	out := make([]DeliverySnapshot, len(dels))
	for i, del := range dels {
		out[i] = d.snapshot(del)
	}
	return out
}

func summarize(snaps []DeliverySnapshot) Stats {
	st := Stats{Total: len(snaps)}
	if st.Total == 0 {
		return st
	}
	attempts := 0
	for _, s := range snaps {
		attempts += s.Attempts
		switch s.Status {
		case StatusDelivered:
			st.Delivered++
		case StatusFailed:
			st.Failed++
		default:
			st.Pending++
		}
	}
	st.SuccessRate = float64(st.Delivered) / float64(st.Total) * 100
	st.AvgAttempts = float64(attempts) / float64(st.Total)
	return st
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Start restores subscriptions from the registry's store, if any, and
// starts the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.registry.Load(ctx); err != nil {
		return err
	}
	return d.engine.Start(ctx)
}

// Stop stops the delivery workers. Queued attempts are abandoned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	return d.engine.Stop(ctx)
}

// Registry returns the subscription registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Engine returns the engine that runs delivery jobs.
func (d *Dispatcher) Engine() *engine.Engine { return d.engine }

// ──────────────────────────────────────────────────
// Delivery tracking
// ──────────────────────────────────────────────────

// tracker mirrors delivery job lifecycle events onto deliveries so their
// state outlives the job history.
type tracker struct {
	d *Dispatcher
}

func (t *tracker) Name() string { return "webhook-delivery-tracker" }

func (t *tracker) delivery(j *job.Job) (*Delivery, bool) {
	if j.Name != KindDeliver {
		return nil, false
	}
	var args deliveryArgs
	if err := json.Unmarshal(j.Payload, &args); err != nil {
		return nil, false
	}
	return t.d.lookup(args.DeliveryID)
}

func (t *tracker) OnJobStarted(_ context.Context, j *job.Job, attempt int) error {
	if del, ok := t.delivery(j); ok {
		del.begin(attempt, time.Now().UTC())
	}
	return nil
}

func (t *tracker) OnJobRetrying(_ context.Context, j *job.Job, _ int, _ time.Duration) error {
	if del, ok := t.delivery(j); ok {
		del.setStatus(StatusRetrying)
	}
	return nil
}

func (t *tracker) OnJobCompleted(_ context.Context, j *job.Job, elapsed time.Duration) error {
	del, ok := t.delivery(j)
	if !ok {
		return nil
	}
	del.setStatus(StatusDelivered)
	t.d.logger.Info("webhook delivered",
		slog.String("delivery_id", del.id),
		slog.String("subscriber_id", del.subscriberID),
		slog.String("event", del.event),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}

func (t *tracker) OnJobFailed(_ context.Context, j *job.Job, err error) error {
	del, ok := t.delivery(j)
	if !ok {
		return nil
	}
	del.setStatus(StatusFailed)
	t.d.logger.Warn("webhook delivery failed",
		slog.String("delivery_id", del.id),
		slog.String("subscriber_id", del.subscriberID),
		slog.String("event", del.event),
		slog.String("error", err.Error()),
	)
	return nil
}
