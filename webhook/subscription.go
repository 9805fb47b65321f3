package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/xraph/courier"
)

// Subscription is one subscriber's interest in a set of events.
type Subscription struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Secret    string    `json:"secret,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Subscribes reports whether the subscription lists event by exact name.
func (s *Subscription) Subscribes(event string) bool {
	return slices.Contains(s.Events, event)
}

func (s *Subscription) clone() Subscription {
	c := *s
	c.Events = slices.Clone(s.Events)
	return c
}

// SubscriptionStore mirrors the registry to durable storage. Store errors
// are logged by the registry and never fail the in-memory operation.
type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, s *Subscription) error
	DeleteSubscription(ctx context.Context, subscriberID string) error
	ListSubscriptions(ctx context.Context) ([]*Subscription, error)
}

// Registry holds webhook subscriptions in memory. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	store  SubscriptionStore
	logger *slog.Logger

	// referenced reports whether delivery history still points at a
	// subscriber. Set by NewDispatcher.
	referenced func(subscriberID string) bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithStore mirrors every change to store and lets Load restore from it.
func WithStore(store SubscriptionStore) RegistryOption {
	return func(r *Registry) { r.store = store }
}

// NewRegistry creates an empty subscription registry.
func NewRegistry(logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		subs:   make(map[string]*Subscription),
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load merges every subscription found in the store into the registry.
// It is a no-op without a store.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	subs, err := r.store.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}

	r.mu.Lock()
	for _, s := range subs {
		c := s.clone()
		r.subs[c.ID] = &c
	}
	r.mu.Unlock()

	r.logger.Info("subscriptions loaded", slog.Int("count", len(subs)))
	return nil
}

// Subscribe creates or replaces the subscription of subscriberID. An
// existing subscription keeps its creation time and is reactivated. The
// URL is not contacted.
func (r *Registry) Subscribe(ctx context.Context, subscriberID, url string, events []string, secret string) (Subscription, error) {
	if subscriberID == "" {
		return Subscription{}, fmt.Errorf("%w: subscriber id is required", courier.ErrInvalidSubscription)
	}
	if url == "" {
		return Subscription{}, fmt.Errorf("%w: url is required", courier.ErrInvalidSubscription)
	}
	if len(events) == 0 {
		return Subscription{}, fmt.Errorf("%w: at least one event is required", courier.ErrInvalidSubscription)
	}

	evs := slices.Clone(events)
	slices.Sort(evs)
	evs = slices.Compact(evs)

	now := time.Now().UTC()
	r.mu.Lock()
	s, ok := r.subs[subscriberID]
	if !ok {
		s = &Subscription{ID: subscriberID, CreatedAt: now}
		r.subs[subscriberID] = s
	}
	s.URL = url
	s.Events = evs
	s.Secret = secret
	s.Active = true
	s.UpdatedAt = now
	out := s.clone()
	r.mu.Unlock()

	r.logger.Info("subscription saved",
		slog.String("subscriber_id", subscriberID),
		slog.String("url", url),
		slog.Any("events", evs),
		slog.Bool("created", !ok),
	)
	r.persist(ctx, &out)
	return out, nil
}

// Unsubscribe marks a subscription inactive. Deliveries that reference it
// are kept.
func (r *Registry) Unsubscribe(ctx context.Context, subscriberID string) error {
	r.mu.Lock()
	s, ok := r.subs[subscriberID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", courier.ErrSubscriptionNotFound, subscriberID)
	}
	s.Active = false
	s.UpdatedAt = time.Now().UTC()
	out := s.clone()
	r.mu.Unlock()

	r.logger.Info("subscription deactivated", slog.String("subscriber_id", subscriberID))
	r.persist(ctx, &out)
	return nil
}

// Purge removes a subscription entirely, from memory and from the store.
// It fails with courier.ErrSubscriptionInUse while the dispatcher still
// holds deliveries for the subscriber; deactivate it with Unsubscribe
// instead.
func (r *Registry) Purge(ctx context.Context, subscriberID string) error {
	r.mu.Lock()
	if _, ok := r.subs[subscriberID]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", courier.ErrSubscriptionNotFound, subscriberID)
	}
	if r.referenced != nil && r.referenced(subscriberID) {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", courier.ErrSubscriptionInUse, subscriberID)
	}
	delete(r.subs, subscriberID)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.DeleteSubscription(ctx, subscriberID); err != nil {
			r.logger.Error("subscription store delete failed",
				slog.String("subscriber_id", subscriberID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Match returns the active subscriptions listing event, ordered by
// subscriber id.
func (r *Registry) Match(event string) []Subscription {
	r.mu.RLock()
	out := make([]Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		if s.Active && s.Subscribes(event) {
			out = append(out, s.clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns one subscription, active or not.
func (r *Registry) Get(subscriberID string) (Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subs[subscriberID]
	if !ok {
		return Subscription{}, fmt.Errorf("%w: %s", courier.ErrSubscriptionNotFound, subscriberID)
	}
	return s.clone(), nil
}

// List returns every subscription ordered by subscriber id.
func (r *Registry) List() []Subscription {
	r.mu.RLock()
	out := make([]Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s.clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// trackReferences makes Purge consult fn before removing a subscription.
func (r *Registry) trackReferences(fn func(subscriberID string) bool) {
	r.mu.Lock()
	r.referenced = fn
	r.mu.Unlock()
}

func (r *Registry) persist(ctx context.Context, s *Subscription) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveSubscription(ctx, s); err != nil {
		r.logger.Error("subscription store save failed",
			slog.String("subscriber_id", s.ID),
			slog.String("error", err.Error()),
		)
	}
}
