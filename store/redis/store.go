package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/courier/webhook"
)

var _ webhook.SubscriptionStore = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithNamespace prefixes every key with ns instead of DefaultNamespace, so
// several daemons can share one Redis database.
func WithNamespace(ns string) Option {
	return func(s *Store) {
		if ns != "" {
			s.keys = keys{ns: ns}
		}
	}
}

// Store persists webhook subscriptions in Redis. Each subscription is a
// Hash; a Set indexes their ids.
type Store struct {
	client redis.Cmdable
	keys   keys
	logger *slog.Logger
}

// New creates a Redis-backed subscription store. The caller owns the
// client and closes it.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client: client,
		keys:   keys{ns: DefaultNamespace},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Namespace returns the key prefix in use.
func (s *Store) Namespace() string { return s.keys.ns }

// Ping checks that Redis answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("courier/redis: ping: %w", err)
	}
	return nil
}
