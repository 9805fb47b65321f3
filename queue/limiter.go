package queue

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config defines the token bucket applied to one key.
type Config struct {
	// Key identifies the bucket, for example a destination host. It is
	// ignored on the default config.
	Key string

	// RateLimit is the maximum sustained operations per second. Zero
	// disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

func (c Config) newLimiter() *rate.Limiter {
	if c.RateLimit <= 0 {
		return nil
	}
	burst := c.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.RateLimit), burst)
}

// Limiter throttles operations per key. It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	def      Config
	configs  map[string]Config
	limiters map[string]*rate.Limiter
}

// NewLimiter creates a Limiter. def applies to every key without an
// explicit override.
func NewLimiter(def Config, overrides ...Config) *Limiter {
	l := &Limiter{
		def:      def,
		configs:  make(map[string]Config, len(overrides)),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, cfg := range overrides {
		l.configs[cfg.Key] = cfg
	}
	return l
}

// SetConfig dynamically updates (or creates) the config of one key.
func (l *Limiter) SetConfig(cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.configs[cfg.Key] = cfg
	delete(l.limiters, cfg.Key)
}

// bucket returns the limiter for key, or nil when the key is unlimited.
func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[key]; ok {
		return lim
	}
	cfg, ok := l.configs[key]
	if !ok {
		cfg = l.def
	}
	lim := cfg.newLimiter()
	l.limiters[key] = lim
	return lim
}

// Allow reports whether an operation for key may proceed now, consuming a
// token if so.
func (l *Limiter) Allow(key string) bool {
	lim := l.bucket(key)
	return lim == nil || lim.Allow()
}

// Wait blocks until an operation for key may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	lim := l.bucket(key)
	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}
