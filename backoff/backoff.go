// Package backoff provides retry delay strategies for job execution.
// All strategies are safe for concurrent use (they are stateless).
package backoff

import (
	"math"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retrying a unit that has
	// already been attempted `attempt` times (1-indexed).
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each attempt.
// Delay = min(Base * 2^attempt, Max). A zero Max leaves it uncapped.
type Exponential struct {
	Base time.Duration
	Max  time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(base, maxDelay time.Duration) *Exponential {
	return &Exponential{Base: base, Max: maxDelay}
}

// Delay returns Base * 2^attempt, capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	f := float64(e.Base) * math.Pow(2, float64(attempt))
	if f >= math.MaxInt64 {
		if e.Max > 0 {
			return e.Max
		}
		return time.Duration(math.MaxInt64)
	}
	d := time.Duration(f)
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// Defaults
// ──────────────────────────────────────────────────

// DeliveryCap bounds the backoff of webhook deliveries.
const DeliveryCap = time.Minute

// Default returns the backoff used for generic jobs: 2^attempt seconds,
// uncapped (attempt 1 → 2s, attempt 2 → 4s, ...).
func Default() Strategy {
	return NewExponential(time.Second, 0)
}

// Delivery returns the backoff used for webhook deliveries: 2^attempt
// seconds, capped at DeliveryCap.
func Delivery() Strategy {
	return NewExponential(time.Second, DeliveryCap)
}
