// Package backoff provides pluggable retry delay strategies for job
// execution. All strategies are safe for concurrent use (they are
// stateless).
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
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

// Exponential multiplies the delay by Factor each attempt.
// Delay = min(Base * Factor^(attempt-1), Max).
type Exponential struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
}

// NewExponential creates an exponential backoff strategy.
// A factor of 2 doubles the delay each attempt.
func NewExponential(base, maxDelay time.Duration, factor float64) *Exponential {
	if factor <= 1 {
		factor = 2
	}
	return &Exponential{Base: base, Max: maxDelay, Factor: factor}
}

// Delay returns Base * Factor^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Base) * math.Pow(e.Factor, float64(attempt-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// Jitter
// ──────────────────────────────────────────────────

// Jitter perturbs another strategy's delay by a proportional amount,
// picked uniformly from [-Fraction, +Fraction] of the base delay. This
// prevents synchronized retries across independent schedules.
type Jitter struct {
	Inner    Strategy
	Fraction float64
}

// NewJitter wraps a strategy with ±fraction proportional jitter.
func NewJitter(inner Strategy, fraction float64) *Jitter {
	return &Jitter{Inner: inner, Fraction: fraction}
}

// Delay returns the inner delay perturbed by up to ±Fraction.
func (j *Jitter) Delay(attempt int) time.Duration {
	d := float64(j.Inner.Delay(attempt))
	spread := (rand.Float64()*2 - 1) * j.Fraction //nolint:gosec // jitter intentionally uses non-crypto rand
	out := time.Duration(d * (1 + spread))
	if out < 0 {
		return 0
	}
	return out
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns the default backoff used by the engine:
// Exponential with 1s base, 30s max, factor 2, and ±10% jitter.
func DefaultStrategy() Strategy {
	return NewJitter(NewExponential(1*time.Second, 30*time.Second, 2), 0.1)
}
