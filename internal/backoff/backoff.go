// Package backoff provides retry delay strategies for the download engine.
// Strategies are stateless and safe for concurrent use.
package backoff

import "time"

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// Linear increases the delay linearly with the attempt number.
// Delay = min(Base * attempt, Max).
type Linear struct {
	Base time.Duration
	Max  time.Duration
}

// NewLinear creates a linear backoff strategy.
func NewLinear(base, maxDelay time.Duration) *Linear {
	return &Linear{Base: base, Max: maxDelay}
}

// Delay returns Base * attempt, capped at Max when Max is set.
func (l *Linear) Delay(attempt int) time.Duration {
	d := l.Base * time.Duration(attempt)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

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
