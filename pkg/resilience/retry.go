package resilience

import (
	"math/rand"
	"time"
)

// RetryPolicy computes backoff delays for retry loops: exponential growth
// from BaseDelay, capped at MaxDelay, with optional jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultRetryPolicy returns a policy suitable for reconnect loops.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Second,
		MaxDelay:    60 * time.Second,
		Jitter:      true,
	}
}

// Delay returns the backoff delay for the given attempt (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 1 * time.Second
	}
	max := p.MaxDelay
	if max < base {
		max = base
	}
	if attempt < 0 {
		attempt = 0
	}

	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}

	if p.Jitter {
		// scale into [0.5, 1.5)
		d = time.Duration(float64(d) * (0.5 + rand.Float64()))
		if d > max {
			d = max
		}
	}
	return d
}
