package jobs

import "time"

// Backoff computes the redelivery delay after the given failed attempt (1-based).
type Backoff interface {
	Delay(attempt int) time.Duration
}

// FixedBackoff waits the same interval between attempts.
type FixedBackoff struct {
	Interval time.Duration
}

// Delay implements Backoff.
func (b FixedBackoff) Delay(int) time.Duration {
	return b.Interval
}

// ExponentialBackoff doubles Base per attempt up to Max.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay implements Backoff.
func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := b.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && delay > b.Max {
		return b.Max
	}
	return delay
}

// NewBackoff maps a configuration strategy name to a Backoff.
func NewBackoff(strategy string, base, max time.Duration) Backoff {
	if base <= 0 {
		base = time.Second
	}
	if strategy == "fixed" {
		return FixedBackoff{Interval: base}
	}
	return ExponentialBackoff{Base: base, Max: max}
}
