package watcher

import "time"

const (
	// DefaultBackoffBase is the delay after the first consecutive failure.
	DefaultBackoffBase = 5 * time.Second
	// DefaultBackoffCeiling caps the delay however many failures pile up.
	DefaultBackoffCeiling = 5 * time.Minute
)

// Backoff computes the delay before the next connection attempt. The delay
// doubles on every consecutive failure up to the ceiling, and resets as soon
// as a session reaches the watching state again. A synthetic idle timeout is
// not a failure and never feeds this counter.
type Backoff struct {
	Base     time.Duration
	Ceiling  time.Duration
	attempts int
}

// Next records another failure and returns the delay before retrying.
func (b *Backoff) Next() time.Duration {
	base := b.Base
	if base <= 0 {
		base = DefaultBackoffBase
	}
	ceiling := b.Ceiling
	if ceiling <= 0 {
		ceiling = DefaultBackoffCeiling
	}
	b.attempts++
	delay := base
	for attempt := 1; attempt < b.attempts; attempt++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	if delay > ceiling {
		delay = ceiling
	}
	return delay
}

// Reset clears the failure counter.
func (b *Backoff) Reset() {
	b.attempts = 0
}

// Attempts returns how many consecutive failures have been recorded.
func (b *Backoff) Attempts() int {
	return b.attempts
}
