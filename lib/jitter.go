package lib

import (
	"math/rand"
	"time"
)

// Jitter spreads a delay by up to fraction of its value so multiple
// instances retrying against the same server don't do it in lockstep.
func Jitter(delay time.Duration, fraction float64) time.Duration {
	if delay <= 0 || fraction <= 0 {
		return delay
	}
	spread := float64(delay) * fraction
	return delay + time.Duration(rand.Float64()*spread)
}
