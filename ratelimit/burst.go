package ratelimit

import (
	"golang.org/x/time/rate"
)

// Burst is an optional token-bucket layer in front of the fixed window. It
// smooths sub-second spikes that a per-minute counter cannot see. It shares
// the fixed-window scope: one bucket per gate, not per caller.
type Burst struct {
	limiter *rate.Limiter
}

// NewBurst creates a burst limiter allowing perSecond sustained calls with
// the given burst capacity. Non-positive values fall back to perSecond=10,
// burst=20.
func NewBurst(perSecond float64, burst int) *Burst {
	if perSecond <= 0 {
		perSecond = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &Burst{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow reports whether one more call fits the bucket right now.
func (b *Burst) Allow() bool {
	return b.limiter.Allow()
}
