package forge

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle pre-emptively delays outbound forge calls as the client's
// known remaining quota approaches zero, ("observe rate
// limits by pre-emptively delaying when remaining is near zero"). It
// wraps golang.org/x/time/rate rather than reacting only after a 429,
// since the forge communicates remaining-quota headers on every response.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle builds a Throttle that allows burst requests up to burst
// and refills at ratePerSecond thereafter.
func NewThrottle(ratePerSecond float64, burst int) *Throttle {
	return &Throttle{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a request may proceed or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// Adjust reacts to a freshly observed RateLimit window: when remaining
// quota is low relative to the window, the refill rate is narrowed so
// the client naturally spreads remaining calls out until ResetAt instead
// of bursting into a 429.
func (t *Throttle) Adjust(rl RateLimit, now time.Time) {
	if rl.Remaining <= 0 {
		wait := rl.ResetAt.Sub(now)
		if wait < 0 {
			wait = 0
		}
		t.limiter.SetLimit(rate.Limit(0))
		t.limiter.SetLimitAt(rl.ResetAt, rate.Every(time.Second))
		return
	}
	window := rl.ResetAt.Sub(now)
	if window <= 0 {
		return
	}
	safe := float64(rl.Remaining) / window.Seconds()
	t.limiter.SetLimit(rate.Limit(safe))
}
