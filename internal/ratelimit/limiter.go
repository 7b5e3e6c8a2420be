// Package ratelimit paces outbound autodiscovery requests.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// jitterFactor bounds the random spread applied to each wait.
const jitterFactor = 0.20

// Limiter is a token bucket whose waits are spread by ±20% jitter.
type Limiter struct {
	inner *rate.Limiter
}

// New creates a Limiter allowing rps requests per second with the given burst.
// A non-positive rps yields nil, which callers treat as "unlimited".
func New(rps float64, burst int) *Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{inner: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a token is available or ctx is done. A nil Limiter never
// blocks.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	res := l.inner.Reserve()
	if !res.OK() {
		return ctx.Err()
	}

	delay := res.Delay()
	if delay <= 0 {
		return nil
	}
	jitter := time.Duration(float64(delay) * jitterFactor * (rand.Float64()*2 - 1)) //nolint:gosec // non-cryptographic random is fine for jitter
	delay = max(0, delay+jitter)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		res.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
