// Package ratelimiter wraps golang.org/x/time/rate with the small
// surface MeshFS needs: a token bucket that can either reject or wait.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token-bucket limiter safe for concurrent use.
// Tokens accrue at the sustained rate; burst is the bucket capacity.
type RateLimiter struct {
	limiter *rate.Limiter
}

// effectively unlimited; rate.Inf has awkward burst semantics
const unlimited = 1_000_000_000

// New creates a limiter allowing requestsPerSecond sustained and burst
// immediate requests. A zero rate disables limiting.
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		requestsPerSecond = unlimited
		burst = unlimited
	}
	if burst == 0 {
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow consumes a token if one is available and reports whether the
// request may proceed. It never blocks.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens reports the tokens currently in the bucket, for monitoring.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
