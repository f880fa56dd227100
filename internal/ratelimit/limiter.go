// Package ratelimit throttles data API calls with a token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/datalab/connectctl/internal/constants"
)

// warnAfter is the expected wait above which a throttling notice is logged.
const warnAfter = 2 * time.Second

// RateLimiter implements a token bucket rate limiter.
// It allows bursts up to burst requests, then refills at rps tokens/second.
type RateLimiter struct {
	limiter *rate.Limiter

	mu           sync.Mutex
	lastWarnTime time.Time
}

// NewRateLimiter creates a new rate limiter. A non-positive rps disables
// throttling.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// NewDefaultRateLimiter uses the client-side default ceiling for the data API.
func NewDefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(constants.DefaultRequestsPerSecond, constants.DefaultRequestBurst)
}

// Wait blocks until a token is available or ctx is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	r := rl.limiter.Reserve()
	if !r.OK() {
		return rl.limiter.Wait(ctx)
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}

	if delay > warnAfter {
		rl.mu.Lock()
		// Only warn every 10 seconds to avoid spam
		if time.Since(rl.lastWarnTime) > 10*time.Second {
			log.Warn().Msgf("Rate limited: waiting ~%.1fs for API capacity", delay.Seconds())
			rl.lastWarnTime = time.Now()
		}
		rl.mu.Unlock()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Allow reports whether a request may proceed now, consuming a token if so.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// GetCurrentTokens returns the number of tokens currently available.
func (rl *RateLimiter) GetCurrentTokens() float64 {
	return rl.limiter.Tokens()
}
