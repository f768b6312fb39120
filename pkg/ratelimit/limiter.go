package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"igcrawler/pkg/config"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx is done
	Wait(ctx context.Context) error
	// Reset restores the limiter to a full bucket
	Reset()
}

// TokenBucket is a token bucket limiter backed by golang.org/x/time/rate.
type TokenBucket struct {
	limit rate.Limit
	burst int

	mu  sync.RWMutex
	lim *rate.Limiter
}

// NewTokenBucket allows capacity requests per period, all of which may be
// spent in a burst.
func NewTokenBucket(capacity int, period time.Duration) *TokenBucket {
	if capacity <= 0 || period <= 0 {
		return NewUnlimited()
	}
	return newBucket(rate.Every(period/time.Duration(capacity)), capacity)
}

// NewPerMinute allows rpm requests per minute with the given burst.
func NewPerMinute(rpm, burst int) *TokenBucket {
	if rpm <= 0 {
		return NewUnlimited()
	}
	if burst <= 0 {
		burst = 1
	}
	return newBucket(rate.Limit(float64(rpm)/60.0), burst)
}

// NewUnlimited never blocks.
func NewUnlimited() *TokenBucket {
	return newBucket(rate.Inf, 1)
}

// FromConfig builds the request limiter shared by every crawl job.
func FromConfig(cfg config.RateLimitConfig) *TokenBucket {
	return NewPerMinute(cfg.RequestsPerMinute, cfg.BurstSize)
}

func newBucket(limit rate.Limit, burst int) *TokenBucket {
	return &TokenBucket{limit: limit, burst: burst, lim: rate.NewLimiter(limit, burst)}
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	return tb.current().Allow()
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.current().Wait(ctx)
}

// Reset refills the bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.lim = rate.NewLimiter(tb.limit, tb.burst)
}

func (tb *TokenBucket) current() *rate.Limiter {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	return tb.lim
}

// Burst returns the bucket capacity.
func (tb *TokenBucket) Burst() int {
	return tb.burst
}
