// Package ratelimit throttles outbound requests so a crawl stays under
// Instagram's request budget.
//
// TokenBucket wraps golang.org/x/time/rate. One limiter is shared by every
// job in a process, so concurrent crawls draw from the same budget.
//
//	limiter := ratelimit.NewPerMinute(60, 5)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // ctx cancelled
//	}
package ratelimit
