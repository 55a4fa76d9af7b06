// Package limiter provides C8's shared rate limiter: a single mutex-guarded
// last-request timestamp, serializing the first instant of every request
// across all workers without bounding request duration. A token-bucket
// limiter (golang.org/x/time/rate) was considered and rejected — it would
// change the exact semantics this package preserves; see DESIGN.md.
package limiter

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum inter-request spacing shared by every
// worker in the scheduler's pool.
type RateLimiter struct {
	mu    sync.Mutex
	last  time.Time
	delay time.Duration
}

// New creates a RateLimiter with the given minimum delay between requests.
func New(delay time.Duration) *RateLimiter {
	if delay < 0 {
		delay = 0
	}
	return &RateLimiter{delay: delay}
}

// Wait blocks until at least delay has elapsed since the last acquire
// across all callers, then stamps now as the new last-request time.
// Returns ctx.Err() if ctx is canceled while waiting.
//
// The mutex is held for the entire wait+stamp sequence, not just the stamp:
// releasing it during the sleep would let two callers read the same stale
// r.last, sleep the same duration, and both stamp without ever serializing
// against each other.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		now := time.Now()
		wait := r.delay - now.Sub(r.last)
		if wait <= 0 {
			r.last = now
			return nil
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
