package limiter

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Advisory is a distributed, best-effort hint layer backed by Redis,
// consulted by the download worker alongside the SQL CAS in internal/queue.
// It is never authoritative: a record's real status lives in the index
// store, and losing the Redis connection degrades the worker to SQL-only behavior
// without correctness loss, only a possible loss of cross-process hinting.
//
// Adapted from internal/dispatcher/circuit_breaker.go's Redis-hash cooldown
// idiom (HSet/HGet with a TTL and exponential-backoff doubling), repurposed
// here to track "this (book,page,source) key was leased by some process
// recently" instead of "this AI provider/model is in cooldown".
type Advisory struct {
	rdb         *redis.Client
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// AdvisoryOptions configures the Advisory layer.
type AdvisoryOptions struct {
	RedisURL    string
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// NewAdvisory connects to Redis and returns an Advisory layer. Callers that
// cannot or do not want Redis simply skip constructing one — every consumer
// of *Advisory treats a nil receiver as "always allow, no hinting".
func NewAdvisory(opts AdvisoryOptions) (*Advisory, error) {
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 30 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 10 * time.Minute
	}
	ro, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(ro)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Advisory{rdb: c, baseBackoff: opts.BaseBackoff, maxBackoff: opts.MaxBackoff}, nil
}

func leaseKey(book, page int, source string) string {
	return fmt.Sprintf("lease:%s:%d:%d", source, book, page)
}

// MarkLeased records that this process is actively working a record, with a
// TTL matching the scheduler's stale-in-progress threshold. Other schedulers
// consulting IsLeased can use this to skip fetching a batch row a sibling
// process almost certainly already claimed via CAS, cutting down on wasted
// mark_in_progress round-trips under high worker-process fan-out.
func (a *Advisory) MarkLeased(ctx context.Context, book, page int, source string, ttl time.Duration) {
	if a == nil {
		return
	}
	_ = a.rdb.Set(ctx, leaseKey(book, page, source), time.Now().Unix(), ttl).Err()
}

// IsLeased reports whether another process recently marked this record
// leased. Always false for a nil receiver.
func (a *Advisory) IsLeased(ctx context.Context, book, page int, source string) bool {
	if a == nil {
		return false
	}
	n, err := a.rdb.Exists(ctx, leaseKey(book, page, source)).Result()
	return err == nil && n > 0
}

func cooldownKey(portal string) string  { return fmt.Sprintf("cb:portal:%s", portal) }
func attemptsKey(portal string) string  { return cooldownKey(portal) + ":attempts" }

// OpenCooldown records a portal-level soft cooldown (e.g. after a burst of
// timeouts), with exponential backoff doubling per consecutive open, capped
// at maxBackoff — mirroring circuit_breaker.go's OpenCircuitBreaker.
func (a *Advisory) OpenCooldown(ctx context.Context, portal string) {
	if a == nil {
		return
	}
	attempts, _ := a.rdb.Incr(ctx, attemptsKey(portal)).Result()
	if attempts < 1 {
		attempts = 1
	}
	d := a.baseBackoff * (1 << (attempts - 1))
	if d > a.maxBackoff {
		d = a.maxBackoff
	}
	_ = a.rdb.Set(ctx, cooldownKey(portal), time.Now().Add(d).Unix(), d).Err()
}

// IsCoolingDown reports whether a portal is in a recorded soft cooldown.
func (a *Advisory) IsCoolingDown(ctx context.Context, portal string) bool {
	if a == nil {
		return false
	}
	ts, err := a.rdb.Get(ctx, cooldownKey(portal)).Int64()
	if err != nil {
		return false
	}
	return time.Now().Unix() < ts
}

// CloseCooldown clears a portal's cooldown state, called after a successful
// fetch.
func (a *Advisory) CloseCooldown(ctx context.Context, portal string) {
	if a == nil {
		return
	}
	_ = a.rdb.Del(ctx, cooldownKey(portal), attemptsKey(portal)).Err()
}

// Close releases the underlying Redis client. Safe to call on a nil Advisory.
func (a *Advisory) Close() error {
	if a == nil {
		return nil
	}
	return a.rdb.Close()
}
