// Package ratelimit implements the fixedWindow/slidingWindow/tokenBucket
// limiter strategies and the bounded LRU+TTL cache that holds them per
// string key (Key builds the scope-based "scope:..." keys) (spec.md
// §4.3, §4.9).
package ratelimit

import "time"

// Decision is the result of an Allow check.
type Decision struct {
	Allowed       bool
	RetryAfter    time.Duration
	RemainingHint int
}

// Limiter is satisfied by each concrete strategy (fixed window, sliding
// window, token bucket). QueueOrder is always OldestFirst per spec.md
// §4.3; a Limiter's Allow call either returns immediately (queueLimit=0,
// non-blocking tryAcquire) or blocks up to an internal timeout
// (queueLimit>0, acquire) — that choice is made by the caller via
// AllowNow/AllowBlocking below, not by the Limiter itself.
type Limiter interface {
	// AllowNow performs a non-blocking permit check.
	AllowNow() Decision
}

// BlockingLimiter is optionally satisfied by strategies that support a
// queued acquire with an internal timeout, used when queueLimit > 0.
type BlockingLimiter interface {
	Limiter
	AllowBlocking(maxWait time.Duration) Decision
}

// LimiterCache is the surface both the in-memory Cache and a
// distributed (Redis-backed) cache implementation satisfy, letting a
// gateway host pick either behind one interface (spec.md SPEC_FULL
// §4.9 SUPPLEMENT: distributed rate limiting for replica deployments).
type LimiterCache interface {
	Acquire(key string, queueLimit int) Decision
}
