// Package ratelimitcache provides a distributed, Redis-backed
// implementation of ratelimit.LimiterCache so a gateway with multiple
// replicas can share rate-limit state across processes (spec.md
// SPEC_FULL §4.9 SUPPLEMENT). The in-memory ratelimit.Cache remains the
// default for a single-process deployment.
package ratelimitcache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/contextify/contextify/internal/domain/ratelimit"
)

// fixedWindowScript atomically increments a per-key counter and sets
// its expiry on first increment, returning the post-increment count.
// Running the check-and-increment as a single script avoids a
// read-modify-write race between replicas sharing the same key.
const fixedWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

// RedisCache implements ratelimit.LimiterCache as a fixed-window
// counter per key, stored in Redis. It intentionally implements only
// the fixedWindow strategy: sliding-window and token-bucket semantics
// need either Lua-side clock state or a client library (e.g.
// redis_rate) this repo does not otherwise depend on, and a fixed
// window is the cheapest correct approximation across replicas.
type RedisCache struct {
	client      *redis.Client
	limit       int
	window      time.Duration
	script      *redis.Script
	keyPrefix   string
}

// NewRedisCache builds a RedisCache bound to a fixed limit/window pair.
// Distinct limits per tool are achieved by constructing one RedisCache
// per distinct policy, same as the in-memory cache's per-key Limiter
// construction.
func NewRedisCache(client *redis.Client, limit int, window time.Duration, keyPrefix string) *RedisCache {
	return &RedisCache{
		client:    client,
		limit:     limit,
		window:    window,
		script:    redis.NewScript(fixedWindowScript),
		keyPrefix: keyPrefix,
	}
}

// Acquire implements ratelimit.LimiterCache. queueLimit is accepted for
// interface symmetry with the in-memory cache but has no effect:
// blocking acquisition across a shared Redis-backed limiter would
// require a distributed queue this design does not attempt.
func (c *RedisCache) Acquire(key string, queueLimit int) ratelimit.Decision {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count, err := c.script.Run(ctx, c.client, []string{c.keyPrefix + key}, c.window.Milliseconds()).Int()
	if err != nil {
		// Fail open: a Redis outage should not take down tool dispatch.
		return ratelimit.Decision{Allowed: true}
	}

	if count > c.limit {
		ttl, ttlErr := c.client.PTTL(ctx, c.keyPrefix+key).Result()
		retry := c.window
		if ttlErr == nil && ttl > 0 {
			retry = ttl
		}
		return ratelimit.Decision{Allowed: false, RetryAfter: retry}
	}
	return ratelimit.Decision{Allowed: true, RemainingHint: c.limit - count}
}
