package pipeline

import (
	"context"
	"time"

	"github.com/contextify/contextify/internal/domain/ratelimit"
	"github.com/contextify/contextify/internal/domain/tool"
)

// RateLimitAction enforces a per-scope limiter resolved from cache by a
// key the KeyFunc derives from ctx/inv. QueueLimit controls whether
// Acquire blocks (see ratelimit.Cache.Acquire). Limit/Window describe
// the quota being enforced, surfaced on denial so the inbound handler
// can set X-RateLimit-* response headers (spec.md §4.9).
type RateLimitAction struct {
	Cache      ratelimit.LimiterCache
	KeyFunc    func(ctx context.Context, inv Invocation) string
	QueueLimit int
	Limit      int
	Window     time.Duration
}

func (a *RateLimitAction) Order() int { return OrderRateLimit }

func (a *RateLimitAction) Applies(ctx context.Context, inv Invocation) bool {
	return a.Cache != nil && a.KeyFunc != nil
}

func (a *RateLimitAction) Invoke(ctx context.Context, inv Invocation, next Next) tool.Result {
	key := a.KeyFunc(ctx, inv)
	decision := a.Cache.Acquire(key, a.QueueLimit)
	if !decision.Allowed {
		retrySec := 0
		if decision.RetryAfter > 0 {
			retrySec = int(decision.RetryAfter.Seconds())
		}
		return tool.ErrRateLimitedWithQuota("rate limit exceeded", retrySec, a.Limit, a.Window.Milliseconds())
	}
	return next(ctx)
}
