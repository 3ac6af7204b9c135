package gateway

import (
	"context"

	"github.com/contextify/contextify/internal/domain/ratelimit"
	"github.com/contextify/contextify/internal/domain/tool"
)

// RateLimitScope mirrors ratelimit.Scope's naming but with the
// gateway's own key formatting (spec.md §4.9 uses "tenant:{id}" rather
// than the in-process pipeline's "scope:tenant:{id}").
type RateLimitScope string

const (
	ScopeGlobal     RateLimitScope = "global"
	ScopeTenant     RateLimitScope = "tenant"
	ScopeUser       RateLimitScope = "user"
	ScopeTool       RateLimitScope = "tool"
	ScopeTenantTool RateLimitScope = "tenantTool"
	ScopeUserTool   RateLimitScope = "userTool"
)

// RequestIdentity carries the per-call dimensions read from headers.
type RequestIdentity struct {
	TenantID     string
	UserID       string
	ExternalName string
}

const anonymous = "anonymous"

// Key derives the gateway limiter cache key for a scope, following the
// literal formats spec.md §4.9 names.
func Key(scope RateLimitScope, id RequestIdentity) string {
	tenant := id.TenantID
	if tenant == "" {
		tenant = anonymous
	}
	user := id.UserID
	if user == "" {
		user = anonymous
	}
	switch scope {
	case ScopeGlobal:
		return "global"
	case ScopeTenant:
		return "tenant:" + tenant
	case ScopeUser:
		return "user:" + tenant + ":" + user
	case ScopeTool:
		return "tool:" + id.ExternalName
	case ScopeTenantTool:
		return "tenant-tool:" + tenant + ":" + id.ExternalName
	case ScopeUserTool:
		return "user-tool:" + tenant + ":" + user + ":" + id.ExternalName
	default:
		return "unknown:" + tenant
	}
}

// RateLimitPolicy is the resolved limiter configuration for one tool
// name override (or the default), read by RateLimitMiddleware.
type RateLimitPolicy struct {
	Scope      RateLimitScope
	QueueLimit int
	Strategy   ratelimit.Config
}

// PolicySelector picks the applicable RateLimitPolicy for an external
// tool name: exact override match, else wildcard override, else
// default. A false second return means no policy applies and rate
// limiting is bypassed entirely for this call.
type PolicySelector interface {
	SelectPolicy(externalName string) (RateLimitPolicy, bool)
}

// RateLimitMiddleware enforces a gateway-wide limiter cache ahead of the
// Dispatcher (spec.md §4.9).
type RateLimitMiddleware struct {
	cache    ratelimit.LimiterCache
	policies PolicySelector
}

// NewRateLimitMiddleware constructs a RateLimitMiddleware over a shared
// limiter cache (in-memory or Redis-backed, both satisfy
// ratelimit.LimiterCache).
func NewRateLimitMiddleware(cache ratelimit.LimiterCache, policies PolicySelector) *RateLimitMiddleware {
	return &RateLimitMiddleware{cache: cache, policies: policies}
}

// Check returns a non-nil tool.Result only when the call must be
// denied; a nil result means the caller should proceed to dispatch.
func (m *RateLimitMiddleware) Check(ctx context.Context, id RequestIdentity) *tool.Result {
	policy, ok := m.policies.SelectPolicy(id.ExternalName)
	if !ok {
		return nil
	}

	key := Key(policy.Scope, id)
	decision := m.cache.Acquire(key, policy.QueueLimit)
	if decision.Allowed {
		return nil
	}

	retrySec := 0
	if decision.RetryAfter > 0 {
		retrySec = int(decision.RetryAfter.Seconds())
	}
	res := tool.ErrRateLimitedWithQuota("Rate limit exceeded for "+id.ExternalName, retrySec, policy.Strategy.Limit, policy.Strategy.Window.Milliseconds())
	return &res
}
