package service

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/contextify/contextify/internal/adapter/inbound/rpc"
	"github.com/contextify/contextify/internal/domain/auth"
	"github.com/contextify/contextify/internal/domain/gateway"
	"github.com/contextify/contextify/internal/domain/ratelimit"
	"github.com/contextify/contextify/internal/domain/tool"
	"github.com/contextify/contextify/pkg/wire"
)

// DefaultGatewayRefreshInterval is how often the gateway rebuilds its
// aggregated tool catalog from every upstream's tools/list (spec.md
// §4.5).
const DefaultGatewayRefreshInterval = 30 * time.Second

// DefaultGatewayHealthInterval is how often the gateway re-probes every
// upstream's health independent of catalog rebuilds (spec.md §4.7).
const DefaultGatewayHealthInterval = 10 * time.Second

// GatewayRateLimitRule binds one external-tool-name pattern (exact or a
// single '*' wildcard, matching gateway.ToolPolicy's own glob rule) to a
// RateLimitPolicy override.
type GatewayRateLimitRule struct {
	Pattern string
	Policy  gateway.RateLimitPolicy
}

// GatewayConfig bundles the knobs the gateway host needs beyond the
// upstream list itself (spec.md §6 "Gateway config").
type GatewayConfig struct {
	ApplicationName     string
	Upstreams           []gateway.Upstream
	ToolPolicy          gateway.ToolPolicyConfig
	NamespaceSeparator  string
	RefreshInterval     time.Duration
	HealthInterval      time.Duration
	RateLimitCacheSize  int
	RateLimitCacheTTL   time.Duration
	DefaultRateLimit    *gateway.RateLimitPolicy
	RateLimitOverrides  []GatewayRateLimitRule

	// Cache overrides the rate-limit backing store. Nil builds the
	// default in-memory LRU+TTL ratelimit.Cache; set it to a
	// distributed implementation (e.g. ratelimitcache.RedisCache) to
	// share quotas across gateway replicas.
	Cache ratelimit.LimiterCache
}

// GatewayService implements rpc.Service + rpc.Manifest + rpc.Diagnostics
// by aggregating tools/list across every enabled upstream and forwarding
// tools/call to the owning upstream (spec.md §4.5-§4.9).
type GatewayService struct {
	cfg        GatewayConfig
	registry   *gateway.StaticRegistry
	aggregator *gateway.Aggregator
	health     *gateway.HealthMonitor
	dispatcher *gateway.Dispatcher
	rateLimit  *gateway.RateLimitMiddleware
	log        *slog.Logger

	snapshot atomic.Pointer[gateway.CatalogSnapshot]
}

// NewGatewayService wires a gateway.Aggregator, HealthMonitor,
// Dispatcher and RateLimitMiddleware over the given upstream list and
// client, and performs one synchronous catalog build + health probe so
// the returned service is immediately queryable.
func NewGatewayService(client gatewayClient, cfg GatewayConfig, logger *slog.Logger) *GatewayService {
	if logger == nil {
		logger = slog.Default()
	}
	registry := gateway.NewStaticRegistry(cfg.Upstreams)
	toolPolicy := gateway.NewToolPolicy(cfg.ToolPolicy)
	aggregator := gateway.NewAggregator(registry, client, toolPolicy, cfg.NamespaceSeparator, logger)
	health := gateway.NewHealthMonitor(client, client)
	dispatcher := gateway.NewDispatcher(toolPolicy, registry, health, client)

	s := &GatewayService{
		cfg:        cfg,
		registry:   registry,
		aggregator: aggregator,
		health:     health,
		dispatcher: dispatcher,
		log:        logger,
	}

	if cfg.DefaultRateLimit != nil || len(cfg.RateLimitOverrides) > 0 {
		selector := newGatewayPolicySelector(cfg)
		rateLimitCache := cfg.Cache
		if rateLimitCache == nil {
			rateLimitCache = ratelimit.NewCache(cfg.RateLimitCacheSize, cfg.RateLimitCacheTTL, func(key string) ratelimit.Limiter {
				return ratelimit.NewLimiter(selector.configForKey(key), nil)
			})
		}
		s.rateLimit = gateway.NewRateLimitMiddleware(rateLimitCache, selector)
	}

	initial := aggregator.Build(context.Background())
	s.snapshot.Store(&initial)
	health.ProbeAll(context.Background(), cfg.Upstreams)
	return s
}

// gatewayClient is the union of outbound ports the gateway host needs
// from the upstream MCP client (tools/list probing, tools/call
// forwarding, manifest health probing); gatewayclient.Client satisfies
// it directly.
type gatewayClient = interface {
	gateway.ToolsListClient
	gateway.ToolsCallClient
	gateway.ManifestProbe
}

// Run starts the background catalog-rebuild and health-probe loops and
// blocks until ctx is cancelled.
func (s *GatewayService) Run(ctx context.Context) {
	refresh := s.cfg.RefreshInterval
	if refresh <= 0 {
		refresh = DefaultGatewayRefreshInterval
	}
	healthInterval := s.cfg.HealthInterval
	if healthInterval <= 0 {
		healthInterval = DefaultGatewayHealthInterval
	}

	catalogTicker := time.NewTicker(refresh)
	healthTicker := time.NewTicker(healthInterval)
	defer catalogTicker.Stop()
	defer healthTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-catalogTicker.C:
			snap := s.aggregator.Build(ctx)
			s.snapshot.Store(&snap)
		case <-healthTicker.C:
			s.health.ProbeAll(ctx, s.registry.Enabled())
		}
	}
}

func (s *GatewayService) Initialize(ctx context.Context) rpc.InitializeResult {
	return rpc.InitializeResult{ProtocolVersion: wire.ProtocolVersion, ServerName: s.cfg.ApplicationName}
}

func (s *GatewayService) ToolsList(ctx context.Context) []rpc.ToolSummary {
	snap := *s.snapshot.Load()
	routes := snap.SortedRoutes()
	out := make([]rpc.ToolSummary, 0, len(routes))
	for _, r := range routes {
		out = append(out, rpc.ToolSummary{Name: r.ExternalToolName, Description: r.Description, InputSchema: r.InputSchemaJSON})
	}
	return out
}

func (s *GatewayService) ToolsCall(ctx context.Context, name string, args map[string]any, ac *auth.Context) tool.Result {
	if s.rateLimit != nil {
		id := gateway.RequestIdentity{ExternalName: name}
		if ac != nil {
			id.TenantID = ac.TenantID
			id.UserID = ac.UserID
		}
		if res := s.rateLimit.Check(ctx, id); res != nil {
			return *res
		}
	}
	snap := *s.snapshot.Load()
	return s.dispatcher.Dispatch(ctx, snap, name, args, ac)
}

func (s *GatewayService) Manifest(ctx context.Context) any {
	snap := *s.snapshot.Load()
	return map[string]any{
		"name":         s.cfg.ApplicationName,
		"version":      wire.ProtocolVersion,
		"capabilities": map[string]any{"tools": map[string]any{}},
		"toolCount":    len(snap.RoutesByExternal),
		"digest":       snap.Digest,
	}
}

// Diagnostics exposes the per-upstream health table and route count,
// the operational detail spec.md §6 reserves for the gateway host only.
func (s *GatewayService) Diagnostics(ctx context.Context) any {
	snap := *s.snapshot.Load()
	upstreams := make([]map[string]any, 0, len(snap.UpstreamStatuses))
	for _, st := range snap.UpstreamStatuses {
		entry := map[string]any{
			"name":         st.Name,
			"healthy":      st.Healthy,
			"lastProbeUTC": st.LastProbeUTC,
		}
		if st.LatencyMs != nil {
			entry["latencyMs"] = *st.LatencyMs
		}
		if st.ToolCount != nil {
			entry["toolCount"] = *st.ToolCount
		}
		if st.Error != "" {
			entry["error"] = st.Error
			entry["failure"] = string(st.Failure)
		}
		upstreams = append(upstreams, entry)
	}
	return map[string]any{
		"catalogDigest":   snap.Digest,
		"catalogBuiltUTC": snap.CreatedUTC,
		"routeCount":      len(snap.RoutesByExternal),
		"upstreams":       upstreams,
	}
}

// gatewayPolicySelector implements gateway.PolicySelector over a
// default policy plus an ordered list of pattern overrides, reusing the
// same single-'*' glob rule gateway.ToolPolicy applies to allow/deny
// patterns.
type gatewayPolicySelector struct {
	def       *gateway.RateLimitPolicy
	overrides []compiledRateLimitRule
}

type compiledRateLimitRule struct {
	prefix  string
	suffix  string
	hasGlob bool
	literal string
	policy  gateway.RateLimitPolicy
}

func newGatewayPolicySelector(cfg GatewayConfig) *gatewayPolicySelector {
	sel := &gatewayPolicySelector{def: cfg.DefaultRateLimit}
	for _, rule := range cfg.RateLimitOverrides {
		sel.overrides = append(sel.overrides, compileRateLimitRule(rule))
	}
	return sel
}

func compileRateLimitRule(rule GatewayRateLimitRule) compiledRateLimitRule {
	idx := strings.IndexByte(rule.Pattern, '*')
	if idx < 0 {
		return compiledRateLimitRule{literal: rule.Pattern, policy: rule.Policy}
	}
	return compiledRateLimitRule{prefix: rule.Pattern[:idx], suffix: rule.Pattern[idx+1:], hasGlob: true, policy: rule.Policy}
}

func (r compiledRateLimitRule) matches(name string) bool {
	if !r.hasGlob {
		return r.literal == name
	}
	if len(name) < len(r.prefix)+len(r.suffix) {
		return false
	}
	return strings.HasPrefix(name, r.prefix) && strings.HasSuffix(name, r.suffix)
}

// SelectPolicy implements gateway.PolicySelector: an exact override
// match wins, else the first matching wildcard override in list order,
// else the default policy, else rate limiting is bypassed.
func (s *gatewayPolicySelector) SelectPolicy(externalName string) (gateway.RateLimitPolicy, bool) {
	for _, rule := range s.overrides {
		if !rule.hasGlob && rule.matches(externalName) {
			return rule.policy, true
		}
	}
	for _, rule := range s.overrides {
		if rule.hasGlob && rule.matches(externalName) {
			return rule.policy, true
		}
	}
	if s.def != nil {
		return *s.def, true
	}
	return gateway.RateLimitPolicy{}, false
}

// configForKey recovers the ratelimit.Config that should back a given
// cache key on a cache miss. Keys produced by gateway.Key embed the
// external tool name for every per-tool scope ("tool:", "tenant-tool:",
// "user-tool:"), so the applicable override can be re-selected by name;
// the remaining scopes (global/tenant/user) are deliberately shared
// across every tool that resolves to them, so the default policy's
// strategy applies uniformly.
func (s *gatewayPolicySelector) configForKey(key string) ratelimit.Config {
	var policy gateway.RateLimitPolicy
	var ok bool
	switch {
	case strings.HasPrefix(key, "tool:"):
		policy, ok = s.SelectPolicy(strings.TrimPrefix(key, "tool:"))
	case strings.HasPrefix(key, "tenant-tool:"):
		policy, ok = s.SelectPolicy(lastSegment(strings.TrimPrefix(key, "tenant-tool:")))
	case strings.HasPrefix(key, "user-tool:"):
		policy, ok = s.SelectPolicy(lastSegment(strings.TrimPrefix(key, "user-tool:")))
	default:
		if s.def != nil {
			policy, ok = *s.def, true
		}
	}
	if !ok {
		return ratelimit.Config{Strategy: ratelimit.StrategyFixedWindow, Limit: 1 << 30, Window: time.Minute}
	}
	return policy.Strategy
}

// lastSegment returns the substring after the final ':' separator, the
// external tool name portion of a "tenant:name" / "tenant:user:name"
// style key suffix.
func lastSegment(s string) string {
	if idx := strings.LastIndexByte(s, ':'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}
