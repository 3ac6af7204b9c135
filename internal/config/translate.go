package config

import (
	"regexp"

	goredis "github.com/redis/go-redis/v9"

	"github.com/contextify/contextify/internal/adapter/outbound/ratelimitcache"
	"github.com/contextify/contextify/internal/domain/redaction"
	"github.com/contextify/contextify/internal/service"
)

// ToInProcessConfig converts the loaded Config into the in-process
// host's wiring struct.
func (c *Config) ToInProcessConfig() service.InProcessConfig {
	return service.InProcessConfig{
		ApplicationName:       c.Core.ApplicationName,
		ConcurrencyCacheSize:  c.Actions.MaxConcurrentActions,
		RateLimitCacheSize:    c.RateLimit.MaxCacheSize,
		RateLimitCacheTTL:     c.RateLimit.EntryExpirationDuration(),
		RateLimitQueueDefault: c.Actions.MaxQueueDepth,
		Redaction:             c.Redaction.ToRules(),
	}
}

// ToRules converts the configured field/pattern names into
// redaction.Rules. Pattern compile errors are silently skipped, the
// engine's own constructor revalidates and would error out a
// genuinely bad regex rather than half-apply it.
func (c RedactionConfig) ToRules() redaction.Rules {
	rules := redaction.Rules{}
	for _, f := range c.Fields {
		rules.Fields = append(rules.Fields, redaction.FieldRule{Name: f})
	}
	for _, p := range c.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			continue
		}
		rules.Patterns = append(rules.Patterns, redaction.PatternRule{Pattern: p})
	}
	return rules
}

// ToGatewayConfig converts the loaded Config into the gateway host's
// wiring struct.
func (c *Config) ToGatewayConfig() service.GatewayConfig {
	gw := service.GatewayConfig{
		ApplicationName:    c.Core.ApplicationName,
		Upstreams:          c.Gateway.ToUpstreams(),
		ToolPolicy:         c.Gateway.ToToolPolicyConfig(c.Policy.DenyByDefault),
		NamespaceSeparator: c.Gateway.ToolNameSeparator,
		RefreshInterval:    c.Gateway.CatalogRefreshDuration(),
		HealthInterval:     c.Gateway.HealthProbeDuration(),
		RateLimitCacheSize: c.RateLimit.MaxCacheSize,
		RateLimitCacheTTL:  c.RateLimit.EntryExpirationDuration(),
	}
	if !c.RateLimit.Enabled {
		return gw
	}
	if c.RateLimit.DefaultQuotaPolicy != nil {
		p := c.RateLimit.DefaultQuotaPolicy.ToGatewayRateLimitPolicy()
		gw.DefaultRateLimit = &p
	}
	for _, o := range c.RateLimit.Overrides {
		gw.RateLimitOverrides = append(gw.RateLimitOverrides, service.GatewayRateLimitRule{
			Pattern: o.Pattern,
			Policy:  o.Policy.ToGatewayRateLimitPolicy(),
		})
	}
	if c.RateLimit.Backend == "redis" && c.RateLimit.RedisAddr != "" && c.RateLimit.DefaultQuotaPolicy != nil {
		strategy := c.RateLimit.DefaultQuotaPolicy.ToRateLimitConfig()
		client := goredis.NewClient(&goredis.Options{Addr: c.RateLimit.RedisAddr})
		gw.Cache = ratelimitcache.NewRedisCache(client, strategy.Limit, strategy.Window, c.RateLimit.RedisKeyPrefix)
	}
	return gw
}
