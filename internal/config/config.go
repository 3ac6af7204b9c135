// Package config provides the configuration schema for Contextify: the
// in-process tool host and the multi-upstream gateway host share one
// document, grouped the way spec.md §6 groups it (core, policy,
// actions/limits, gateway, rate limit, transport).
package config

import (
	"time"

	"github.com/contextify/contextify/internal/domain/gateway"
	"github.com/contextify/contextify/internal/domain/policy"
	"github.com/contextify/contextify/internal/domain/ratelimit"
)

// TransportMode selects which wire transports a host exposes.
type TransportMode string

const (
	TransportAuto TransportMode = "auto"
	TransportHTTP TransportMode = "http"
	TransportStdio TransportMode = "stdio"
	TransportBoth TransportMode = "both"
)

// Config is the top-level configuration for a contextify host (in-process
// or gateway).
type Config struct {
	Core      CoreConfig      `yaml:"core" mapstructure:"core"`
	Policy    PolicyConfig    `yaml:"policy" mapstructure:"policy"`
	Actions   ActionsConfig   `yaml:"actions" mapstructure:"actions"`
	Gateway   GatewayConfig   `yaml:"gateway" mapstructure:"gateway"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Transport TransportConfig `yaml:"transport" mapstructure:"transport"`
	Redaction RedactionConfig `yaml:"redaction" mapstructure:"redaction"`
}

// RedactionConfig carries the field-name and pattern rules applied to
// tool results before they reach a caller (SPEC_FULL.md supplement
// grounded on the in-process pipeline's redaction.Engine).
type RedactionConfig struct {
	Fields   []string `yaml:"fields" mapstructure:"fields"`
	Patterns []string `yaml:"patterns" mapstructure:"patterns"`
}

// CoreConfig carries the options common to any host (spec.md §6 "Core").
type CoreConfig struct {
	TransportMode        TransportMode `yaml:"transport_mode" mapstructure:"transport_mode" validate:"omitempty,oneof=auto http stdio both"`
	ApplicationName      string        `yaml:"application_name" mapstructure:"application_name"`
	ApplicationVersion   string        `yaml:"application_version" mapstructure:"application_version"`
	EnableDebugEndpoints bool          `yaml:"enable_debug_endpoints" mapstructure:"enable_debug_endpoints"`
	HTTPAddr             string        `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`
	LogLevel             string        `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// PolicyConfig carries the coarse allow/deny bootstrap policy applied
// when no richer policy.Document is supplied by an external source
// (spec.md §6 "Policy"; the external policy source itself is a
// non-goal, per spec.md §1). PolicySourceFile/CandidateSourceFile point
// at the standalone file-backed stand-ins for those external
// collaborators (FilePolicySource/FileCandidateSource); leave either
// empty to fall back to BootstrapPolicyDocument / an empty candidate
// set.
type PolicyConfig struct {
	DenyByDefault                 bool     `yaml:"deny_by_default" mapstructure:"deny_by_default"`
	AllowedTools                  []string `yaml:"allowed_tools" mapstructure:"allowed_tools"`
	DeniedTools                   []string `yaml:"denied_tools" mapstructure:"denied_tools"`
	AllowedNamespaces             []string `yaml:"allowed_namespaces" mapstructure:"allowed_namespaces"`
	DenyOnPolicyEvaluationFailure bool     `yaml:"deny_on_policy_evaluation_failure" mapstructure:"deny_on_policy_evaluation_failure"`
	PolicySourceFile              string   `yaml:"policy_source_file" mapstructure:"policy_source_file"`
	CandidateSourceFile           string   `yaml:"candidate_source_file" mapstructure:"candidate_source_file"`
}

// ActionsConfig carries the default per-invocation limits applied to
// every tool unless a policy entry overrides them (spec.md §6
// "Actions/limits"), plus the backend the in-process executor dispatches
// HTTP calls against.
type ActionsConfig struct {
	BackendBaseURL                 string `yaml:"backend_base_url" mapstructure:"backend_base_url" validate:"omitempty,url"`
	DefaultExecutionTimeoutSeconds int64  `yaml:"default_execution_timeout_seconds" mapstructure:"default_execution_timeout_seconds" validate:"omitempty,min=1"`
	MaxConcurrentActions           int    `yaml:"max_concurrent_actions" mapstructure:"max_concurrent_actions" validate:"omitempty,min=1"`
	RejectWhenOverCapacity         bool   `yaml:"reject_when_over_capacity" mapstructure:"reject_when_over_capacity"`
	MaxQueueDepth                  int    `yaml:"max_queue_depth" mapstructure:"max_queue_depth" validate:"omitempty,min=0"`
	EnableRetry                    bool   `yaml:"enable_retry" mapstructure:"enable_retry"`
	MaxRetryAttempts               int    `yaml:"max_retry_attempts" mapstructure:"max_retry_attempts" validate:"omitempty,min=0"`
	RetryDelayMilliseconds         int64  `yaml:"retry_delay_milliseconds" mapstructure:"retry_delay_milliseconds" validate:"omitempty,min=0"`
}

// UpstreamConfig describes one remote MCP server the gateway aggregates
// (spec.md §6 "Gateway: upstreams[]").
type UpstreamConfig struct {
	Name            string            `yaml:"name" mapstructure:"name" validate:"required"`
	NamespacePrefix string            `yaml:"namespace_prefix" mapstructure:"namespace_prefix"`
	MCPHTTPEndpoint string            `yaml:"mcp_http_endpoint" mapstructure:"mcp_http_endpoint" validate:"required,url"`
	Enabled         bool              `yaml:"enabled" mapstructure:"enabled"`
	RequestTimeout  string            `yaml:"request_timeout" mapstructure:"request_timeout" validate:"omitempty"`
	DefaultHeaders  map[string]string `yaml:"default_headers" mapstructure:"default_headers"`
}

// GatewayConfig carries the multi-upstream aggregation settings
// (spec.md §6 "Gateway").
type GatewayConfig struct {
	Upstreams              []UpstreamConfig `yaml:"upstreams" mapstructure:"upstreams" validate:"omitempty,dive"`
	ToolNameSeparator      string           `yaml:"tool_name_separator" mapstructure:"tool_name_separator"`
	AllowedToolPatterns    []string         `yaml:"allowed_tool_patterns" mapstructure:"allowed_tool_patterns"`
	DeniedToolPatterns     []string         `yaml:"denied_tool_patterns" mapstructure:"denied_tool_patterns"`
	CatalogRefreshInterval string           `yaml:"catalog_refresh_interval" mapstructure:"catalog_refresh_interval" validate:"omitempty"`
	HealthProbeInterval    string           `yaml:"health_probe_interval" mapstructure:"health_probe_interval" validate:"omitempty"`
}

// QuotaPolicyConfig is one rate-limit quota definition, shared by the
// default policy and every pattern override (spec.md §6 "Rate limit:
// defaultQuotaPolicy, overrides").
type QuotaPolicyConfig struct {
	Strategy        string `yaml:"strategy" mapstructure:"strategy" validate:"omitempty,oneof=fixedWindow slidingWindow tokenBucket"`
	PermitLimit     int    `yaml:"permit_limit" mapstructure:"permit_limit" validate:"omitempty,min=1"`
	WindowMs        int64  `yaml:"window_ms" mapstructure:"window_ms" validate:"omitempty,min=1"`
	RefillPeriodMs  int64  `yaml:"refill_period_ms" mapstructure:"refill_period_ms" validate:"omitempty,min=1"`
	TokensPerPeriod int    `yaml:"tokens_per_period" mapstructure:"tokens_per_period" validate:"omitempty,min=1"`
	QueueLimit      int    `yaml:"queue_limit" mapstructure:"queue_limit" validate:"omitempty,min=0"`
	Scope           string `yaml:"scope" mapstructure:"scope" validate:"omitempty,oneof=global tenant user tool tenantTool userTool"`
}

// RateLimitOverrideConfig binds one external-tool-name pattern to a
// QuotaPolicyConfig.
type RateLimitOverrideConfig struct {
	Pattern string            `yaml:"pattern" mapstructure:"pattern" validate:"required"`
	Policy  QuotaPolicyConfig `yaml:"policy" mapstructure:"policy"`
}

// RateLimitConfig carries the rate-limit cache and default/override
// quota settings (spec.md §6 "Rate limit").
type RateLimitConfig struct {
	Enabled            bool                      `yaml:"enabled" mapstructure:"enabled"`
	DefaultQuotaPolicy *QuotaPolicyConfig         `yaml:"default_quota_policy" mapstructure:"default_quota_policy"`
	Overrides          []RateLimitOverrideConfig  `yaml:"overrides" mapstructure:"overrides" validate:"omitempty,dive"`
	MaxCacheSize       int                        `yaml:"max_cache_size" mapstructure:"max_cache_size" validate:"omitempty,min=1"`
	CleanupInterval    string                     `yaml:"cleanup_interval" mapstructure:"cleanup_interval" validate:"omitempty"`
	EntryExpiration    string                     `yaml:"entry_expiration" mapstructure:"entry_expiration" validate:"omitempty"`

	// Backend selects the LimiterCache the gateway host enforces quotas
	// with. "memory" (default) is the in-process bounded LRU+TTL cache;
	// "redis" shares counters across gateway replicas via RedisAddr
	// (spec.md SPEC_FULL §4.9 SUPPLEMENT). Only the default quota
	// policy's fixed-window strategy is honored under "redis" — see
	// ratelimitcache.RedisCache's own limitation.
	Backend        string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=memory redis"`
	RedisAddr      string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisKeyPrefix string `yaml:"redis_key_prefix" mapstructure:"redis_key_prefix"`
}

// TransportConfig carries the JSON-RPC surface's request validation
// limits (spec.md §6 "Transport").
type TransportConfig struct {
	MaxRequestBodyBytes          int64  `yaml:"max_request_body_bytes" mapstructure:"max_request_body_bytes" validate:"omitempty,min=1"`
	MaxArgumentsJSONDepth        int    `yaml:"max_arguments_json_depth" mapstructure:"max_arguments_json_depth" validate:"omitempty,min=1"`
	MaxArgumentsPropertyCount    int    `yaml:"max_arguments_property_count" mapstructure:"max_arguments_property_count" validate:"omitempty,min=1"`
	IncludeCorrelationIDInErrors bool   `yaml:"include_correlation_id_in_errors" mapstructure:"include_correlation_id_in_errors"`
	TenantIDHeader               string `yaml:"tenant_id_header" mapstructure:"tenant_id_header"`
	UserIDHeader                 string `yaml:"user_id_header" mapstructure:"user_id_header"`
}

// SetDefaults applies conservative localhost-first defaults to every
// section left unset.
func (c *Config) SetDefaults() {
	if c.Core.TransportMode == "" {
		c.Core.TransportMode = TransportAuto
	}
	if c.Core.ApplicationName == "" {
		c.Core.ApplicationName = "contextify"
	}
	if c.Core.HTTPAddr == "" {
		c.Core.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Core.LogLevel == "" {
		c.Core.LogLevel = "info"
	}

	if c.Actions.BackendBaseURL == "" {
		c.Actions.BackendBaseURL = "http://127.0.0.1:9090"
	}
	if c.Actions.DefaultExecutionTimeoutSeconds == 0 {
		c.Actions.DefaultExecutionTimeoutSeconds = 30
	}
	if c.Actions.MaxConcurrentActions == 0 {
		c.Actions.MaxConcurrentActions = 16
	}
	if c.Actions.MaxRetryAttempts == 0 && c.Actions.EnableRetry {
		c.Actions.MaxRetryAttempts = 2
	}
	if c.Actions.RetryDelayMilliseconds == 0 && c.Actions.EnableRetry {
		c.Actions.RetryDelayMilliseconds = 200
	}

	if c.Gateway.ToolNameSeparator == "" {
		c.Gateway.ToolNameSeparator = "."
	}
	if c.Gateway.CatalogRefreshInterval == "" {
		c.Gateway.CatalogRefreshInterval = "30s"
	}
	if c.Gateway.HealthProbeInterval == "" {
		c.Gateway.HealthProbeInterval = "10s"
	}

	if c.RateLimit.MaxCacheSize == 0 {
		c.RateLimit.MaxCacheSize = 10_000
	}
	if c.RateLimit.CleanupInterval == "" {
		c.RateLimit.CleanupInterval = "5m"
	}
	if c.RateLimit.EntryExpiration == "" {
		c.RateLimit.EntryExpiration = "10m"
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "memory"
	}
	if c.RateLimit.RedisKeyPrefix == "" {
		c.RateLimit.RedisKeyPrefix = "contextify:ratelimit:"
	}

	if c.Transport.MaxRequestBodyBytes == 0 {
		c.Transport.MaxRequestBodyBytes = 1 << 20
	}
	if c.Transport.MaxArgumentsJSONDepth == 0 {
		c.Transport.MaxArgumentsJSONDepth = 16
	}
	if c.Transport.MaxArgumentsPropertyCount == 0 {
		c.Transport.MaxArgumentsPropertyCount = 256
	}
	if c.Transport.TenantIDHeader == "" {
		c.Transport.TenantIDHeader = "X-Tenant-Id"
	}
	if c.Transport.UserIDHeader == "" {
		c.Transport.UserIDHeader = "X-User-Id"
	}
}

// durationOr parses s as a duration, falling back to def on an empty or
// unparseable string.
func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// ExecutionTimeout returns the default per-invocation timeout as a
// time.Duration.
func (c ActionsConfig) ExecutionTimeout() time.Duration {
	return time.Duration(c.DefaultExecutionTimeoutSeconds) * time.Second
}

// CatalogRefreshDuration parses GatewayConfig.CatalogRefreshInterval.
func (c GatewayConfig) CatalogRefreshDuration() time.Duration {
	return durationOr(c.CatalogRefreshInterval, 30*time.Second)
}

// HealthProbeDuration parses GatewayConfig.HealthProbeInterval.
func (c GatewayConfig) HealthProbeDuration() time.Duration {
	return durationOr(c.HealthProbeInterval, 10*time.Second)
}

// CleanupDuration parses RateLimitConfig.CleanupInterval.
func (c RateLimitConfig) CleanupDuration() time.Duration {
	return durationOr(c.CleanupInterval, 5*time.Minute)
}

// EntryExpirationDuration parses RateLimitConfig.EntryExpiration.
func (c RateLimitConfig) EntryExpirationDuration() time.Duration {
	return durationOr(c.EntryExpiration, 10*time.Minute)
}

// ToUpstream converts one UpstreamConfig into the gateway domain type.
func (u UpstreamConfig) ToUpstream() gateway.Upstream {
	return gateway.Upstream{
		UpstreamName:    u.Name,
		NamespacePrefix: u.NamespacePrefix,
		MCPHTTPEndpoint: u.MCPHTTPEndpoint,
		Enabled:         u.Enabled,
		RequestTimeout:  durationOr(u.RequestTimeout, 10*time.Second),
		DefaultHeaders:  u.DefaultHeaders,
	}
}

// ToUpstreams converts every configured upstream into gateway.Upstream.
func (c GatewayConfig) ToUpstreams() []gateway.Upstream {
	out := make([]gateway.Upstream, 0, len(c.Upstreams))
	for _, u := range c.Upstreams {
		out = append(out, u.ToUpstream())
	}
	return out
}

// ToToolPolicyConfig converts the allowed/denied tool pattern lists into
// the gateway domain's ToolPolicyConfig.
func (c GatewayConfig) ToToolPolicyConfig(denyByDefault bool) gateway.ToolPolicyConfig {
	return gateway.ToolPolicyConfig{
		AllowedPatterns: c.AllowedToolPatterns,
		DeniedPatterns:  c.DeniedToolPatterns,
		DenyByDefault:   denyByDefault,
	}
}

// ToRateLimitConfig converts a QuotaPolicyConfig into a
// ratelimit.Config, consulted once per cache key on a cache miss.
func (q QuotaPolicyConfig) ToRateLimitConfig() ratelimit.Config {
	strategy := ratelimit.StrategyKind(q.Strategy)
	if strategy == "" {
		strategy = ratelimit.StrategyFixedWindow
	}
	switch strategy {
	case ratelimit.StrategyTokenBucket:
		return ratelimit.Config{
			Strategy: strategy,
			Limit:    q.TokensPerPeriod,
			Window:   time.Duration(q.RefillPeriodMs) * time.Millisecond,
			Burst:    q.PermitLimit,
		}
	default:
		return ratelimit.Config{Strategy: strategy, Limit: q.PermitLimit, Window: time.Duration(q.WindowMs) * time.Millisecond}
	}
}

// ToGatewayRateLimitPolicy converts a QuotaPolicyConfig into the
// gateway domain's RateLimitPolicy.
func (q QuotaPolicyConfig) ToGatewayRateLimitPolicy() gateway.RateLimitPolicy {
	scope := gateway.RateLimitScope(q.Scope)
	if scope == "" {
		scope = gateway.ScopeTool
	}
	return gateway.RateLimitPolicy{Scope: scope, QueueLimit: q.QueueLimit, Strategy: q.ToRateLimitConfig()}
}

// ToPolicySpec converts a QuotaPolicyConfig into the in-process
// pipeline's policy.RateLimitSpec.
func (q QuotaPolicyConfig) ToPolicySpec() policy.RateLimitSpec {
	scope := policy.RateLimitScope(q.Scope)
	if scope == "" {
		scope = policy.ScopeTool
	}
	return policy.RateLimitSpec{
		Strategy:        policy.RateLimitStrategy(q.Strategy),
		PermitLimit:     q.PermitLimit,
		WindowMs:        q.WindowMs,
		RefillPeriodMs:  q.RefillPeriodMs,
		TokensPerPeriod: q.TokensPerPeriod,
		QueueLimit:      q.QueueLimit,
		Scope:           scope,
	}
}

// BootstrapPolicyDocument builds a minimal policy.Document straight
// from the coarse allow/deny tool name lists in PolicyConfig, for
// running the in-process host when no external policy source (spec.md
// §1 non-goal) is wired. Every name in AllowedTools/DeniedTools is
// matched against a candidate's OperationID.
func (c *Config) BootstrapPolicyDocument() policy.Document {
	doc := policy.Document{SchemaVersion: 1, DenyByDefault: c.Policy.DenyByDefault}
	for _, name := range c.Policy.DeniedTools {
		doc.Deny = append(doc.Deny, policy.Entry{Selector: policy.Selector{OperationID: name}, Enabled: false})
	}
	for _, name := range c.Policy.AllowedTools {
		doc.Allow = append(doc.Allow, policy.Entry{
			Selector: policy.Selector{OperationID: name},
			Enabled:  true,
			Settings: c.defaultSettings(),
		})
	}
	return doc
}

// defaultSettings builds the per-tool Settings every bootstrap allow
// entry carries, seeded from ActionsConfig and RateLimit.DefaultQuotaPolicy.
func (c *Config) defaultSettings() policy.Settings {
	s := policy.Settings{
		TimeoutMs:        c.Actions.DefaultExecutionTimeoutSeconds * 1000,
		ConcurrencyLimit: c.Actions.MaxConcurrentActions,
	}
	if c.RateLimit.Enabled && c.RateLimit.DefaultQuotaPolicy != nil {
		spec := c.RateLimit.DefaultQuotaPolicy.ToPolicySpec()
		s.RateLimit = &spec
	}
	return s
}
