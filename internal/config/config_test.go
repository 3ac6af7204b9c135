package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/contextify/contextify/internal/domain/gateway"
	"github.com/contextify/contextify/internal/domain/ratelimit"
)

func TestConfig_SetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	require.Equal(t, TransportAuto, cfg.Core.TransportMode)
	require.Equal(t, "contextify", cfg.Core.ApplicationName)
	require.Equal(t, "127.0.0.1:8080", cfg.Core.HTTPAddr)
	require.Equal(t, "http://127.0.0.1:9090", cfg.Actions.BackendBaseURL)
	require.EqualValues(t, 30, cfg.Actions.DefaultExecutionTimeoutSeconds)
	require.Equal(t, ".", cfg.Gateway.ToolNameSeparator)
	require.Equal(t, int64(1<<20), cfg.Transport.MaxRequestBodyBytes)
	require.Equal(t, "X-Tenant-Id", cfg.Transport.TenantIDHeader)
	require.Equal(t, "X-User-Id", cfg.Transport.UserIDHeader)
	require.Equal(t, "memory", cfg.RateLimit.Backend)
}

func TestConfig_SetDefaults_DoesNotOverrideExplicitValues(t *testing.T) {
	cfg := Config{Core: CoreConfig{HTTPAddr: ":9999", ApplicationName: "custom"}}
	cfg.SetDefaults()

	require.Equal(t, ":9999", cfg.Core.HTTPAddr)
	require.Equal(t, "custom", cfg.Core.ApplicationName)
}

func TestUpstreamConfig_ToUpstream(t *testing.T) {
	u := UpstreamConfig{
		Name:            "weather",
		NamespacePrefix: "weather",
		MCPHTTPEndpoint: "http://weather.internal/mcp",
		Enabled:         true,
		RequestTimeout:  "5s",
		DefaultHeaders:  map[string]string{"X-Tenant": "acme"},
	}

	got := u.ToUpstream()
	require.Equal(t, "weather", got.UpstreamName)
	require.Equal(t, "http://weather.internal/mcp", got.MCPHTTPEndpoint)
	require.Equal(t, 5_000_000_000, int(got.RequestTimeout))
	require.Equal(t, "acme", got.DefaultHeaders["X-Tenant"])
}

func TestUpstreamConfig_ToUpstream_DefaultsTimeout(t *testing.T) {
	u := UpstreamConfig{Name: "weather", MCPHTTPEndpoint: "http://weather.internal/mcp"}
	got := u.ToUpstream()
	require.Equal(t, 10_000_000_000, int(got.RequestTimeout))
}

func TestGatewayConfig_ToUpstreams(t *testing.T) {
	cfg := GatewayConfig{Upstreams: []UpstreamConfig{
		{Name: "a", MCPHTTPEndpoint: "http://a/mcp"},
		{Name: "b", MCPHTTPEndpoint: "http://b/mcp"},
	}}
	out := cfg.ToUpstreams()
	require.Len(t, out, 2)
	require.Equal(t, "a", out[0].UpstreamName)
	require.Equal(t, "b", out[1].UpstreamName)
}

func TestGatewayConfig_ToToolPolicyConfig(t *testing.T) {
	cfg := GatewayConfig{AllowedToolPatterns: []string{"weather.*"}, DeniedToolPatterns: []string{"weather.admin_*"}}
	got := cfg.ToToolPolicyConfig(true)
	require.Equal(t, gateway.ToolPolicyConfig{
		AllowedPatterns: []string{"weather.*"},
		DeniedPatterns:  []string{"weather.admin_*"},
		DenyByDefault:   true,
	}, got)
}

func TestQuotaPolicyConfig_ToRateLimitConfig_TokenBucket(t *testing.T) {
	q := QuotaPolicyConfig{Strategy: "tokenBucket", TokensPerPeriod: 10, RefillPeriodMs: 1000, PermitLimit: 20}
	got := q.ToRateLimitConfig()
	require.Equal(t, ratelimit.StrategyTokenBucket, got.Strategy)
	require.Equal(t, 10, got.Limit)
	require.Equal(t, 20, got.Burst)
}

func TestQuotaPolicyConfig_ToRateLimitConfig_DefaultsToFixedWindow(t *testing.T) {
	q := QuotaPolicyConfig{PermitLimit: 5, WindowMs: 1000}
	got := q.ToRateLimitConfig()
	require.Equal(t, ratelimit.StrategyFixedWindow, got.Strategy)
	require.Equal(t, 5, got.Limit)
}

func TestQuotaPolicyConfig_ToGatewayRateLimitPolicy_DefaultsToToolScope(t *testing.T) {
	q := QuotaPolicyConfig{PermitLimit: 5, WindowMs: 1000}
	got := q.ToGatewayRateLimitPolicy()
	require.Equal(t, gateway.ScopeTool, got.Scope)
}

func TestConfig_BootstrapPolicyDocument(t *testing.T) {
	cfg := &Config{
		Policy: PolicyConfig{
			DenyByDefault: true,
			AllowedTools:  []string{"GetUser"},
			DeniedTools:   []string{"DeleteUser"},
		},
		Actions: ActionsConfig{DefaultExecutionTimeoutSeconds: 5, MaxConcurrentActions: 4},
	}

	doc := cfg.BootstrapPolicyDocument()
	require.True(t, doc.DenyByDefault)
	require.Len(t, doc.Allow, 1)
	require.Equal(t, "GetUser", doc.Allow[0].Selector.OperationID)
	require.EqualValues(t, 5000, doc.Allow[0].Settings.TimeoutMs)
	require.Len(t, doc.Deny, 1)
	require.Equal(t, "DeleteUser", doc.Deny[0].Selector.OperationID)
	require.False(t, doc.Deny[0].Enabled)
}

func TestConfig_BootstrapPolicyDocument_AttachesRateLimitWhenEnabled(t *testing.T) {
	cfg := &Config{
		Policy:  PolicyConfig{AllowedTools: []string{"GetUser"}},
		Actions: ActionsConfig{},
		RateLimit: RateLimitConfig{
			Enabled:            true,
			DefaultQuotaPolicy: &QuotaPolicyConfig{PermitLimit: 10, WindowMs: 1000},
		},
	}

	doc := cfg.BootstrapPolicyDocument()
	require.NotNil(t, doc.Allow[0].Settings.RateLimit)
	require.Equal(t, 10, doc.Allow[0].Settings.RateLimit.PermitLimit)
}

func TestDurationOr(t *testing.T) {
	require.Equal(t, int64(5_000_000_000), int64(durationOr("5s", 0)))
	require.Equal(t, int64(1_000_000_000), int64(durationOr("", 1_000_000_000)))
	require.Equal(t, int64(1_000_000_000), int64(durationOr("not-a-duration", 1_000_000_000)))
}
