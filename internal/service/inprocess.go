// Package service wires the domain packages (catalog, pipeline,
// ratelimit, gateway) and the outbound adapters (executor, gatewayclient)
// into the two concrete rpc.Service implementations: the in-process
// tool host and the gateway host (spec.md §2).
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/contextify/contextify/internal/adapter/inbound/rpc"
	"github.com/contextify/contextify/internal/adapter/outbound/executor"
	"github.com/contextify/contextify/internal/domain/auth"
	"github.com/contextify/contextify/internal/domain/catalog"
	"github.com/contextify/contextify/internal/domain/pipeline"
	"github.com/contextify/contextify/internal/domain/policy"
	"github.com/contextify/contextify/internal/domain/ratelimit"
	"github.com/contextify/contextify/internal/domain/redaction"
	"github.com/contextify/contextify/internal/domain/tool"
	"github.com/contextify/contextify/pkg/wire"
)

// InProcessConfig bundles the knobs the in-process host needs beyond
// what the catalog snapshot already carries (spec.md §6 "Actions/limits").
type InProcessConfig struct {
	ApplicationName       string
	ConcurrencyCacheSize  int
	RateLimitCacheSize    int
	RateLimitCacheTTL     time.Duration
	RateLimitQueueDefault int
	Redaction             redaction.Rules
}

// InProcessService implements rpc.Service + rpc.Manifest against a local
// catalog snapshot, dispatching every call through the shared middleware
// pipeline and the HTTP executor (spec.md §4.4, §4.5).
type InProcessService struct {
	provider *catalog.Provider
	executor *executor.Executor
	cfg      InProcessConfig
	log      *slog.Logger

	rateCache *ratelimit.Cache
	redactor  *redaction.Engine

	mu          sync.Mutex
	chains      map[string]pipeline.Chain
	schemas     map[string]*jsonschema.Schema
	toolConfigs map[string]ratelimit.Config
}

// NewInProcessService wires a catalog Provider and HTTP Executor into an
// rpc.Service backed by the in-memory rate-limit cache.
func NewInProcessService(provider *catalog.Provider, exec *executor.Executor, cfg InProcessConfig, logger *slog.Logger) *InProcessService {
	if logger == nil {
		logger = slog.Default()
	}
	redactor, err := redaction.NewEngine(cfg.Redaction)
	if err != nil {
		logger.Error("service: invalid redaction rules, disabling redaction", "error", err)
		redactor, _ = redaction.NewEngine(redaction.Rules{})
	}
	s := &InProcessService{
		provider:    provider,
		executor:    exec,
		cfg:         cfg,
		log:         logger,
		redactor:    redactor,
		chains:      make(map[string]pipeline.Chain),
		schemas:     make(map[string]*jsonschema.Schema),
		toolConfigs: make(map[string]ratelimit.Config),
	}
	s.rateCache = ratelimit.NewCache(cfg.RateLimitCacheSize, cfg.RateLimitCacheTTL, func(key string) ratelimit.Limiter {
		rlCfg, ok := s.rateLimitConfigForKey(key)
		if !ok {
			return ratelimit.NewLimiter(ratelimit.Config{Strategy: ratelimit.StrategyFixedWindow, Limit: 1 << 30, Window: time.Minute}, nil)
		}
		return ratelimit.NewLimiter(rlCfg, nil)
	})
	return s
}

func (s *InProcessService) Initialize(ctx context.Context) rpc.InitializeResult {
	return rpc.InitializeResult{ProtocolVersion: wire.ProtocolVersion, ServerName: s.cfg.ApplicationName}
}

func (s *InProcessService) ToolsList(ctx context.Context) []rpc.ToolSummary {
	snap := s.provider.GetSnapshot()
	tools := snap.Tools()
	out := make([]rpc.ToolSummary, 0, len(tools))
	for _, td := range tools {
		out = append(out, rpc.ToolSummary{Name: td.ToolName, Description: td.Description, InputSchema: td.InputSchemaJSON})
	}
	return out
}

func (s *InProcessService) Manifest(ctx context.Context) any {
	snap := s.provider.GetSnapshot()
	return map[string]any{
		"name":         s.cfg.ApplicationName,
		"version":      wire.ProtocolVersion,
		"capabilities": map[string]any{"tools": map[string]any{}},
		"toolCount":    snap.Len(),
		"digest":       snap.Digest,
	}
}

func (s *InProcessService) ToolsCall(ctx context.Context, name string, args map[string]any, ac *auth.Context) tool.Result {
	snap := s.provider.GetSnapshot()
	td, ok := snap.Lookup(name)
	if !ok {
		return tool.Err(tool.ErrToolNotFound, fmt.Sprintf("tool %q not found", name), false)
	}
	if !td.EffectivePolicy.IsEnabled {
		return tool.Err(tool.ErrPolicyDenied, fmt.Sprintf("tool %q is denied by policy", name), false)
	}

	chain := s.chainFor(td)
	schema := s.schemaFor(td)
	endpointRef := &executor.EndpointRef{}
	if td.EndpointDescriptor != nil {
		endpointRef.RouteTemplate = td.EndpointDescriptor.RouteTemplate
		endpointRef.HTTPMethod = td.EndpointDescriptor.HTTPMethod
	}

	dispatch := func(ctx context.Context, inv pipeline.Invocation) tool.Result {
		return s.executor.Invoke(ctx, endpointRef, inv.Args, schema, td.EffectivePolicy, ac)
	}

	return chain.Run(ctx, pipeline.Invocation{ToolName: name, Args: args, Auth: ac}, dispatch)
}

// chainFor builds (and caches, per tool name) the middleware chain for a
// tool's current effective policy. Cached chains are keyed by a
// composite of tool name, timeout, concurrency limit and auth
// propagation mode, so a change to any of those produces a fresh chain;
// the rate-limit settings are not part of the key.
func (s *InProcessService) chainFor(td tool.Descriptor) pipeline.Chain {
	key := fmt.Sprintf("%s|%d|%d|%s", td.ToolName, td.EffectivePolicy.TimeoutMs, td.EffectivePolicy.ConcurrencyLimit, td.EffectivePolicy.AuthPropagationMode)

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chains[key]; ok {
		return c
	}

	actions := []pipeline.Action{&pipeline.AuthPropagationAction{}}
	if td.EffectivePolicy.TimeoutMs > 0 {
		actions = append(actions, pipeline.TimeoutAction{Duration: time.Duration(td.EffectivePolicy.TimeoutMs) * time.Millisecond})
	}
	if td.EffectivePolicy.ConcurrencyLimit > 0 {
		cacheSize := s.cfg.ConcurrencyCacheSize
		if cacheSize <= 0 {
			cacheSize = 1
		}
		actions = append(actions, pipeline.NewConcurrencyAction(td.EffectivePolicy.ConcurrencyLimit, cacheSize))
	}
	if rl := td.EffectivePolicy.RateLimit; rl != nil {
		toolName := td.ToolName
		rlCfg := specToConfig(*rl)
		s.toolConfigs[toolName] = rlCfg
		queueLimit := rl.QueueLimit
		if queueLimit == 0 {
			queueLimit = s.cfg.RateLimitQueueDefault
		}
		actions = append(actions, &pipeline.RateLimitAction{
			Cache: s.rateCache,
			KeyFunc: func(ctx context.Context, inv pipeline.Invocation) string {
				ac, _ := pipeline.AuthContextFromContext(ctx)
				return rateLimitKey(toolName, rl, ac, inv)
			},
			QueueLimit: queueLimit,
			Limit:      rlCfg.Limit,
			Window:     rlCfg.Window,
		})
	}
	actions = append(actions, &pipeline.RedactionAction{Engine: s.redactor})

	chain := pipeline.NewChain(actions...)
	s.chains[key] = chain
	return chain
}

// schemaFor compiles and caches a tool's input schema, keyed by tool
// name. The snapshot builder does not check schemas, so a schema that
// fails to parse or compile here only disables validation for that tool
// rather than failing the call.
func (s *InProcessService) schemaFor(td tool.Descriptor) *jsonschema.Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	if schema, ok := s.schemas[td.ToolName]; ok {
		return schema
	}
	schema := compileSchema(td.InputSchemaJSON)
	s.schemas[td.ToolName] = schema
	return schema
}

// rateLimitKey builds the limiter cache key for a tool's rate limit
// spec, prefixing with the tool name so two tools sharing a scope (e.g.
// both ScopeTenant) never collide on the same counter. There is no
// tenant-context collaborator in this spine, so a tenant-scoped limit
// falls back to an argument field literally named tenantId (spec.md
// §4.3).
func rateLimitKey(toolName string, rl *policy.RateLimitSpec, ac *auth.Context, inv pipeline.Invocation) string {
	id := ratelimit.Identity{Tool: toolName}
	if ac != nil {
		id.User = ac.APIKey
	}
	if tenantID, ok := inv.Args["tenantId"].(string); ok {
		id.Tenant = tenantID
	}
	scope := ratelimit.Scope(rl.Scope)
	if scope == "" {
		scope = ratelimit.ScopeTool
	}
	return toolName + "|" + ratelimit.Key(scope, id)
}

// rateLimitConfigForKey recovers the ratelimit.Config for a cache key.
// Every key produced by rateLimitKey is "<toolName>|scope:...", so the
// segment before the first '|' is always the owning tool's name; this
// runs only on a cache miss (first use of a given key), so the map
// lookup's cost is amortized across the entry's whole TTL.
func (s *InProcessService) rateLimitConfigForKey(key string) (ratelimit.Config, bool) {
	toolName := key
	if idx := strings.IndexByte(key, '|'); idx >= 0 {
		toolName = key[:idx]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.toolConfigs[toolName]
	return cfg, ok
}

func specToConfig(rl policy.RateLimitSpec) ratelimit.Config {
	switch rl.Strategy {
	case policy.StrategyTokenBucket:
		return ratelimit.Config{
			Strategy: ratelimit.StrategyTokenBucket,
			Limit:    rl.TokensPerPeriod,
			Window:   time.Duration(rl.RefillPeriodMs) * time.Millisecond,
			Burst:    rl.PermitLimit,
		}
	case policy.StrategySlidingWindow:
		return ratelimit.Config{Strategy: ratelimit.StrategySlidingWindow, Limit: rl.PermitLimit, Window: time.Duration(rl.WindowMs) * time.Millisecond}
	default:
		return ratelimit.Config{Strategy: ratelimit.StrategyFixedWindow, Limit: rl.PermitLimit, Window: time.Duration(rl.WindowMs) * time.Millisecond}
	}
}

// compileSchema compiles a tool's input schema once per call site. A nil
// or empty schema disables argument validation for that tool.
func compileSchema(raw json.RawMessage) *jsonschema.Schema {
	if len(raw) == 0 {
		return nil
	}
	var schemaDoc any
	if err := json.Unmarshal(raw, &schemaDoc); err != nil {
		return nil
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return nil
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return nil
	}
	return schema
}
