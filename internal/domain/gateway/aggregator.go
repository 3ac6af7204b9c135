package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RawTool is one entry of an upstream's tools/list result, before
// namespacing and policy filtering are applied.
type RawTool struct {
	Name            string
	Description     string
	InputSchemaJSON []byte
}

// ToolsListResult is what a ToolsListClient returns for one upstream
// probe attempt.
type ToolsListResult struct {
	Tools   []RawTool
	Latency time.Duration
}

// ToolsListClient performs the JSON-RPC tools/list call against one
// upstream's MCP endpoint. Implementations live in the outbound adapter
// layer (spec.md §4.5 "HTTP pool" input).
type ToolsListClient interface {
	ToolsList(ctx context.Context, u Upstream) (ToolsListResult, error)
}

// Registry supplies the enabled upstreams to aggregate.
type Registry interface {
	Enabled() []Upstream
}

// Aggregator builds GatewayCatalogSnapshots by fanning out tools/list to
// every enabled upstream in parallel (spec.md §4.5).
type Aggregator struct {
	registry  Registry
	client    ToolsListClient
	policy    *ToolPolicy
	separator string
	log       *slog.Logger
}

// NewAggregator constructs an Aggregator. separator defaults to "." when
// empty.
func NewAggregator(registry Registry, client ToolsListClient, policy *ToolPolicy, separator string, logger *slog.Logger) *Aggregator {
	if separator == "" {
		separator = "."
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{registry: registry, client: client, policy: policy, separator: separator, log: logger}
}

// Build fans out one tools/list request per enabled upstream
// concurrently, applies namespacing and gateway tool policy, and
// materializes the result into a single immutable snapshot. One
// upstream's failure never blocks another's (partial availability);
// duplicate external names across upstreams resolve last-write-wins in
// upstream list order, with a warning logged.
func (a *Aggregator) Build(ctx context.Context) CatalogSnapshot {
	upstreams := a.registry.Enabled()

	type outcome struct {
		status UpstreamStatus
		routes []Route
	}
	results := make([]outcome, len(upstreams))

	var wg sync.WaitGroup
	for i, u := range upstreams {
		wg.Add(1)
		go func(i int, u Upstream) {
			defer wg.Done()
			results[i] = a.probeOne(ctx, u)
		}(i, u)
	}
	wg.Wait()

	routesByExternal := make(map[string]Route)
	statuses := make([]UpstreamStatus, 0, len(upstreams))
	for _, r := range results {
		statuses = append(statuses, r.status)
		for _, route := range r.routes {
			if _, exists := routesByExternal[route.ExternalToolName]; exists {
				a.log.Warn("gateway: duplicate external tool name, last write wins", "name", route.ExternalToolName)
			}
			routesByExternal[route.ExternalToolName] = route
		}
	}

	snap := CatalogSnapshot{CreatedUTC: time.Now(), RoutesByExternal: routesByExternal, UpstreamStatuses: statuses}
	snap.Digest = digest(snap.SortedRoutes())
	return snap
}

func (a *Aggregator) probeOne(ctx context.Context, u Upstream) (out struct {
	status UpstreamStatus
	routes []Route
}) {
	timeout := u.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := a.client.ToolsList(probeCtx, u)
	latencyMs := time.Since(start).Milliseconds()

	if err != nil {
		out.status = UpstreamStatus{
			Name: u.UpstreamName, Healthy: false, LastProbeUTC: time.Now(),
			Error: err.Error(), Failure: classifyProbeError(probeCtx, err),
		}
		return out
	}

	routes := make([]Route, 0, len(res.Tools))
	for _, t := range res.Tools {
		if t.Name == "" {
			continue
		}
		external := ExternalName(u.NamespacePrefix, a.separator, t.Name)
		if a.policy != nil && !a.policy.Decide(external) {
			continue
		}
		routes = append(routes, Route{
			ExternalToolName: external,
			UpstreamName:     u.UpstreamName,
			UpstreamToolName: t.Name,
			InputSchemaJSON:  t.InputSchemaJSON,
			Description:      t.Description,
		})
	}

	count := len(routes)
	lat := latencyMs
	out.status = UpstreamStatus{
		Name: u.UpstreamName, Healthy: true, LastProbeUTC: time.Now(),
		LatencyMs: &lat, ToolCount: &count,
	}
	out.routes = routes
	return out
}

func classifyProbeError(ctx context.Context, err error) ProbeFailure {
	if ctx.Err() != nil {
		return FailureTimeout
	}
	return FailureTransport
}
