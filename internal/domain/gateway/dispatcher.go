package gateway

import (
	"context"

	"github.com/contextify/contextify/internal/domain/auth"
	"github.com/contextify/contextify/internal/domain/tool"
)

// ToolsCallClient forwards a tools/call JSON-RPC request to an
// upstream's MCP endpoint (spec.md §4.8 step 4).
type ToolsCallClient interface {
	ToolsCall(ctx context.Context, u Upstream, upstreamToolName string, args map[string]any, headers map[string]string, ac *auth.Context) (tool.Result, error)
}

// UpstreamLookup resolves an upstream by name.
type UpstreamLookup interface {
	Lookup(name string) (Upstream, bool)
}

// Dispatcher implements the gateway's tools/call routing: policy check,
// route lookup, health check, forward (spec.md §4.8).
type Dispatcher struct {
	policy   *ToolPolicy
	upstream UpstreamLookup
	health   *HealthMonitor
	client   ToolsCallClient
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(policy *ToolPolicy, upstream UpstreamLookup, health *HealthMonitor, client ToolsCallClient) *Dispatcher {
	return &Dispatcher{policy: policy, upstream: upstream, health: health, client: client}
}

// Dispatch runs the four-step gateway call path against the given
// snapshot. Dispatch emits no audit or correlation-id records, and the
// inbound handler does not wrap it with any; the handler's only
// correlation id is the one it adds to error data when
// IncludeCorrelationIDInErrors is set.
func (d *Dispatcher) Dispatch(ctx context.Context, snap CatalogSnapshot, externalName string, args map[string]any, ac *auth.Context) tool.Result {
	if d.policy != nil && !d.policy.Decide(externalName) {
		return tool.Err(tool.ErrPolicyDenied, "tool denied by gateway policy", false)
	}

	route, ok := snap.Lookup(externalName)
	if !ok {
		return tool.Err(tool.ErrToolNotFound, "no route for tool "+externalName, false)
	}

	up, ok := d.upstream.Lookup(route.UpstreamName)
	if !ok {
		return tool.Err(tool.ErrUpstreamUnavailable, "upstream "+route.UpstreamName+" is not registered", true)
	}
	if d.health != nil && !d.health.IsHealthy(route.UpstreamName) {
		return tool.Err(tool.ErrUpstreamUnavailable, "upstream "+route.UpstreamName+" is currently unhealthy", true)
	}

	res, err := d.client.ToolsCall(ctx, up, route.UpstreamToolName, args, up.DefaultHeaders, ac)
	if err != nil {
		return tool.Err(tool.ErrUpstreamError, err.Error(), true)
	}
	return res
}
