package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeToolsListClient struct {
	byUpstream map[string]ToolsListResult
	errs       map[string]error
}

func (f fakeToolsListClient) ToolsList(ctx context.Context, u Upstream) (ToolsListResult, error) {
	if err, ok := f.errs[u.UpstreamName]; ok {
		return ToolsListResult{}, err
	}
	return f.byUpstream[u.UpstreamName], nil
}

func TestAggregator_Build_NamespacesToolsPerUpstream(t *testing.T) {
	registry := NewStaticRegistry([]Upstream{
		{UpstreamName: "a", NamespacePrefix: "ns1", Enabled: true},
		{UpstreamName: "b", NamespacePrefix: "ns2", Enabled: true},
	})
	client := fakeToolsListClient{byUpstream: map[string]ToolsListResult{
		"a": {Tools: []RawTool{{Name: "forecast"}}},
		"b": {Tools: []RawTool{{Name: "report"}}},
	}}

	agg := NewAggregator(registry, client, nil, ".", nil)
	snap := agg.Build(context.Background())

	_, ok := snap.Lookup("ns1.forecast")
	require.True(t, ok)
	_, ok = snap.Lookup("ns2.report")
	require.True(t, ok)
}

func TestAggregator_Build_PartialAvailabilityOnUpstreamFailure(t *testing.T) {
	registry := NewStaticRegistry([]Upstream{
		{UpstreamName: "a", NamespacePrefix: "ns1", Enabled: true},
		{UpstreamName: "b", NamespacePrefix: "ns2", Enabled: true},
	})
	client := fakeToolsListClient{
		byUpstream: map[string]ToolsListResult{"a": {Tools: []RawTool{{Name: "forecast"}}}},
		errs:       map[string]error{"b": errors.New("connection refused")},
	}

	agg := NewAggregator(registry, client, nil, ".", nil)
	snap := agg.Build(context.Background())

	_, ok := snap.Lookup("ns1.forecast")
	require.True(t, ok)
	require.Len(t, snap.UpstreamStatuses, 2)

	bStatus, ok := snap.StatusFor("b")
	require.True(t, ok)
	require.False(t, bStatus.Healthy)
	require.NotEmpty(t, bStatus.Error)
}

func TestAggregator_Build_DropsToolsWithoutName(t *testing.T) {
	registry := NewStaticRegistry([]Upstream{{UpstreamName: "a", Enabled: true}})
	client := fakeToolsListClient{byUpstream: map[string]ToolsListResult{
		"a": {Tools: []RawTool{{Name: ""}, {Name: "valid"}}},
	}}

	agg := NewAggregator(registry, client, nil, ".", nil)
	snap := agg.Build(context.Background())

	require.Len(t, snap.RoutesByExternal, 1)
	_, ok := snap.Lookup("valid")
	require.True(t, ok)
}

func TestAggregator_Build_AppliesGatewayToolPolicy(t *testing.T) {
	registry := NewStaticRegistry([]Upstream{{UpstreamName: "a", NamespacePrefix: "ns1", Enabled: true}})
	client := fakeToolsListClient{byUpstream: map[string]ToolsListResult{
		"a": {Tools: []RawTool{{Name: "forecast"}, {Name: "internal"}}},
	}}
	policy := NewToolPolicy(ToolPolicyConfig{DeniedPatterns: []string{"*internal"}})

	agg := NewAggregator(registry, client, policy, ".", nil)
	snap := agg.Build(context.Background())

	_, ok := snap.Lookup("ns1.forecast")
	require.True(t, ok)
	_, ok = snap.Lookup("ns1.internal")
	require.False(t, ok)
}

func TestAggregator_Build_IgnoresDisabledUpstreams(t *testing.T) {
	registry := NewStaticRegistry([]Upstream{
		{UpstreamName: "a", NamespacePrefix: "ns1", Enabled: true},
		{UpstreamName: "b", NamespacePrefix: "ns2", Enabled: false},
	})
	client := fakeToolsListClient{byUpstream: map[string]ToolsListResult{
		"a": {Tools: []RawTool{{Name: "forecast"}}},
		"b": {Tools: []RawTool{{Name: "report"}}},
	}}

	agg := NewAggregator(registry, client, nil, ".", nil)
	snap := agg.Build(context.Background())

	require.Len(t, snap.UpstreamStatuses, 1)
	_, ok := snap.Lookup("ns2.report")
	require.False(t, ok)
}
