package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthMonitor_MarksUnhealthyUpstreamsFromFallbackProbe(t *testing.T) {
	client := fakeToolsListClient{errs: map[string]error{"b": errors.New("refused")}, byUpstream: map[string]ToolsListResult{"a": {}}}
	h := NewHealthMonitor(nil, client)

	h.ProbeAll(context.Background(), []Upstream{{UpstreamName: "a"}, {UpstreamName: "b"}})

	require.True(t, h.IsHealthy("a"))
	require.False(t, h.IsHealthy("b"))
}

func TestHealthMonitor_UnprobedUpstreamReportsUnhealthy(t *testing.T) {
	h := NewHealthMonitor(nil, fakeToolsListClient{})
	require.False(t, h.IsHealthy("never-probed"))
}

type fakeManifestProbe struct {
	fail map[string]bool
}

func (f fakeManifestProbe) ProbeManifest(ctx context.Context, u Upstream) error {
	if f.fail[u.UpstreamName] {
		return errors.New("manifest unreachable")
	}
	return nil
}

func TestHealthMonitor_PrefersManifestProbeWhenItSucceeds(t *testing.T) {
	manifest := fakeManifestProbe{}
	tools := fakeToolsListClient{errs: map[string]error{"a": errors.New("should not be called")}}
	h := NewHealthMonitor(manifest, tools)

	h.ProbeAll(context.Background(), []Upstream{{UpstreamName: "a"}})
	require.True(t, h.IsHealthy("a"))
}

func TestHealthMonitor_FallsBackToToolsListWhenManifestFails(t *testing.T) {
	manifest := fakeManifestProbe{fail: map[string]bool{"a": true}}
	tools := fakeToolsListClient{byUpstream: map[string]ToolsListResult{"a": {}}}
	h := NewHealthMonitor(manifest, tools)

	h.ProbeAll(context.Background(), []Upstream{{UpstreamName: "a"}})
	require.True(t, h.IsHealthy("a"))
}
