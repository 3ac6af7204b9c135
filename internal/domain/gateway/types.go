// Package gateway implements the multi-upstream aggregation subsystem:
// upstream registry, health probing, tool-name policy, catalog
// aggregation, and dispatch of tools/call to the owning upstream
// (spec.md §4.5-4.9).
package gateway

import (
	"encoding/json"
	"time"
)

// Upstream is one remote MCP server the gateway aggregates.
// UpstreamName is unique; NamespacePrefix need not be.
type Upstream struct {
	UpstreamName    string
	NamespacePrefix string
	MCPHTTPEndpoint string
	Enabled         bool
	RequestTimeout  time.Duration
	DefaultHeaders  map[string]string
}

// Route maps one externally visible tool name to the upstream tool that
// serves it. ExternalToolName = join(namespacePrefix, separator,
// upstreamToolName).
type Route struct {
	ExternalToolName string
	UpstreamName     string
	UpstreamToolName string
	InputSchemaJSON  json.RawMessage
	Description      string
}

// ExternalName joins a namespace prefix and upstream tool name with
// separator, matching the gateway's own naming rule.
func ExternalName(prefix, separator, upstreamToolName string) string {
	if prefix == "" {
		return upstreamToolName
	}
	return prefix + separator + upstreamToolName
}

// ProbeFailure enumerates the upstream health failure modes spec.md
// §4.7 names.
type ProbeFailure string

const (
	FailureNone      ProbeFailure = ""
	FailureTimeout   ProbeFailure = "timeout"
	FailureHTTP5xx   ProbeFailure = "5xx"
	FailureTransport ProbeFailure = "transport"
	FailureParse     ProbeFailure = "parse"
)

// UpstreamStatus is a per-probe health record, created fresh each cycle
// and never mutated after publication.
type UpstreamStatus struct {
	Name        string
	Healthy     bool
	LastProbeUTC time.Time
	LatencyMs   *int64
	ToolCount   *int
	Error       string
	Failure     ProbeFailure
}

// CatalogSnapshot is the gateway's immutable, atomically swappable
// published state: the routing table plus the last probe result for
// every upstream.
type CatalogSnapshot struct {
	CreatedUTC        time.Time
	RoutesByExternal  map[string]Route
	UpstreamStatuses  []UpstreamStatus
	Digest            string
}

// SortedRoutes returns the snapshot's routes as a stable slice ordered by
// external name, for deterministic tools/list responses.
func (s CatalogSnapshot) SortedRoutes() []Route {
	out := make([]Route, 0, len(s.RoutesByExternal))
	for _, r := range s.RoutesByExternal {
		out = append(out, r)
	}
	sortRoutes(out)
	return out
}

// Lookup finds the route for an external tool name.
func (s CatalogSnapshot) Lookup(externalName string) (Route, bool) {
	r, ok := s.RoutesByExternal[externalName]
	return r, ok
}

// StatusFor returns the last known status for an upstream by name.
func (s CatalogSnapshot) StatusFor(upstreamName string) (UpstreamStatus, bool) {
	for _, st := range s.UpstreamStatuses {
		if st.Name == upstreamName {
			return st, true
		}
	}
	return UpstreamStatus{}, false
}
