package gateway

import (
	"context"
	"sync"
	"time"
)

// ManifestProbe performs the primary health probe: GET the upstream's
// well-known manifest endpoint.
type ManifestProbe interface {
	ProbeManifest(ctx context.Context, u Upstream) error
}

// HealthMonitor tracks the last probe result per upstream and answers
// IsHealthy lookups for the dispatcher without re-probing synchronously
// (spec.md §4.7). It probes the manifest endpoint first and falls back
// to a tools/list probe through the same ToolsListClient the aggregator
// uses; there is no circuit breaker, only last-cycle pass/fail.
type HealthMonitor struct {
	manifest ManifestProbe
	tools    ToolsListClient

	mu     sync.RWMutex
	status map[string]UpstreamStatus
}

// NewHealthMonitor constructs a HealthMonitor. manifest may be nil, in
// which case every probe goes straight to the tools/list fallback.
func NewHealthMonitor(manifest ManifestProbe, tools ToolsListClient) *HealthMonitor {
	return &HealthMonitor{manifest: manifest, tools: tools, status: make(map[string]UpstreamStatus)}
}

// ProbeAll probes every upstream and replaces the monitor's status
// table with the fresh results. A failed upstream remains in the table
// (marked unhealthy) rather than being removed, so it is retried on the
// next cycle.
func (h *HealthMonitor) ProbeAll(ctx context.Context, upstreams []Upstream) {
	next := make(map[string]UpstreamStatus, len(upstreams))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, u := range upstreams {
		wg.Add(1)
		go func(u Upstream) {
			defer wg.Done()
			st := h.probe(ctx, u)
			mu.Lock()
			next[u.UpstreamName] = st
			mu.Unlock()
		}(u)
	}
	wg.Wait()

	h.mu.Lock()
	h.status = next
	h.mu.Unlock()
}

func (h *HealthMonitor) probe(ctx context.Context, u Upstream) UpstreamStatus {
	timeout := u.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var err error
	if h.manifest != nil {
		err = h.manifest.ProbeManifest(probeCtx, u)
	}
	if err != nil || h.manifest == nil {
		_, err = h.tools.ToolsList(probeCtx, u)
	}
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return UpstreamStatus{
			Name: u.UpstreamName, Healthy: false, LastProbeUTC: time.Now(),
			Error: err.Error(), Failure: classifyProbeError(probeCtx, err),
		}
	}
	return UpstreamStatus{Name: u.UpstreamName, Healthy: true, LastProbeUTC: time.Now(), LatencyMs: &latency}
}

// IsHealthy reports the last known health of an upstream. An upstream
// never probed is reported unhealthy, erring toward caution.
func (h *HealthMonitor) IsHealthy(upstreamName string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	st, ok := h.status[upstreamName]
	return ok && st.Healthy
}

// Status returns a snapshot of all known upstream statuses.
func (h *HealthMonitor) Status() []UpstreamStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]UpstreamStatus, 0, len(h.status))
	for _, st := range h.status {
		out = append(out, st)
	}
	return out
}
