package gateway

import "sync"

// StaticRegistry is a fixed, in-memory Upstream set. It also satisfies
// UpstreamLookup so the aggregator and dispatcher can share one source
// of truth for configured upstreams.
type StaticRegistry struct {
	mu        sync.RWMutex
	upstreams map[string]Upstream
	order     []string
}

// NewStaticRegistry builds a registry from a fixed upstream list.
func NewStaticRegistry(upstreams []Upstream) *StaticRegistry {
	r := &StaticRegistry{upstreams: make(map[string]Upstream, len(upstreams))}
	for _, u := range upstreams {
		r.upstreams[u.UpstreamName] = u
		r.order = append(r.order, u.UpstreamName)
	}
	return r
}

// Enabled returns the upstreams with Enabled=true, in registration
// order.
func (r *StaticRegistry) Enabled() []Upstream {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Upstream, 0, len(r.order))
	for _, name := range r.order {
		if u := r.upstreams[name]; u.Enabled {
			out = append(out, u)
		}
	}
	return out
}

// Lookup finds an upstream by name regardless of Enabled state, so a
// disabled upstream's last-known route can still report a clear
// UPSTREAM_UNAVAILABLE rather than TOOL_NOT_FOUND.
func (r *StaticRegistry) Lookup(name string) (Upstream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.upstreams[name]
	return u, ok
}
