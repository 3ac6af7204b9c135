package catalog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMinReloadInterval throttles rebuilds even when the policy
// source signals frequently (spec.md §4.2).
const DefaultMinReloadInterval = 500 * time.Millisecond

// BuildFunc performs one rebuild attempt and returns the new snapshot.
// The provider does not know about policy/endpoint types directly so it
// stays decoupled from how a rebuild is actually assembled; callers
// supply a closure built from a Builder and their own Source.
type BuildFunc func(ctx context.Context) (Snapshot, []BuildWarning, error)

// Provider owns the current snapshot behind an atomic pointer and
// serializes rebuilds with a single-flight guard (spec.md §4.2, §5).
type Provider struct {
	build BuildFunc
	min   time.Duration
	log   *slog.Logger

	current atomic.Pointer[Snapshot]

	mu          sync.Mutex
	inFlight    bool
	lastBuildAt time.Time
	waiters     []chan struct{}
}

// NewProvider creates a Provider. initial seeds the current snapshot so
// getSnapshot never returns a zero value before the first reload.
func NewProvider(build BuildFunc, initial Snapshot, minReloadInterval time.Duration, logger *slog.Logger) *Provider {
	if minReloadInterval <= 0 {
		minReloadInterval = DefaultMinReloadInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{build: build, min: minReloadInterval, log: logger}
	p.current.Store(&initial)
	return p
}

// GetSnapshot is a lock-free read of the current snapshot.
func (p *Provider) GetSnapshot() Snapshot {
	return *p.current.Load()
}

// EnsureFresh rebuilds only if the minimum reload interval has elapsed
// since the last build; otherwise it returns the current snapshot
// unchanged.
func (p *Provider) EnsureFresh(ctx context.Context) Snapshot {
	p.mu.Lock()
	stale := time.Since(p.lastBuildAt) >= p.min
	p.mu.Unlock()
	if !stale {
		return p.GetSnapshot()
	}
	return p.Reload(ctx)
}

// Reload forces a rebuild, coalescing concurrent callers into a single
// in-flight build (single-flight). If the build fails, the previous
// snapshot remains current (last-known-good) and the failure is logged;
// if the build only produced warnings, the new snapshot is published and
// the warnings are logged.
func (p *Provider) Reload(ctx context.Context) Snapshot {
	p.mu.Lock()
	if p.inFlight {
		wait := make(chan struct{})
		p.waiters = append(p.waiters, wait)
		p.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
		}
		return p.GetSnapshot()
	}
	p.inFlight = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight = false
		p.lastBuildAt = time.Now()
		waiters := p.waiters
		p.waiters = nil
		p.mu.Unlock()
		for _, w := range waiters {
			close(w)
		}
	}()

	snap, warnings, err := p.build(ctx)
	if err != nil {
		p.log.Error("catalog: rebuild failed, keeping previous snapshot", "error", err)
		return p.GetSnapshot()
	}
	for _, w := range warnings {
		p.log.Warn("catalog: build warning", "tool", w.ToolName, "message", w.Message)
	}
	p.current.Store(&snap)
	return snap
}
