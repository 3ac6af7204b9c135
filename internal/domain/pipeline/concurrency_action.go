package pipeline

import (
	"context"
	"time"

	"github.com/contextify/contextify/internal/domain/tool"
)

// maxConcurrencyTimeout caps how long a call may wait for a free
// concurrency slot, independent of any configured tool timeout, as a
// safety upper bound against misconfiguration (spec.md §4.5).
const maxConcurrencyTimeout = 5 * time.Minute

// ConcurrencyAction bounds the number of in-flight calls per tool name.
// Limit <= 0 disables the action. Callers share one ConcurrencyAction
// instance across the whole catalog so the per-tool semaphore cache is
// shared too.
type ConcurrencyAction struct {
	Limit int
	sems  *lruSemaphores
}

// NewConcurrencyAction builds a ConcurrencyAction with a bounded LRU
// cache of per-tool semaphores sized cacheCapacity.
func NewConcurrencyAction(limit, cacheCapacity int) *ConcurrencyAction {
	return &ConcurrencyAction{Limit: limit, sems: newLRUSemaphores(cacheCapacity)}
}

func (a *ConcurrencyAction) Order() int { return OrderConcurrency }

func (a *ConcurrencyAction) Applies(ctx context.Context, inv Invocation) bool { return a.Limit > 0 }

func (a *ConcurrencyAction) Invoke(ctx context.Context, inv Invocation, next Next) tool.Result {
	sem := a.sems.get(inv.ToolName, a.Limit)

	waitCtx, cancel := context.WithTimeout(ctx, maxConcurrencyTimeout)
	defer cancel()

	select {
	case sem <- struct{}{}:
	case <-waitCtx.Done():
		return tool.Err(tool.ErrTimeout, "timed out waiting for a concurrency slot", true)
	}
	defer func() { <-sem }()

	return next(ctx)
}
