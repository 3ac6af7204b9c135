// Package pipeline composes the ordered middleware actions (auth
// propagation, timeout, concurrency limiting, rate limiting, redaction)
// that wrap every tool dispatch (spec.md §4.5).
package pipeline

import (
	"context"
	"sort"

	"github.com/contextify/contextify/internal/domain/tool"
)

// Invocation carries everything an Action needs to decide whether it
// applies and, if so, to do its work before calling Next.
type Invocation struct {
	ToolName string
	Args     map[string]any
	Auth     any
}

// Next calls the remaining chain and returns its result.
type Next func(ctx context.Context) tool.Result

// Action is one link in the dispatch middleware chain. Order is
// ascending: lower values run first (outermost). Applies lets an
// action opt out per-invocation without being removed from the chain
// (e.g. a redaction action with no configured rules).
type Action interface {
	Order() int
	Applies(ctx context.Context, inv Invocation) bool
	Invoke(ctx context.Context, inv Invocation, next Next) tool.Result
}

// Standard ordering constants (spec.md §4.5). Gaps between values leave
// room for future actions to interleave without renumbering.
const (
	OrderAuthPropagation = 90
	OrderTimeout         = 100
	OrderConcurrency     = 110
	OrderRateLimit       = 120
	OrderRedaction       = 200
)

// Chain is an immutable, order-sorted sequence of actions.
type Chain struct {
	actions []Action
}

// NewChain sorts actions ascending by Order and freezes the result.
// Ties preserve input order (stable sort) so callers can control
// same-order sequencing by construction order.
func NewChain(actions ...Action) Chain {
	sorted := make([]Action, len(actions))
	copy(sorted, actions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order() < sorted[j].Order() })
	return Chain{actions: sorted}
}

// Dispatch is the innermost call that actually invokes the tool.
type Dispatch func(ctx context.Context, inv Invocation) tool.Result

// Run executes the chain around dispatch. An action whose Applies
// returns false is skipped entirely (it neither wraps nor is counted)
// rather than invoked with a trivial pass-through, so a skipped action
// adds no call-stack frame and cannot itself short-circuit.
func (c Chain) Run(ctx context.Context, inv Invocation, dispatch Dispatch) tool.Result {
	return c.runFrom(0, ctx, inv, dispatch)
}

func (c Chain) runFrom(i int, ctx context.Context, inv Invocation, dispatch Dispatch) tool.Result {
	for i < len(c.actions) {
		a := c.actions[i]
		if !a.Applies(ctx, inv) {
			i++
			continue
		}
		idx := i
		return a.Invoke(ctx, inv, func(ctx context.Context) tool.Result {
			return c.runFrom(idx+1, ctx, inv, dispatch)
		})
	}
	return dispatch(ctx, inv)
}

// Len reports the number of actions in the chain, regardless of
// per-invocation Applies results.
func (c Chain) Len() int { return len(c.actions) }
