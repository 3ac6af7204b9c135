package pipeline

import (
	"context"
	"time"

	"github.com/contextify/contextify/internal/domain/tool"
)

// TimeoutAction bounds how long the rest of the chain (and ultimately
// the executor) may run. A zero Duration disables the action rather
// than producing an already-expired context.
type TimeoutAction struct {
	Duration time.Duration
}

func (a TimeoutAction) Order() int { return OrderTimeout }

func (a TimeoutAction) Applies(ctx context.Context, inv Invocation) bool { return a.Duration > 0 }

func (a TimeoutAction) Invoke(ctx context.Context, inv Invocation, next Next) tool.Result {
	ctx, cancel := context.WithTimeout(ctx, a.Duration)
	defer cancel()

	resultCh := make(chan tool.Result, 1)
	go func() { resultCh <- next(ctx) }()

	select {
	case res := <-resultCh:
		return res
	case <-ctx.Done():
		return tool.Err(tool.ErrTimeout, "tool call exceeded its configured timeout", false)
	}
}
