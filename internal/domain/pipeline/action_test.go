package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/contextify/contextify/internal/domain/tool"
)

type recordingAction struct {
	order   int
	name    string
	applies bool
	log     *[]string
}

func (r recordingAction) Order() int { return r.order }
func (r recordingAction) Applies(ctx context.Context, inv Invocation) bool { return r.applies }
func (r recordingAction) Invoke(ctx context.Context, inv Invocation, next Next) tool.Result {
	*r.log = append(*r.log, "before:"+r.name)
	res := next(ctx)
	*r.log = append(*r.log, "after:"+r.name)
	return res
}

func TestChain_RunsActionsInAscendingOrder(t *testing.T) {
	var log []string
	chain := NewChain(
		recordingAction{order: 200, name: "b", applies: true, log: &log},
		recordingAction{order: 100, name: "a", applies: true, log: &log},
	)

	res := chain.Run(context.Background(), Invocation{}, func(ctx context.Context, inv Invocation) tool.Result {
		log = append(log, "dispatch")
		return tool.OkText("done")
	})

	require.True(t, res.IsSuccess())
	require.Equal(t, []string{"before:a", "before:b", "dispatch", "after:b", "after:a"}, log)
}

func TestChain_SkipsActionsThatDoNotApply(t *testing.T) {
	var log []string
	chain := NewChain(
		recordingAction{order: 100, name: "skip", applies: false, log: &log},
		recordingAction{order: 200, name: "run", applies: true, log: &log},
	)

	chain.Run(context.Background(), Invocation{}, func(ctx context.Context, inv Invocation) tool.Result {
		log = append(log, "dispatch")
		return tool.OkText("done")
	})

	require.Equal(t, []string{"before:run", "dispatch", "after:run"}, log)
}

type shortCircuitAction struct{}

func (shortCircuitAction) Order() int                                      { return 50 }
func (shortCircuitAction) Applies(ctx context.Context, inv Invocation) bool { return true }
func (shortCircuitAction) Invoke(ctx context.Context, inv Invocation, next Next) tool.Result {
	return tool.Err(tool.ErrPolicyDenied, "denied", false)
}

func TestChain_ActionCanShortCircuitWithoutCallingNext(t *testing.T) {
	dispatched := false
	chain := NewChain(shortCircuitAction{})

	res := chain.Run(context.Background(), Invocation{}, func(ctx context.Context, inv Invocation) tool.Result {
		dispatched = true
		return tool.OkText("unreachable")
	})

	require.False(t, dispatched)
	require.False(t, res.IsSuccess())
	require.Equal(t, tool.ErrPolicyDenied, res.Failure.ErrorCode)
}

func TestChain_EmptyChainCallsDispatchDirectly(t *testing.T) {
	chain := NewChain()
	res := chain.Run(context.Background(), Invocation{}, func(ctx context.Context, inv Invocation) tool.Result {
		return tool.OkText("direct")
	})
	require.True(t, res.IsSuccess())
	require.Equal(t, "direct", res.Success.TextContent)
}
