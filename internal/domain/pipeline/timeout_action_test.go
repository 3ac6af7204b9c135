package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/contextify/contextify/internal/domain/tool"
)

func TestTimeoutAction_ReturnsTimeoutErrorWhenExceeded(t *testing.T) {
	a := TimeoutAction{Duration: 10 * time.Millisecond}
	res := a.Invoke(context.Background(), Invocation{}, func(ctx context.Context) tool.Result {
		<-ctx.Done()
		return tool.OkText("too late")
	})

	require.False(t, res.IsSuccess())
	require.Equal(t, tool.ErrTimeout, res.Failure.ErrorCode)
}

func TestTimeoutAction_PassesThroughWhenFast(t *testing.T) {
	a := TimeoutAction{Duration: time.Second}
	res := a.Invoke(context.Background(), Invocation{}, func(ctx context.Context) tool.Result {
		return tool.OkText("fast")
	})

	require.True(t, res.IsSuccess())
	require.Equal(t, "fast", res.Success.TextContent)
}

func TestTimeoutAction_DisabledWhenDurationZero(t *testing.T) {
	a := TimeoutAction{}
	require.False(t, a.Applies(context.Background(), Invocation{}))
}
