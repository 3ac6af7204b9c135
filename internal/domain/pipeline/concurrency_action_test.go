package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/contextify/contextify/internal/domain/tool"
)

func TestConcurrencyAction_BoundsInFlightCallsPerTool(t *testing.T) {
	a := NewConcurrencyAction(2, 16)

	var inFlight, maxObserved int32
	release := make(chan struct{})

	run := func() {
		a.Invoke(context.Background(), Invocation{ToolName: "t1"}, func(ctx context.Context) tool.Result {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&maxObserved)
				if n <= old || atomic.CompareAndSwapInt32(&maxObserved, old, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&inFlight, -1)
			return tool.OkText("ok")
		})
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() { defer wg.Done(); run() }()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.LessOrEqual(t, atomic.LoadInt32(&maxObserved), int32(2))
}

func TestConcurrencyAction_DisabledWhenLimitZero(t *testing.T) {
	a := NewConcurrencyAction(0, 16)
	require.False(t, a.Applies(context.Background(), Invocation{}))
}

func TestConcurrencyAction_SeparatesSemaphoresByToolName(t *testing.T) {
	a := NewConcurrencyAction(1, 16)

	done := make(chan struct{})
	go func() {
		a.Invoke(context.Background(), Invocation{ToolName: "slow"}, func(ctx context.Context) tool.Result {
			time.Sleep(30 * time.Millisecond)
			return tool.OkText("slow-done")
		})
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)

	res := a.Invoke(context.Background(), Invocation{ToolName: "other"}, func(ctx context.Context) tool.Result {
		return tool.OkText("other-done")
	})
	require.True(t, res.IsSuccess())
	require.Equal(t, "other-done", res.Success.TextContent)
	<-done
}
