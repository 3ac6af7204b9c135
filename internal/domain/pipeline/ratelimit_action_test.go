package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/contextify/contextify/internal/domain/ratelimit"
	"github.com/contextify/contextify/internal/domain/tool"
)

func TestRateLimitAction_DeniesWhenLimiterExhausted(t *testing.T) {
	cache := ratelimit.NewCache(0, time.Minute, func(key string) ratelimit.Limiter {
		return ratelimit.NewLimiter(ratelimit.Config{Strategy: ratelimit.StrategyFixedWindow, Limit: 1, Window: time.Hour}, nil)
	})
	a := &RateLimitAction{Cache: cache, KeyFunc: func(ctx context.Context, inv Invocation) string { return inv.ToolName }}

	first := a.Invoke(context.Background(), Invocation{ToolName: "t1"}, func(ctx context.Context) tool.Result {
		return tool.OkText("ok")
	})
	require.True(t, first.IsSuccess())

	second := a.Invoke(context.Background(), Invocation{ToolName: "t1"}, func(ctx context.Context) tool.Result {
		return tool.OkText("should not run")
	})
	require.False(t, second.IsSuccess())
	require.Equal(t, tool.ErrRateLimited, second.Failure.ErrorCode)
}

func TestRateLimitAction_DisabledWithoutCache(t *testing.T) {
	a := &RateLimitAction{}
	require.False(t, a.Applies(context.Background(), Invocation{}))
}
