package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFixedWindow_AllowsUpToLimitThenBlocks(t *testing.T) {
	clock := time.Now()
	l := NewLimiter(Config{Strategy: StrategyFixedWindow, Limit: 2, Window: time.Second}, func() time.Time { return clock })

	require.True(t, l.AllowNow().Allowed)
	require.True(t, l.AllowNow().Allowed)
	d := l.AllowNow()
	require.False(t, d.Allowed)
	require.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestFixedWindow_ResetsAtWindowBoundary(t *testing.T) {
	clock := time.Now()
	l := NewLimiter(Config{Strategy: StrategyFixedWindow, Limit: 1, Window: time.Second}, func() time.Time { return clock })

	require.True(t, l.AllowNow().Allowed)
	require.False(t, l.AllowNow().Allowed)

	clock = clock.Add(time.Second + time.Millisecond)
	require.True(t, l.AllowNow().Allowed)
}

func TestSlidingWindow_SpreadsLimitAcrossBoundary(t *testing.T) {
	clock := time.Now()
	l := NewLimiter(Config{Strategy: StrategySlidingWindow, Limit: 10, Window: time.Second}, func() time.Time { return clock })

	for i := 0; i < 10; i++ {
		require.True(t, l.AllowNow().Allowed, "request %d should be allowed", i)
	}
	require.False(t, l.AllowNow().Allowed)

	// Halfway into the next window the previous window's weight still
	// counts for roughly half its entries, so the limiter should not
	// immediately reopen to a fresh 10.
	clock = clock.Add(1500 * time.Millisecond)
	allowedInSecondWindow := 0
	for i := 0; i < 10; i++ {
		if l.AllowNow().Allowed {
			allowedInSecondWindow++
		}
	}
	require.Less(t, allowedInSecondWindow, 10)
}

func TestTokenBucket_AllowsBurstThenPaces(t *testing.T) {
	l := NewLimiter(Config{Strategy: StrategyTokenBucket, Limit: 5, Window: time.Second, Burst: 2}, nil)

	require.True(t, l.AllowNow().Allowed)
	require.True(t, l.AllowNow().Allowed)
	require.False(t, l.AllowNow().Allowed)
}

func TestTokenBucket_AllowBlockingWaitsWithinBudget(t *testing.T) {
	bl, ok := NewLimiter(Config{Strategy: StrategyTokenBucket, Limit: 100, Window: time.Second, Burst: 1}, nil).(BlockingLimiter)
	require.True(t, ok)

	require.True(t, bl.AllowNow().Allowed)
	d := bl.AllowBlocking(50 * time.Millisecond)
	require.True(t, d.Allowed)
}
