package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igcrawler/pkg/config"
)

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "request %d should be allowed", i+1)
	}
	assert.False(t, tb.Allow(), "4th request should be denied")

	tb.Reset()
	assert.True(t, tb.Allow(), "request should be allowed after reset")
}

func TestTokenBucketRefills(t *testing.T) {
	tb := NewTokenBucket(1, 50*time.Millisecond)
	require.True(t, tb.Allow())
	require.False(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, tb.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestWaitHonoursContext(t *testing.T) {
	tb := NewPerMinute(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, tb.Wait(ctx))
}

func TestUnlimited(t *testing.T) {
	tb := NewUnlimited()
	for i := 0; i < 1000; i++ {
		require.True(t, tb.Allow())
	}
	assert.NoError(t, tb.Wait(context.Background()))

	assert.Equal(t, NewUnlimited().limit, NewTokenBucket(0, time.Second).limit)
	assert.Equal(t, NewUnlimited().limit, NewPerMinute(0, 5).limit)
}

func TestFromConfig(t *testing.T) {
	tb := FromConfig(config.RateLimitConfig{RequestsPerMinute: 120, BurstSize: 4})
	assert.Equal(t, 4, tb.Burst())
	assert.InDelta(t, 2.0, float64(tb.limit), 0.0001)

	tb = FromConfig(config.RateLimitConfig{RequestsPerMinute: 30})
	assert.Equal(t, 1, tb.Burst())
}
