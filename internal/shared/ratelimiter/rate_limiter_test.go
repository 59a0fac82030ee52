package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_BurstWithinLimit(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(5, time.Minute)
	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, rl.WaitIfNeeded(context.Background()))
	}
	assert.Less(t, time.Since(start), time.Second, "burst within limit should not wait")
}

func TestRateLimiter_Unlimited(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		limit    int
		interval time.Duration
	}{
		{"zero limit", 0, time.Minute},
		{"negative limit", -1, time.Minute},
		{"zero interval", 10, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rl := NewRateLimiter(tt.limit, tt.interval)
			for i := 0; i < 100; i++ {
				require.NoError(t, rl.WaitIfNeeded(context.Background()))
			}
		})
	}
}

func TestRateLimiter_ContextCancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, time.Hour)
	require.NoError(t, rl.WaitIfNeeded(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := rl.WaitIfNeeded(ctx)
	assert.Error(t, err, "second call must not get a token within an hour")
}
