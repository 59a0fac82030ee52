package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func fastPolicy(strategy Strategy, attempts int) Policy {
	return Policy{MaxAttempts: attempts, Strategy: strategy, Delay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDefaultPolicy(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, StrategyFixed, p.Strategy)
	assert.Equal(t, 5*time.Second, p.Delay)
}

func TestPolicy_Do(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		policy    Policy
		failures  int
		permanent bool
		wantCalls int
		wantErr   error
	}{
		{
			name:      "success: first attempt",
			policy:    fastPolicy(StrategyFixed, 3),
			failures:  0,
			wantCalls: 1,
		},
		{
			name:      "success: recovers on third attempt",
			policy:    fastPolicy(StrategyFixed, 3),
			failures:  2,
			wantCalls: 3,
		},
		{
			name:      "success: exponential strategy recovers",
			policy:    fastPolicy(StrategyExponential, 3),
			failures:  1,
			wantCalls: 2,
		},
		{
			name:      "error: attempts exhausted",
			policy:    fastPolicy(StrategyFixed, 3),
			failures:  10,
			wantCalls: 3,
			wantErr:   errTransient,
		},
		{
			name:      "error: permanent error is not retried",
			policy:    fastPolicy(StrategyFixed, 3),
			failures:  10,
			permanent: true,
			wantCalls: 1,
			wantErr:   errTransient,
		},
		{
			name:      "error: zero attempts still runs once",
			policy:    fastPolicy(StrategyFixed, 0),
			failures:  10,
			wantCalls: 1,
			wantErr:   errTransient,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := tt.policy.Do(context.Background(), "test", func() error {
				calls++
				if calls <= tt.failures {
					if tt.permanent {
						return Permanent(errTransient)
					}
					return errTransient
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
			assert.False(t, IsPermanent(err), "permanent wrapper should be removed")
		})
	}
}

func TestPolicy_Do_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, Strategy: StrategyFixed, Delay: time.Hour}

	calls := 0
	err := p.Do(ctx, "test", func() error {
		calls++
		cancel()
		return errTransient
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPermanent(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Permanent(nil))
	assert.True(t, IsPermanent(Permanent(errTransient)))
	assert.False(t, IsPermanent(errTransient))
}
