// Package retry provides the retry policy applied to every external call.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Strategy selects how the delay between attempts grows.
type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyExponential Strategy = "exponential"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 5 * time.Second
	DefaultMaxDelay    = time.Minute
)

// Policy describes how many times an operation is attempted and how long to wait in between.
type Policy struct {
	MaxAttempts int
	Strategy    Strategy
	Delay       time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy returns 3 attempts with a fixed 5s delay.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Strategy:    StrategyFixed,
		Delay:       DefaultDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Permanent marks err as not worth retrying. Do returns the unwrapped error immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *backoff.PermanentError
	return errors.As(err, &p)
}

// Do runs op until it succeeds, returns a permanent error, the attempts are used up,
// or ctx is done. The last error is returned.
func (p Policy) Do(ctx context.Context, what string, op func() error) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		return op()
	}
	notify := func(err error, next time.Duration) {
		slog.Warn("retrying after failure",
			"operation", what,
			"attempt", attempt,
			"max_attempts", p.attempts(),
			"next_in", next,
			"error", err,
		)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(p.backOff(), uint64(p.attempts()-1)), ctx)
	return backoff.RetryNotify(wrapped, b, notify)
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) backOff() backoff.BackOff {
	delay := p.Delay
	if delay < 0 {
		delay = 0
	}
	if p.Strategy == StrategyExponential {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = delay
		if p.MaxDelay > 0 {
			eb.MaxInterval = p.MaxDelay
		}
		// attempts bound the loop, not elapsed time
		eb.MaxElapsedTime = 0
		return eb
	}
	return backoff.NewConstantBackOff(delay)
}
