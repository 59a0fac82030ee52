package ratelimiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterInterface は、外部API呼び出しなどの操作の頻度を制限するインターフェースです。
type RateLimiterInterface interface {
	WaitIfNeeded(ctx context.Context) error
}

// RateLimiterは、interval あたり limit 回までに呼び出しを制限します。
// 複数のワーカーから同時に使用できます。
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiterは新しいRateLimiterのインスタンスを生成します。
// limit が 0 以下の場合は制限しません。
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	if limit <= 0 || interval <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Every(interval/time.Duration(limit)), limit),
	}
}

// WaitIfNeededは上限に達している場合、トークンが補充されるかctxが終了するまで待機します。
func (rl *RateLimiter) WaitIfNeeded(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}
