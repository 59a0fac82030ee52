package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pingTimeout = 3 * time.Second
	// DefaultOpTimeout は1コマンドあたりの読み書きタイムアウトです。
	DefaultOpTimeout = 500 * time.Millisecond
)

// Options はキャッシュとロックで共有する接続設定です。
type Options struct {
	Addr     string
	Password string
	DB       int
	// OpTimeout はコマンドの読み書きタイムアウト。0なら DefaultOpTimeout
	OpTimeout time.Duration
}

func (o Options) client() *redis.Options {
	timeout := o.OpTimeout
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	return &redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  pingTimeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		// 再試行は1回まで
		MaxRetries: 1,
	}
}

// NewRedisClient は opts の接続先に接続し、疎通確認に成功したクライアントを返します。
func NewRedisClient(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(opts.client())

	if err := Ping(ctx, rdb); err != nil {
		slog.Error("Redis connection failed", "address", opts.Addr, "db", opts.DB, "error", err)
		_ = rdb.Close()
		return nil, err
	}

	slog.Info("Redis connection successful", "address", opts.Addr, "db", opts.DB)
	return rdb, nil
}

// Ping は pingTimeout 以内に応答があるかを確認します。ヘルスチェックからも使います。
func Ping(ctx context.Context, rdb redis.UniversalClient) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
