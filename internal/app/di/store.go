package di

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"market_sync/internal/feature/marketsync/adapters"
	"market_sync/internal/platform/config"
	"market_sync/internal/platform/db"
	"market_sync/internal/platform/externalapi/d1"
	infrahttp "market_sync/internal/platform/http"
	infraredis "market_sync/internal/platform/redis"
	"market_sync/internal/shared/sqlstore"
)

// NewStore opens the configured SQL backend. The returned function releases it.
func NewStore(cfg *config.Config) (sqlstore.Store, func() error, error) {
	switch cfg.Store.Backend {
	case config.BackendD1:
		client := d1.NewClient(cfg.Store.URL, cfg.Store.APIKey,
			d1.WithHTTPClient(infrahttp.NewHTTPClient(cfg.Store.GetTimeout())),
			d1.WithRetryPolicy(cfg.Sync.Retry.Policy()),
		)
		return client, func() error { return nil }, nil
	case config.BackendGorm:
		gdb, err := db.OpenDB(cfg.Database.DB(), adapters.Models()...)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, nil, err
		}
		return db.NewGormStore(gdb), sqlDB.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalidConfig, cfg.Store.Backend)
	}
}

// NewRedis connects to the read cache. It returns nil when Redis is disabled or
// unreachable; callers run without the cache in that case.
func NewRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	if !cfg.Redis.Enabled() {
		return nil
	}
	rdb, err := infraredis.NewRedisClient(ctx, infraredis.Options{
		Addr:      cfg.Redis.Addr(),
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		OpTimeout: cfg.Redis.GetTimeout(),
	})
	if err != nil {
		slog.Warn("Redis unavailable. Running without cache.", "error", err)
		return nil
	}
	return rdb
}
