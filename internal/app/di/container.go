package di

import (
	"context"
	"errors"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"market_sync/internal/feature/marketsync/adapters"
	"market_sync/internal/feature/marketsync/usecase"
	"market_sync/internal/platform/cache"
	"market_sync/internal/platform/config"
	"market_sync/internal/platform/externalapi/twelvedata"
	"market_sync/internal/platform/http/handler"
	"market_sync/internal/platform/lock"
	infraredis "market_sync/internal/platform/redis"
	"market_sync/internal/shared/sqlstore"
)

// Container holds the components shared by the CLI and the server.
type Container struct {
	Config   *config.Config
	Usecase  usecase.Config
	Store    sqlstore.Store
	Redis    *goredis.Client // nil when the cache is disabled
	Market   *twelvedata.TwelveDataMarket
	Sync     *usecase.SyncUsecase
	Intraday *usecase.IntradayUsecase
	Prices   *usecase.PriceUsecase
	Lock     *lock.RedisLock // nil when Redis is disabled

	closers []func() error
}

// NewContainer validates cfg and builds every component.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ucCfg, err := cfg.Usecase()
	if err != nil {
		return nil, err
	}

	store, closeStore, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	c := &Container{Config: cfg, Usecase: ucCfg, Store: store, closers: []func() error{closeStore}}

	c.Redis = NewRedis(ctx, cfg)
	if c.Redis != nil {
		c.closers = append(c.closers, c.Redis.Close)
		c.Lock = lock.NewRedisLock(c.Redis, "market_sync:lock")
	}
	c.Market = NewMarket(cfg)

	// Repository
	coverageRepo := adapters.NewCoverageRepository(store)
	cachedPrices := cache.NewCachingPriceRepository(c.Redis, cfg.Redis.GetTTL(), ucCfg.Location, adapters.NewPriceRepository(store), "prices")

	// Usecase
	resolver := usecase.NewTargetResolver(adapters.NewTargetRepository(store), ucCfg)
	tracker := usecase.NewCoverageTracker(coverageRepo, ucCfg)
	fetcher := usecase.NewFetcher(c.Market, NewRateLimiter(cfg), ucCfg)
	staging := usecase.NewStagingWriter(adapters.NewStagingRepository(store))
	committer := usecase.NewCommitter(adapters.NewCommitRepository(store), tracker)
	invalidator := usecase.NewInvalidator(adapters.NewGroupRepository(store), cachedPrices, NewRecalcTrigger(cfg), ucCfg)

	c.Sync = usecase.NewSyncUsecase(resolver, tracker, fetcher, staging, committer, invalidator, ucCfg)
	c.Intraday = usecase.NewIntradayUsecase(resolver, tracker, fetcher, staging, committer, invalidator, ucCfg)
	c.Prices = usecase.NewPriceUsecase(cachedPrices, tracker, c.Market)
	return c, nil
}

// HealthChecks returns the dependency probes for /healthz.
func (c *Container) HealthChecks() map[string]handler.Check {
	checks := map[string]handler.Check{
		"store": func(ctx context.Context) error {
			_, err := c.Store.Query(ctx, "SELECT 1")
			return err
		},
	}
	if c.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return infraredis.Ping(ctx, c.Redis) }
	}
	return checks
}

// Close releases every connection in reverse order of creation.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		slog.Error("failed to close resources", "error", err)
		return err
	}
	return nil
}
