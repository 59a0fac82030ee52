// Package di provides dependency injection factories for creating application components.
package di

import (
	"time"

	"market_sync/internal/feature/marketsync/usecase"
	"market_sync/internal/platform/config"
	"market_sync/internal/platform/externalapi/recalc"
	"market_sync/internal/platform/externalapi/twelvedata"
	infrahttp "market_sync/internal/platform/http"
	"market_sync/internal/shared/ratelimiter"
)

// NewMarket creates a fully configured TwelveDataMarket with HTTP client.
func NewMarket(cfg *config.Config) *twelvedata.TwelveDataMarket {
	tdCfg := twelvedata.Config{
		APIKey:  cfg.Provider.APIKey,
		BaseURL: cfg.Provider.BaseURL,
		Timeout: cfg.Provider.GetTimeout(),
	}
	httpClient := infrahttp.NewHTTPClient(tdCfg.Timeout)
	return twelvedata.NewTwelveDataMarket(tdCfg, httpClient)
}

// NewRateLimiter limits provider calls to the configured requests per minute.
func NewRateLimiter(cfg *config.Config) *ratelimiter.RateLimiter {
	return ratelimiter.NewRateLimiter(cfg.Provider.RequestsPerMinute, time.Minute)
}

// NewRecalcTrigger returns nil when no recalculation endpoint is configured.
func NewRecalcTrigger(cfg *config.Config) usecase.RecalcTrigger {
	if cfg.Recalc.URL == "" {
		return nil
	}
	opts := []recalc.Option{
		recalc.WithHTTPClient(infrahttp.NewHTTPClient(cfg.Recalc.GetTimeout())),
		recalc.WithRetryPolicy(cfg.Sync.Retry.Policy()),
	}
	if cfg.Recalc.ServiceAccountKey != "" {
		opts = append(opts, recalc.WithServiceAccountKey(cfg.Recalc.ServiceAccountKey))
	}
	return recalc.NewClient(cfg.Recalc.URL, cfg.Recalc.APIKey, opts...)
}
