package di

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market_sync/internal/platform/config"
	"market_sync/internal/platform/db"
)

func sqliteConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Store.Backend = config.BackendGorm
	cfg.Database.Driver = db.DriverSQLite
	cfg.Database.DSN = ":memory:"
	cfg.Database.ConnectTimeout = "1s"
	cfg.Database.Migrate = true
	cfg.Provider.APIKey = "test-key"
	return cfg
}

func TestNewContainer_GormBackend(t *testing.T) {
	ctx := context.Background()

	c, err := NewContainer(ctx, sqliteConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.NotNil(t, c.Sync)
	assert.NotNil(t, c.Intraday)
	assert.NotNil(t, c.Prices)
	assert.Nil(t, c.Redis, "redis host is empty")
	assert.Nil(t, c.Lock, "lock requires redis")

	checks := c.HealthChecks()
	require.Contains(t, checks, "store")
	assert.NotContains(t, checks, "redis")
	assert.NoError(t, checks["store"](ctx))
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"error: missing provider key", func(c *config.Config) { c.Provider.APIKey = "" }},
		{"error: unknown backend", func(c *config.Config) { c.Store.Backend = "mysql" }},
		{"error: d1 without url", func(c *config.Config) { c.Store.Backend = config.BackendD1 }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := sqliteConfig()
			tt.mutate(cfg)

			c, err := NewContainer(context.Background(), cfg)
			assert.Nil(t, c)
			assert.True(t, errors.Is(err, config.ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestNewStore_D1(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Store.URL = "http://127.0.0.1:0"
	cfg.Store.APIKey = "k"

	store, closeFn, err := NewStore(cfg)
	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.NoError(t, closeFn())
}

func TestNewRecalcTrigger(t *testing.T) {
	cfg := config.NewDefaultConfig()
	assert.Nil(t, NewRecalcTrigger(cfg), "disabled without url")

	cfg.Recalc.URL = "http://127.0.0.1:0/recalc"
	cfg.Recalc.APIKey = "k"
	assert.NotNil(t, NewRecalcTrigger(cfg))
}

func TestNewRedis_Disabled(t *testing.T) {
	assert.Nil(t, NewRedis(context.Background(), config.NewDefaultConfig()))
}
