package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market_sync/internal/feature/marketsync/domain/entity"
	"market_sync/internal/shared/retry"
)

var envKeys = []string{
	"D1_WORKER_URL", "D1_API_KEY", "GCP_API_URL", "SERVICE_ACCOUNT_KEY",
	"TWELVE_DATA_API_KEY", "TWELVE_DATA_BASE_URL", "REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD",
	"DB_DRIVER", "DB_DSN", "JWT_SECRET", "JWT_ALLOWED_SUBJECTS", "LOG_LEVEL", "SYNC_REFETCH_TODAY",
}

// clearEnv blanks every override so the host environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validConfig() *Config {
	c := NewDefaultConfig()
	c.Store.URL = "https://worker.example"
	c.Store.APIKey = "key"
	c.Provider.APIKey = "td"
	return c
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendD1, c.Store.Backend)
	assert.True(t, c.Sync.RefetchToday)
	assert.Equal(t, "replace", c.Sync.RefreshStrategy)
	assert.Equal(t, 30*time.Minute, c.Sync.GetRunTimeout())
	assert.Equal(t, 30*time.Second, c.Store.GetTimeout())
	assert.False(t, c.Redis.Enabled())
}

func TestLoad_MergesFilesInOrder(t *testing.T) {
	clearEnv(t)

	base := writeFile(t, "base.toml", `
[store]
url = "https://worker.example"

[sync]
refresh_strategy = "swap"
fx_currencies = ["USD"]

[sync.retry]
max_attempts = 5
delay = "2s"
`)
	local := writeFile(t, "local.toml", `
[sync]
refresh_strategy = "replace"
run_timeout = "10m"
`)

	c, err := Load(base, "", filepath.Join(t.TempDir(), "missing.toml"), local)
	require.NoError(t, err)

	assert.Equal(t, "https://worker.example", c.Store.URL)
	assert.Equal(t, "replace", c.Sync.RefreshStrategy)
	assert.Equal(t, []string{"USD"}, c.Sync.FXCurrencies)
	assert.Equal(t, 10*time.Minute, c.Sync.GetRunTimeout())

	p := c.Sync.Retry.Policy()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.Delay)
	assert.Equal(t, retry.StrategyFixed, p.Strategy)
}

func TestLoad_ParseError(t *testing.T) {
	clearEnv(t)

	bad := writeFile(t, "bad.toml", "[store\nurl = ")
	_, err := Load(bad)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("D1_WORKER_URL", "https://env-worker")
	t.Setenv("D1_API_KEY", "env-key")
	t.Setenv("GCP_API_URL", "https://recalc")
	t.Setenv("SERVICE_ACCOUNT_KEY", "svc")
	t.Setenv("TWELVE_DATA_API_KEY", "td-key")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("JWT_ALLOWED_SUBJECTS", "portfolio-api, dashboard,")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SYNC_REFETCH_TODAY", "false")

	file := writeFile(t, "c.toml", `
[store]
url = "https://file-worker"
`)
	c, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "https://env-worker", c.Store.URL)
	assert.Equal(t, "env-key", c.Store.APIKey)
	assert.Equal(t, "https://recalc", c.Recalc.URL)
	assert.Equal(t, "env-key", c.Recalc.APIKey)
	assert.Equal(t, "svc", c.Recalc.ServiceAccountKey)
	assert.Equal(t, "td-key", c.Provider.APIKey)
	assert.Equal(t, "redis:6380", c.Redis.Addr())
	assert.True(t, c.Redis.Enabled())
	assert.Equal(t, "jwt", c.Server.JWTSecret)
	assert.Equal(t, []string{"portfolio-api", "dashboard"}, c.Server.AllowedSubjects)
	assert.Equal(t, "debug", c.Log.Level)
	assert.False(t, c.Sync.RefetchToday)
	assert.NoError(t, c.Validate())
}

func TestLoad_DatabaseEnvSelectsGorm(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "file:test.db")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendGorm, c.Store.Backend)
	dbc := c.Database.DB()
	assert.Equal(t, "sqlite", dbc.Driver)
	assert.Equal(t, "file:test.db", dbc.DSN)
	assert.Equal(t, 30*time.Second, dbc.ConnectTimeout)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "success: d1 backend", mutate: func(c *Config) {}},
		{
			name:    "error: d1 without url",
			mutate:  func(c *Config) { c.Store.URL = "" },
			wantErr: true,
		},
		{
			name:    "error: d1 without key",
			mutate:  func(c *Config) { c.Store.APIKey = "" },
			wantErr: true,
		},
		{
			name: "success: gorm sqlite without dsn",
			mutate: func(c *Config) {
				c.Store = StoreConfig{Backend: BackendGorm}
				c.Database.Driver = "sqlite"
			},
		},
		{
			name: "error: gorm postgres without dsn or host",
			mutate: func(c *Config) {
				c.Store = StoreConfig{Backend: BackendGorm}
			},
			wantErr: true,
		},
		{
			name: "error: gorm unknown driver",
			mutate: func(c *Config) {
				c.Store = StoreConfig{Backend: BackendGorm}
				c.Database.Driver = "oracle"
				c.Database.DSN = "x"
			},
			wantErr: true,
		},
		{
			name:    "error: unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "s3" },
			wantErr: true,
		},
		{
			name:    "error: missing provider key",
			mutate:  func(c *Config) { c.Provider.APIKey = "" },
			wantErr: true,
		},
		{
			name:    "error: upsert is not a refresh strategy",
			mutate:  func(c *Config) { c.Sync.RefreshStrategy = "upsert" },
			wantErr: true,
		},
		{
			name:    "error: unknown timezone",
			mutate:  func(c *Config) { c.Sync.Timezone = "Mars/Olympus" },
			wantErr: true,
		},
		{
			name:    "error: malformed epoch",
			mutate:  func(c *Config) { c.Sync.EpochDefault = "01/01/2000" },
			wantErr: true,
		},
		{
			name:    "error: unknown retry strategy",
			mutate:  func(c *Config) { c.Sync.Retry.Strategy = "jitter" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Usecase(t *testing.T) {
	t.Parallel()

	c := validConfig()
	c.Sync.LocalCurrency = "twd"
	c.Sync.RefetchToday = false
	c.Sync.RefreshStrategy = "swap"
	c.Sync.Timezone = "Asia/Tokyo"
	c.Provider.BatchSize = 8
	c.Provider.MaxWorkers = 2
	c.Recalc.PerUser = true
	c.Sync.Retry = RetryConfig{MaxAttempts: 4, Strategy: "exponential", Delay: "100ms"}

	uc, err := c.Usecase()
	require.NoError(t, err)

	assert.Equal(t, "TWD", uc.LocalCurrency)
	assert.False(t, uc.RefetchToday)
	assert.Equal(t, entity.StrategySwap, uc.RefreshStrategy)
	assert.Equal(t, "Asia/Tokyo", uc.Location.String())
	assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), uc.EpochDefault)
	assert.Equal(t, 8, uc.BatchSize)
	assert.Equal(t, 2, uc.MaxWorkers)
	assert.True(t, uc.RecalcPerUser)
	assert.Equal(t, 4, uc.Retry.MaxAttempts)
	assert.Equal(t, retry.StrategyExponential, uc.Retry.Strategy)
	assert.Equal(t, 100*time.Millisecond, uc.Retry.Delay)
}

func TestConfig_Usecase_EmptyEpoch(t *testing.T) {
	t.Parallel()

	c := validConfig()
	c.Sync.EpochDefault = ""

	uc, err := c.Usecase()
	require.NoError(t, err)
	assert.True(t, uc.EpochDefault.IsZero())
}

func TestDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Minute, duration("", time.Minute))
	assert.Equal(t, time.Minute, duration("soon", time.Minute))
	assert.Equal(t, 90*time.Second, duration("1m30s", time.Minute))
}
