// Package config loads the process configuration from TOML files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	toml "github.com/pelletier/go-toml/v2"

	"market_sync/internal/feature/marketsync/domain/entity"
	"market_sync/internal/feature/marketsync/usecase"
	"market_sync/internal/platform/db"
	"market_sync/internal/shared/retry"
)

const (
	BackendD1   = "d1"
	BackendGorm = "gorm"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the configuration of both the sync CLI and the read API server.
type Config struct {
	Store    StoreConfig    `toml:"store"`
	Database DatabaseConfig `toml:"database"`
	Provider ProviderConfig `toml:"provider"`
	Recalc   RecalcConfig   `toml:"recalc"`
	Redis    RedisConfig    `toml:"redis"`
	Sync     SyncConfig     `toml:"sync"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// StoreConfig selects the SQL backend. "d1" talks to the D1 worker over HTTP,
// "gorm" uses the [database] section.
type StoreConfig struct {
	Backend string `toml:"backend"`
	URL     string `toml:"url"`
	APIKey  string `toml:"api_key"`
	Timeout string `toml:"timeout"`
}

func (c *StoreConfig) GetTimeout() time.Duration {
	return duration(c.Timeout, 30*time.Second)
}

type DatabaseConfig struct {
	Driver         string `toml:"driver"`
	DSN            string `toml:"dsn"`
	Host           string `toml:"host"`
	Port           string `toml:"port"`
	User           string `toml:"user"`
	Password       string `toml:"password"`
	Name           string `toml:"name"`
	SSLMode        string `toml:"sslmode"`
	ConnectTimeout string `toml:"connect_timeout"`
	Migrate        bool   `toml:"migrate"`
}

// DB converts the section to the db package's connection settings.
func (c *DatabaseConfig) DB() db.Config {
	return db.Config{
		Driver:         c.Driver,
		DSN:            c.DSN,
		Host:           c.Host,
		Port:           c.Port,
		User:           c.User,
		Password:       c.Password,
		Name:           c.Name,
		SSLMode:        c.SSLMode,
		ConnectTimeout: duration(c.ConnectTimeout, 30*time.Second),
		Migrate:        c.Migrate,
	}
}

// ProviderConfig configures the Twelve Data client.
type ProviderConfig struct {
	BaseURL           string `toml:"base_url"`
	APIKey            string `toml:"api_key"`
	Timeout           string `toml:"timeout"`
	RequestsPerMinute int    `toml:"requests_per_minute"` // 0 disables rate limiting
	BatchSize         int    `toml:"batch_size"`
	MaxWorkers        int    `toml:"max_workers"`
}

func (c *ProviderConfig) GetTimeout() time.Duration {
	return duration(c.Timeout, 30*time.Second)
}

// RecalcConfig configures the downstream recalculation endpoint. An empty URL disables it.
type RecalcConfig struct {
	URL               string `toml:"url"`
	APIKey            string `toml:"api_key"`
	ServiceAccountKey string `toml:"service_account_key"`
	PerUser           bool   `toml:"per_user"`
	Timeout           string `toml:"timeout"`
}

func (c *RecalcConfig) GetTimeout() time.Duration {
	return duration(c.Timeout, 30*time.Second)
}

// RedisConfig configures the read cache. An empty host disables it.
type RedisConfig struct {
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	TTL      string `toml:"ttl"`     // empty means until the next 08:00 in the sync timezone
	Timeout  string `toml:"timeout"` // per-command read/write timeout
}

func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c *RedisConfig) Addr() string {
	port := c.Port
	if port == "" {
		port = "6379"
	}
	return c.Host + ":" + port
}

func (c *RedisConfig) GetTTL() time.Duration {
	return duration(c.TTL, 0)
}

// GetTimeout returns 0 when unset so the client default applies.
func (c *RedisConfig) GetTimeout() time.Duration {
	return duration(c.Timeout, 0)
}

type SyncConfig struct {
	LocalCurrency   string      `toml:"local_currency"`
	FXCurrencies    []string    `toml:"fx_currencies"`
	RefetchToday    bool        `toml:"refetch_today"`
	EpochDefault    string      `toml:"epoch_default"` // YYYY-MM-DD, empty disables the fallback
	Timezone        string      `toml:"timezone"`
	RefreshStrategy string      `toml:"refresh_strategy"`
	DivestedEpsilon float64     `toml:"divested_epsilon"`
	RunTimeout      string      `toml:"run_timeout"`
	Retry           RetryConfig `toml:"retry"`
}

func (c *SyncConfig) GetRunTimeout() time.Duration {
	return duration(c.RunTimeout, 30*time.Minute)
}

// Location loads the configured timezone.
func (c *SyncConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

type RetryConfig struct {
	MaxAttempts int    `toml:"max_attempts"`
	Strategy    string `toml:"strategy"`
	Delay       string `toml:"delay"`
	MaxDelay    string `toml:"max_delay"`
}

// Policy converts the section to a retry.Policy, falling back to the defaults.
func (c *RetryConfig) Policy() retry.Policy {
	p := retry.DefaultPolicy()
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	if c.Strategy != "" {
		p.Strategy = retry.Strategy(strings.ToLower(c.Strategy))
	}
	p.Delay = duration(c.Delay, p.Delay)
	p.MaxDelay = duration(c.MaxDelay, p.MaxDelay)
	return p
}

type ServerConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	JWTSecret   string `toml:"jwt_secret"`
	TokenExpiry string `toml:"token_expiry"`

	// AllowedSubjects は読み取りAPIを呼べるサービス名。空なら署名が正しい全サービスを許可
	AllowedSubjects []string `toml:"allowed_subjects"`
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *ServerConfig) GetTokenExpiry() time.Duration {
	return duration(c.TokenExpiry, 24*time.Hour)
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a configuration with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: BackendD1,
			Timeout: "30s",
		},
		Database: DatabaseConfig{
			Driver:         db.DriverPostgres,
			Port:           "5432",
			SSLMode:        "disable",
			ConnectTimeout: "30s",
		},
		Provider: ProviderConfig{
			BaseURL:           "https://api.twelvedata.com",
			Timeout:           "30s",
			RequestsPerMinute: 55,
			BatchSize:         usecase.DefaultBatchSize,
			MaxWorkers:        usecase.DefaultMaxWorkers,
		},
		Recalc: RecalcConfig{
			Timeout: "30s",
		},
		Redis: RedisConfig{
			Port: "6379",
		},
		Sync: SyncConfig{
			LocalCurrency:   usecase.DefaultLocalCurrency,
			FXCurrencies:    append([]string(nil), usecase.DefaultFXCurrencies...),
			RefetchToday:    true,
			EpochDefault:    "2000-01-01",
			Timezone:        "Asia/Taipei",
			RefreshStrategy: string(entity.StrategyReplace),
			DivestedEpsilon: usecase.DefaultDivestedEpsilon,
			RunTimeout:      "30m",
			Retry: RetryConfig{
				MaxAttempts: retry.DefaultMaxAttempts,
				Strategy:    string(retry.StrategyFixed),
				Delay:       "5s",
				MaxDelay:    "1m",
			},
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			TokenExpiry: "24h",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the given TOML files in order on top of the defaults, then applies
// environment overrides. Missing files are skipped.
func Load(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("D1_WORKER_URL"); v != "" {
		config.Store.URL = v
	}
	if v := os.Getenv("D1_API_KEY"); v != "" {
		config.Store.APIKey = v
	}

	if v := os.Getenv("GCP_API_URL"); v != "" {
		config.Recalc.URL = v
	}
	if v := os.Getenv("SERVICE_ACCOUNT_KEY"); v != "" {
		config.Recalc.ServiceAccountKey = v
	}
	// the recalculation service shares the worker's API key unless configured separately
	if config.Recalc.APIKey == "" {
		config.Recalc.APIKey = config.Store.APIKey
	}

	if v := os.Getenv("TWELVE_DATA_API_KEY"); v != "" {
		config.Provider.APIKey = v
	}
	if v := os.Getenv("TWELVE_DATA_BASE_URL"); v != "" {
		config.Provider.BaseURL = v
	}

	if v := os.Getenv("REDIS_HOST"); v != "" {
		config.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		config.Redis.Port = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		config.Redis.Password = v
	}

	if v := os.Getenv("DB_DRIVER"); v != "" {
		config.Database.Driver = v
		config.Store.Backend = BackendGorm
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		config.Database.DSN = v
		config.Store.Backend = BackendGorm
	}

	if v := os.Getenv("JWT_SECRET"); v != "" {
		config.Server.JWTSecret = v
	}
	if v := os.Getenv("JWT_ALLOWED_SUBJECTS"); v != "" {
		config.Server.AllowedSubjects = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				config.Server.AllowedSubjects = append(config.Server.AllowedSubjects, s)
			}
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Log.Level = v
	}
	if v := os.Getenv("SYNC_REFETCH_TODAY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Sync.RefetchToday = b
		}
	}
}

// Validate reports every missing or malformed setting the sync needs.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Backend {
	case BackendD1:
		if c.Store.URL == "" {
			problems = append(problems, "store.url (D1_WORKER_URL) is required")
		}
		if c.Store.APIKey == "" {
			problems = append(problems, "store.api_key (D1_API_KEY) is required")
		}
	case BackendGorm:
		if c.Database.DSN == "" && c.Database.Host == "" && !strings.EqualFold(c.Database.Driver, db.DriverSQLite) {
			problems = append(problems, "database.dsn (DB_DSN) or database.host is required")
		}
		if _, err := db.NewOpener(c.Database.Driver); err != nil {
			problems = append(problems, err.Error())
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store.backend %q", c.Store.Backend))
	}

	if c.Provider.APIKey == "" {
		problems = append(problems, "provider.api_key (TWELVE_DATA_API_KEY) is required")
	}

	switch entity.Strategy(c.Sync.RefreshStrategy) {
	case entity.StrategyReplace, entity.StrategySwap:
	default:
		problems = append(problems, fmt.Sprintf("sync.refresh_strategy must be replace or swap, got %q", c.Sync.RefreshStrategy))
	}
	if _, err := c.Sync.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("sync.timezone: %v", err))
	}
	if c.Sync.EpochDefault != "" {
		if _, err := entity.ParseDate(c.Sync.EpochDefault); err != nil {
			problems = append(problems, fmt.Sprintf("sync.epoch_default: %v", err))
		}
	}
	switch retry.Strategy(strings.ToLower(c.Sync.Retry.Strategy)) {
	case "", retry.StrategyFixed, retry.StrategyExponential:
	default:
		problems = append(problems, fmt.Sprintf("sync.retry.strategy must be fixed or exponential, got %q", c.Sync.Retry.Strategy))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Usecase converts the [sync] and [provider] sections to the usecase configuration.
// Call Validate first; malformed values are reported here as well.
func (c *Config) Usecase() (usecase.Config, error) {
	loc, err := c.Sync.Location()
	if err != nil {
		return usecase.Config{}, fmt.Errorf("%w: sync.timezone: %v", ErrInvalidConfig, err)
	}
	var epoch time.Time
	if c.Sync.EpochDefault != "" {
		if epoch, err = entity.ParseDate(c.Sync.EpochDefault); err != nil {
			return usecase.Config{}, fmt.Errorf("%w: sync.epoch_default: %v", ErrInvalidConfig, err)
		}
	}

	cfg := usecase.DefaultConfig()
	cfg.LocalCurrency = strings.ToUpper(c.Sync.LocalCurrency)
	cfg.FXCurrencies = c.Sync.FXCurrencies
	cfg.RefetchToday = c.Sync.RefetchToday
	cfg.EpochDefault = epoch
	cfg.RefreshStrategy = entity.Strategy(c.Sync.RefreshStrategy)
	cfg.BatchSize = c.Provider.BatchSize
	cfg.MaxWorkers = c.Provider.MaxWorkers
	cfg.Location = loc
	cfg.RecalcPerUser = c.Recalc.PerUser
	cfg.Retry = c.Sync.Retry.Policy()
	if c.Sync.DivestedEpsilon > 0 {
		cfg.DivestedEpsilon = c.Sync.DivestedEpsilon
	}
	return cfg, nil
}

// duration parses s, returning def when s is empty or malformed.
func duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
