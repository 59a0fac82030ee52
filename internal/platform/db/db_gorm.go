package db

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	retryInterval = 3 * time.Second
)

// Config はローカルストアの接続設定です。DSN が空の場合は個別項目から組み立てます。
type Config struct {
	Driver   string
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	// ConnectTimeout は接続リトライを打ち切るまでの時間です。
	ConnectTimeout time.Duration
	// Migrate が true の場合、起動時にテーブルを AutoMigrate します。
	Migrate bool
}

// BuildDSN は設定から接続文字列を組み立てます。
func BuildDSN(cfg Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	if strings.EqualFold(cfg.Driver, DriverSQLite) {
		if cfg.Name == "" {
			return ":memory:"
		}
		return cfg.Name
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, sslmode)
}

// Opener は DSN から *gorm.DB を開く関数です。テストで差し替えられます。
type Opener func(dsn string) (*gorm.DB, error)

// NewOpener は driver に対応する Opener を返します。
func NewOpener(driver string) (Opener, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	switch strings.ToLower(driver) {
	case DriverPostgres, "":
		return func(dsn string) (*gorm.DB, error) { return gorm.Open(postgres.Open(dsn), cfg) }, nil
	case DriverSQLite:
		return func(dsn string) (*gorm.DB, error) { return gorm.Open(sqlite.Open(dsn), cfg) }, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// ConnectWithRetry は timeout に達するまで retryInterval ごとに接続を試みます。
func ConnectWithRetry(dsn string, timeout time.Duration, opener Opener) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := opener(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().Add(retryInterval).After(deadline) {
			return nil, fmt.Errorf("DB connect failed after %s: %w", timeout, err)
		}
		slog.Warn("DB connect failed, retrying", "error", err)
		time.Sleep(retryInterval)
	}
}

// OpenDB は接続を開き、cfg.Migrate が true なら models を AutoMigrate します。
func OpenDB(cfg Config, models ...any) (*gorm.DB, error) {
	opener, err := NewOpener(cfg.Driver)
	if err != nil {
		return nil, err
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	db, err := ConnectWithRetry(BuildDSN(cfg), timeout, opener)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(cfg.Driver, DriverSQLite) {
		// :memory: は接続ごとに別のデータベースになる
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if cfg.Migrate && len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return db, nil
}
