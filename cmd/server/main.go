package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"

	"market_sync/internal/app/di"
	"market_sync/internal/app/router"
	pricehandler "market_sync/internal/feature/marketsync/transport/handler"
	"market_sync/internal/platform/config"
	"market_sync/internal/platform/http/handler"
	"market_sync/internal/platform/logger"
)

func main() {
	configPaths := flag.String("config", "config.toml", "comma-separated TOML config files, later files win")
	flag.Parse()

	cfg, err := config.Load(strings.Split(*configPaths, ",")...)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.New(cfg.Log.Level, cfg.Log.Format)

	c, err := di.NewContainer(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	// Handler
	priceH := pricehandler.NewPriceHandler(c.Prices)

	// ルータ生成
	r := router.NewRouter(priceH, handler.NewHealth(c.HealthChecks()), cfg.Server.JWTSecret, cfg.Server.AllowedSubjects...)

	// JWT_SECRETチェック（開発中の注意喚起）
	if cfg.Server.JWTSecret == "" {
		slog.Warn("JWT_SECRET is not set. Every authenticated route will reject requests.")
	}

	slog.Info("server listening", "addr", cfg.Server.Addr())
	if err := r.Run(cfg.Server.Addr()); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
