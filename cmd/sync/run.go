package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"market_sync/internal/app/di"
	"market_sync/internal/feature/marketsync/domain/entity"
	"market_sync/internal/feature/marketsync/usecase"
	"market_sync/internal/platform/config"
)

// runLockName is shared by every mode; all of them write the staging tables.
const runLockName = "sync"

var refreshStrategy string

// incrementalCmd fetches only the dates missing since the last run.
var incrementalCmd = &cobra.Command{
	Use:   "incremental",
	Short: "Fetch prices and dividends newer than each symbol's coverage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context(), nil, func(ctx context.Context, c *di.Container) (entity.RunSummary, error) {
			return c.Sync.Run(ctx, entity.ModeIncremental)
		})
	},
}

// refreshCmd rebuilds every symbol's history from its start date.
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refetch the full history of every symbol and replace stored rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		override := func(cfg *config.Config) {
			if refreshStrategy != "" {
				cfg.Sync.RefreshStrategy = refreshStrategy
			}
		}
		return runSync(cmd.Context(), override, func(ctx context.Context, c *di.Container) (entity.RunSummary, error) {
			return c.Sync.Run(ctx, entity.ModeFullRefresh)
		})
	},
}

// intradayCmd writes today's latest quote for every symbol.
var intradayCmd = &cobra.Command{
	Use:   "intraday",
	Short: "Record today's latest quote for every tracked symbol",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context(), nil, func(ctx context.Context, c *di.Container) (entity.RunSummary, error) {
			return c.Intraday.Run(ctx)
		})
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshStrategy, "strategy", "", "replace or swap; overrides sync.refresh_strategy")
}

func runSync(parent context.Context, override func(*config.Config), run func(context.Context, *di.Container) (entity.RunSummary, error)) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if override != nil {
		override(cfg)
	}

	ctx, cancel := context.WithTimeout(parent, cfg.Sync.GetRunTimeout())
	defer cancel()

	c, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer func() { _ = c.Close() }()

	if c.Lock != nil {
		owner := uuid.NewString()
		if err := c.Lock.Acquire(ctx, runLockName, owner, cfg.Sync.GetRunTimeout()); err != nil {
			return err
		}
		defer func() {
			if err := c.Lock.Release(context.Background(), runLockName, owner); err != nil {
				slog.Warn("failed to release run lock", "error", err)
			}
		}()
	} else {
		slog.Warn("Redis unavailable. Running without the run lock.")
	}

	summary, err := run(ctx, c)
	logSummary(summary)
	if errors.Is(err, usecase.ErrNoTargets) {
		slog.Info("nothing to sync")
		return nil
	}
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d symbols failed", summary.Failed, summary.Planned)
	}
	return nil
}

func logSummary(s entity.RunSummary) {
	slog.Info("sync finished",
		"run_id", s.RunID,
		"mode", s.Mode,
		"planned", s.Planned,
		"succeeded", s.Succeeded,
		"skipped", s.Skipped,
		"failed", s.Failed,
		"changed", len(s.Changed),
	)
	for sym, reason := range s.Failures {
		slog.Warn("symbol failed", "run_id", s.RunID, "symbol", sym, "reason", reason)
	}
}
