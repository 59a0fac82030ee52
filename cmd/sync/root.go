package main

import (
	"github.com/spf13/cobra"

	"market_sync/internal/platform/config"
	"market_sync/internal/platform/logger"
)

var configPaths []string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "sync",
	Short:         "Synchronise daily prices, dividends and FX rates into the portfolio store",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&configPaths, "config", []string{"config.toml"}, "TOML config files, later files win")
	rootCmd.AddCommand(incrementalCmd, refreshCmd, intradayCmd, tokenCmd)
}

// loadConfig reads the config files and installs the process logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPaths...)
	if err != nil {
		return nil, err
	}
	logger.New(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}
