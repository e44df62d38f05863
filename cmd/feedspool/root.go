// ABOUTME: Root Cobra command and global flags
// ABOUTME: Wires up configuration, logging, and the SQLite store

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feedspool/feedspool/internal/config"
	"github.com/feedspool/feedspool/internal/logging"
	"github.com/feedspool/feedspool/internal/storage"
)

var (
	cfg    *config.Config
	logger *zap.Logger
	store  *storage.SQLiteStore
)

var rootCmd = &cobra.Command{
	Use:   "feedspool",
	Short: "Feed aggregation engine with a GraphQL API",
	Long: `feedspool polls RSS/Atom/JSON feeds with conditional-GET caching,
stores the normalized feeds and entries in SQLite, and serves the
corpus over GraphQL.

Settings layer from built-in defaults, an optional config file in the
working directory, APP_-prefixed environment variables, and flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.Init()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := v.BindPFlag(config.KeyDebug, cmd.Root().PersistentFlags().Lookup("debug")); err != nil {
			return err
		}
		if f := cmd.Flags().Lookup("feeds"); f != nil {
			if err := v.BindPFlag(config.KeyFetchFeedsFilename, f); err != nil {
				return err
			}
		}
		cfg = config.Snapshot(v)

		logger, err = logging.New(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}

		store, err = storage.NewSQLiteStore(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store != nil {
			if err := store.Close(); err != nil {
				return fmt.Errorf("failed to close database: %w", err)
			}
		}
		if logger != nil {
			_ = logger.Sync()
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "enable debug logging")
}
