// Command nanocloud-server starts the nanocloud REST API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/nanocloud/internal/app"
	"github.com/and161185/nanocloud/internal/config"
	"github.com/and161185/nanocloud/internal/migrate"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "nanocloud-server",
		Short:         "nanocloud file storage API server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to a yaml config file")

	root.AddCommand(newServeCommand(), newMigrateCommand())
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until SIGINT/SIGTERM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger, err := app.NewLogger(cfg.Server.Dev)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()
			logger.Info("starting",
				zap.String("version", version),
				zap.String("buildDate", buildDate),
				zap.String("addr", cfg.Server.Addr()),
				zap.String("storage", cfg.Storage.Driver),
				zap.String("limiter", cfg.Limiter.Driver),
				zap.String("configFile", cfg.ConfigFile),
			)

			// Context with OS signals
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(context.Background()); err != nil {
					logger.Warn("close", zap.Error(err))
				}
			}()

			if err := a.Run(ctx); err != nil {
				logger.Error("server error", zap.Error(err))
				return err
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	run := func(name string, fn func(context.Context, string) error) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: "goose " + name,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				if cfg.Storage.DatabaseURL == "" {
					return errors.New("DATABASE_URL is not set")
				}
				return fn(cmd.Context(), cfg.Storage.DatabaseURL)
			},
		}
	}

	cmd.AddCommand(
		run("up", migrate.Up),
		run("down", migrate.Down),
		run("status", migrate.Status),
	)
	return cmd
}
