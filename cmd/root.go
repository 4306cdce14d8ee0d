// Package cmd implements the hivewatch command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/apiarylabs/hivewatch/internal/app"
	"github.com/apiarylabs/hivewatch/internal/conf"
	"github.com/apiarylabs/hivewatch/internal/logger"
	"github.com/spf13/cobra"
)

// environment is filled in by the root command before a subcommand runs.
type environment struct {
	configPath string
	logLevel   string
	settings   *conf.Settings
	log        logger.Logger
}

// open builds the application from the loaded settings.
func (e *environment) open(ctx context.Context) (*app.App, error) {
	return app.New(ctx, e.settings, e.log)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// RootCommand builds the command tree.
func RootCommand() *cobra.Command {
	env := &environment{}

	root := &cobra.Command{
		Use:           "hivewatch",
		Short:         "Hive telemetry alerting and monitoring state maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := conf.Load(env.configPath)
			if err != nil {
				return err
			}
			if env.logLevel != "" {
				settings.Log.Level = env.logLevel
			}
			log, err := logger.New(logger.Config{Level: settings.Log.Level, Format: settings.Log.Format})
			if err != nil {
				return err
			}
			env.settings = settings
			env.log = log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if env.log != nil {
				_ = env.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&env.configPath, "config", "", "config file (default ./hivewatch.yaml or $HOME/.config/hivewatch/hivewatch.yaml)")
	root.PersistentFlags().StringVar(&env.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		serveCommand(env),
		checkAlertsCommand(env),
		syncMonitoringCommand(env),
		cleanupAlertsCommand(env),
		migrateCommand(env),
		alertsCommand(env),
		devicesCommand(env),
	)
	return root
}

// withApp opens the application for the duration of run.
func withApp(cmd *cobra.Command, env *environment, run func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := env.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			env.log.Warn("failed to close resources", logger.Error(err))
		}
	}()
	return run(ctx, a)
}
