package cmd

import (
	"context"

	"github.com/apiarylabs/hivewatch/internal/api"
	"github.com/apiarylabs/hivewatch/internal/app"
	"github.com/apiarylabs/hivewatch/internal/logger"
	"github.com/apiarylabs/hivewatch/internal/schedule"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the alert sweep and retention on their intervals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, env, func(ctx context.Context, a *app.App) error {
				if err := a.Migrate(ctx); err != nil {
					return err
				}
				return serve(ctx, a)
			})
		},
	}
}

func serve(ctx context.Context, a *app.App) error {
	s := a.Settings
	runner := schedule.NewRunner(a.Metrics, a.Log)
	err := runner.Add(schedule.Job{
		Name:       "check-alerts",
		Interval:   s.Alerting.Interval.Std(),
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			_, err := a.Engine.Sweep(ctx)
			return err
		},
	})
	if err != nil {
		return err
	}
	if s.Alerting.Retention.ResolvedDays > 0 {
		err = runner.Add(schedule.Job{
			Name:     "cleanup-alerts",
			Interval: s.Alerting.Retention.Interval.Std(),
			Run: func(ctx context.Context) error {
				_, err := a.Retention.Run(ctx)
				return err
			},
		})
		if err != nil {
			return err
		}
	}

	runner.Start(ctx)
	defer runner.Stop()

	if !s.Server.Enabled {
		<-ctx.Done()
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		srv := api.NewServer(s.Server.Listen, a.Registry, map[string]api.HealthCheck{"database": a.Ping}, a.Log)
		return srv.Run(ctx)
	})
	err = g.Wait()
	a.Log.Info("shutting down", logger.Bool("server_error", err != nil))
	return err
}
