package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apiarylabs/hivewatch/internal/alerting"
	"github.com/apiarylabs/hivewatch/internal/app"
	"github.com/spf13/cobra"
)

func checkAlertsCommand(env *environment) *cobra.Command {
	var hiveID string

	cmd := &cobra.Command{
		Use:   "check-alerts",
		Short: "Evaluate the latest readings and create alerts",
		Long: `Evaluates every active, monitored hive once, or a single hive with --hive-id.
Meant to be run by an external scheduler every alerting.interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, env, func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				start := time.Now()

				if hiveID != "" {
					n, err := a.Engine.Evaluate(ctx, hiveID)
					if errors.Is(err, alerting.ErrHiveNotMonitored) {
						fmt.Fprintf(out, "Warning: hive %s is inactive or has no active monitoring device, nothing to check\n", hiveID)
						return nil
					}
					if err != nil {
						return fmt.Errorf("alert check failed for hive %s: %w", hiveID, err)
					}
					fmt.Fprintf(out, "Created %d alerts for hive %s in %.2f seconds\n", n, hiveID, time.Since(start).Seconds())
					return nil
				}

				res, err := a.Engine.Sweep(ctx)
				if err != nil {
					return fmt.Errorf("alert check failed: %w", err)
				}
				fmt.Fprintf(out, "Checked %d hives (%d failed). Created %d alerts in %.2f seconds\n",
					res.Hives, res.Failed, res.AlertsCreated, res.Duration.Seconds())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&hiveID, "hive-id", "", "check a single hive")
	return cmd
}
