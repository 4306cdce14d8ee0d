package cmd

import (
	"context"
	"fmt"

	"github.com/apiarylabs/hivewatch/internal/app"
	"github.com/spf13/cobra"
)

func cleanupAlertsCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-alerts",
		Short: "Delete resolved alerts older than alerting.retention.resolveddays",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, env, func(ctx context.Context, a *app.App) error {
				deleted, err := a.Retention.Run(ctx)
				if err != nil {
					return fmt.Errorf("alert cleanup failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d resolved alert(s)\n", deleted)
				return nil
			})
		},
	}
}
