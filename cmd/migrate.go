package cmd

import (
	"context"
	"fmt"

	"github.com/apiarylabs/hivewatch/internal/app"
	"github.com/spf13/cobra"
)

func migrateCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, env, func(ctx context.Context, a *app.App) error {
				if err := a.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date (%s)\n", env.settings.Database.Driver)
				return nil
			})
		},
	}
}
