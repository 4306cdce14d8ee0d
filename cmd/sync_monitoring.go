package cmd

import (
	"context"
	"fmt"

	"github.com/apiarylabs/hivewatch/internal/app"
	"github.com/apiarylabs/hivewatch/internal/monitoring"
	"github.com/spf13/cobra"
)

func syncMonitoringCommand(env *environment) *cobra.Command {
	var opts monitoring.ResyncOptions

	cmd := &cobra.Command{
		Use:   "sync-monitoring",
		Short: "Repair has_monitoring flags that drifted from device assignments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, env, func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				if opts.DryRun {
					fmt.Fprintln(out, "DRY RUN MODE - no changes will be made")
				}

				report, err := a.Sync.Resync(ctx, a.Store, opts)
				if err != nil {
					return err
				}

				for _, d := range report.Drifted {
					fmt.Fprintf(out, "Hive %q (ID: %s): %t -> %t (%d active device(s))\n",
						d.Name, d.HiveID, d.Stored, d.Actual, d.ActiveDevices)
				}
				verb := "Updated"
				if opts.DryRun {
					verb = "Would update"
				}
				fmt.Fprintf(out, "%s %d out of %d hive(s)\n", verb, len(report.Drifted), report.Total)

				fmt.Fprintln(out, "\n--- Summary ---")
				fmt.Fprintf(out, "Total hives: %d\n", report.Summary.Total)
				fmt.Fprintf(out, "Hives with has_monitoring=true: %d\n", report.Summary.Flagged)
				fmt.Fprintf(out, "Hives with active devices: %d\n", report.Summary.WithActiveDevices)
				if report.InSync() {
					fmt.Fprintln(out, "All hive statuses are synchronized")
				} else {
					fmt.Fprintf(out, "Mismatch detected: %d hive(s) need synchronization\n", report.Summary.Mismatched)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report drift without writing")
	cmd.Flags().StringVar(&opts.HiveID, "hive-id", "", "only process this hive")
	return cmd
}
