package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/apiarylabs/hivewatch/internal/app"
	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"github.com/apiarylabs/hivewatch/internal/datastore/repository"
	"github.com/spf13/cobra"
)

func alertsCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List, resolve and reopen alerts",
	}
	cmd.AddCommand(
		alertsListCommand(env),
		alertsSummaryCommand(env),
		alertsResolveCommand(env),
		alertsReopenCommand(env),
	)
	return cmd
}

func alertsListCommand(env *environment) *cobra.Command {
	var (
		filter     repository.AlertFilter
		alertType  string
		severity   string
		unresolved bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter.AlertType = entities.AlertType(alertType)
			if alertType != "" && !filter.AlertType.Valid() {
				return fmt.Errorf("unknown alert type %q", alertType)
			}
			filter.Severity = entities.Severity(severity)
			if severity != "" && !filter.Severity.Valid() {
				return fmt.Errorf("unknown severity %q", severity)
			}
			if unresolved {
				resolved := false
				filter.Resolved = &resolved
			}

			return withApp(cmd, env, func(ctx context.Context, a *app.App) error {
				items, total, err := a.Store.Alerts().ListAlerts(ctx, filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(map[string]any{"total": total, "alerts": items})
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tHIVE\tTYPE\tSEVERITY\tRESOLVED\tCREATED\tMESSAGE")
				for i := range items {
					al := &items[i]
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
						al.ID, al.HiveID, al.AlertType, al.Severity, al.IsResolved,
						al.CreatedAt.Format(time.RFC3339), al.Message)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(out, "Showing %d of %d alert(s)\n", len(items), total)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.HiveID, "hive-id", "", "only alerts of this hive")
	cmd.Flags().StringVar(&alertType, "type", "", "only alerts of this type (Temperature, Humidity, Weight, Sound, Battery, ...)")
	cmd.Flags().StringVar(&severity, "severity", "", "only alerts of this severity (Low, Medium, High, Critical)")
	cmd.Flags().BoolVar(&unresolved, "unresolved", false, "only unresolved alerts")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum number of alerts to show")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "number of alerts to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func alertsSummaryCommand(env *environment) *cobra.Command {
	var hiveID string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count unresolved alerts by severity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, env, func(ctx context.Context, a *app.App) error {
				counts, err := a.Store.Alerts().CountUnresolvedBySeverity(ctx, hiveID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				var total int64
				for _, sev := range []entities.Severity{
					entities.SeverityCritical, entities.SeverityHigh,
					entities.SeverityMedium, entities.SeverityLow,
				} {
					fmt.Fprintf(out, "%-9s %d\n", sev+":", counts[sev])
					total += counts[sev]
				}
				fmt.Fprintf(out, "Unresolved alerts: %d\n", total)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&hiveID, "hive-id", "", "only alerts of this hive")
	return cmd
}

func alertsResolveCommand(env *environment) *cobra.Command {
	var by, notes string

	cmd := &cobra.Command{
		Use:   "resolve ALERT_ID",
		Short: "Mark an alert resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, env, func(ctx context.Context, a *app.App) error {
				if err := a.Store.Alerts().ResolveAlert(ctx, args[0], by, notes, time.Now()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Alert %s resolved\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&by, "by", "", "ID of the user resolving the alert")
	cmd.Flags().StringVar(&notes, "notes", "", "resolution notes")
	return cmd
}

func alertsReopenCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen ALERT_ID",
		Short: "Mark a resolved alert unresolved again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, env, func(ctx context.Context, a *app.App) error {
				if err := a.Store.Alerts().ReopenAlert(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Alert %s reopened\n", args[0])
				return nil
			})
		},
	}
}
