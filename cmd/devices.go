package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/apiarylabs/hivewatch/internal/app"
	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
	"github.com/spf13/cobra"
)

// devicesCommand is the operator path for device links. Every write goes
// through the device service so that hive monitoring flags follow.
func devicesCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List devices and change their hive links",
	}
	cmd.AddCommand(
		devicesListCommand(env),
		devicesAssignCommand(env),
		devicesActiveCommand(env, "activate", true),
		devicesActiveCommand(env, "deactivate", false),
		devicesDeleteCommand(env),
	)
	return cmd
}

func devicesListCommand(env *environment) *cobra.Command {
	var (
		ownerID    string
		unassigned bool
		assigned   bool
		active     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the devices of an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, env, func(ctx context.Context, a *app.App) error {
				var (
					items []entities.Device
					err   error
				)
				switch {
				case unassigned:
					items, err = a.Devices.ListUnassigned(ctx, ownerID)
				case assigned:
					items, err = a.Devices.ListAssigned(ctx, ownerID)
				case active:
					items, err = a.Devices.ListActiveForOwner(ctx, ownerID)
				default:
					items, err = a.Devices.ListForOwner(ctx, ownerID)
				}
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSERIAL\tTYPE\tHIVE\tACTIVE")
				for i := range items {
					d := &items[i]
					hive := d.LinkedHive()
					if hive == "" {
						hive = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", d.ID, d.SerialNumber, d.DeviceType, hive, d.IsActive)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "owner user ID")
	cmd.Flags().BoolVar(&unassigned, "unassigned", false, "only devices without a hive")
	cmd.Flags().BoolVar(&assigned, "assigned", false, "only devices linked to a hive")
	cmd.Flags().BoolVar(&active, "active", false, "only active devices")
	cmd.MarkFlagsMutuallyExclusive("unassigned", "assigned", "active")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func devicesAssignCommand(env *environment) *cobra.Command {
	var hiveID string

	cmd := &cobra.Command{
		Use:   "assign DEVICE_ID",
		Short: "Link a device to a hive, or unlink it when --hive-id is empty",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, env, func(ctx context.Context, a *app.App) error {
				var target *string
				if hiveID != "" {
					target = &hiveID
				}
				device, err := a.Devices.Assign(ctx, args[0], target)
				if err != nil {
					return err
				}
				if device.LinkedHive() == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Device %s unlinked\n", device.ID)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Device %s linked to hive %s\n", device.ID, device.LinkedHive())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&hiveID, "hive-id", "", "target hive (empty unlinks)")
	return cmd
}

func devicesActiveCommand(env *environment, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " DEVICE_ID",
		Short: fmt.Sprintf("Set a device's active flag to %t", active),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, env, func(ctx context.Context, a *app.App) error {
				device, err := a.Devices.SetActive(ctx, args[0], active)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Device %s active=%t\n", device.ID, device.IsActive)
				return nil
			})
		},
	}
}

func devicesDeleteCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "delete DEVICE_ID",
		Short: "Delete a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, env, func(ctx context.Context, a *app.App) error {
				if err := a.Devices.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Device %s deleted\n", args[0])
				return nil
			})
		},
	}
}
