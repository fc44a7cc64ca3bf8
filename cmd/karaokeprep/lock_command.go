package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"karaokeprep/internal/resourcelock"
)

func newLockCommand(ctx *commandContext) *cobra.Command {
	lockCmd := &cobra.Command{
		Use:   "lock",
		Short: "Inspect or clear exclusive resource locks",
	}
	lockCmd.AddCommand(newLockStatusCommand(ctx))
	lockCmd.AddCommand(newLockClearCommand(ctx))
	return lockCmd
}

func lockResource(ctx *commandContext, args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return ctx.config.Lock.Resource
}

func newLockStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [RESOURCE]",
		Short: "Show the lock record for a resource",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.loggerFor(cmd)
			if err != nil {
				return err
			}
			resource := lockResource(ctx, args)
			status, err := ctx.locker(logger).Inspect(resource)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			writeLines(out, renderSectionHeader("Lock "+resource, colorize)...)
			if !status.Held {
				fmt.Fprintln(out, renderStatusLine("State", statusOK, "free", colorize))
				fmt.Fprintln(out, renderStatusLine("Record", statusInfo, status.Path, colorize))
				return nil
			}
			if status.Alive {
				fmt.Fprintln(out, renderStatusLine("State", statusWarn, "held", colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("State", statusError, "stale (owner not running)", colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Owner PID", statusInfo, strconv.Itoa(status.Record.OwnerPID), colorize))
			fmt.Fprintln(out, renderStatusLine("Held since", statusInfo, status.Record.StartTime.Local().Format(time.RFC3339), colorize))
			fmt.Fprintln(out, renderStatusLine("Record", statusInfo, status.Path, colorize))
			return nil
		},
	}
}

func newLockClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [RESOURCE]",
		Short: "Remove a stale lock record",
		Long: `Remove the lock record for a resource. Records owned by a running process
are kept unless --force is given; forcing lets a second process use the
resource concurrently with the first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.loggerFor(cmd)
			if err != nil {
				return err
			}
			resource := lockResource(ctx, args)
			removed, err := ctx.locker(logger).Clear(resource, ctx.flags.force)
			if err != nil {
				if errors.Is(err, resourcelock.ErrLockHeld) {
					return fmt.Errorf("%w (use --force to remove it anyway)", err)
				}
				return err
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared lock %s\n", resource)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Lock %s is not held\n", resource)
			}
			return nil
		},
	}
}
