package main

import (
	"github.com/spf13/cobra"
)

// newRootCommand builds the command tree. The returned context owns the log
// file and journal handles; callers close it after Execute.
func newRootCommand() (*cobra.Command, *commandContext) {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:           "karaokeprep",
		Short:         "Karaoke track production pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	pf.StringVar(&flags.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	pf.BoolVar(&flags.dryRun, "dry-run", false, "Log stage decisions without running anything or writing files")
	pf.BoolVar(&flags.force, "force", false, "Run stages even when their outputs already exist")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newBatchCommand(ctx))
	rootCmd.AddCommand(newLockCommand(ctx))
	rootCmd.AddCommand(newCodeCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))
	rootCmd.AddCommand(newTestNotifyCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd, ctx
}
