package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"karaokeprep/internal/batch"
	"karaokeprep/internal/ledger"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Process a CSV ledger in two phases",
		Long: `Batch mode walks a CSV ledger with Artist, Title and Status columns.

phase1 prepares rows with status Uploaded (acquire and separate) and marks
them PrepComplete or PrepFailed. phase2 renders PrepComplete rows, plus
Uploaded rows that skipped phase1, and marks them Completed or RenderFailed.
Each row's status is saved as soon as it finishes, so an interrupted phase
resumes with the next unfinished row.`,
	}

	batchCmd.AddCommand(newBatchPhaseCommand(ctx, batch.Phase1, "Prepare Uploaded rows"))
	batchCmd.AddCommand(newBatchPhaseCommand(ctx, batch.Phase2, "Render prepared rows"))
	batchCmd.AddCommand(newBatchStatusCommand(ctx))
	batchCmd.AddCommand(newBatchResetCommand(ctx))

	return batchCmd
}

func newBatchPhaseCommand(ctx *commandContext, phase batch.Phase, short string) *cobra.Command {
	return &cobra.Command{
		Use:   phase.String() + " LEDGER",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, registry, logger, err := ctx.pipelineFor(cmd)
			if err != nil {
				return err
			}
			driver, err := batch.NewDriver(batch.Options{
				Config:     ctx.config,
				LedgerPath: args[0],
				Runner:     runner,
				Registry:   registry,
				Journal:    ctx.openJournal(logger),
				Notifier:   ctx.notifications(),
				Logger:     logger,
			})
			if err != nil {
				return err
			}

			summary, err := driver.Run(cmd.Context(), phase)
			if err != nil {
				if batch.IsBusy(err) {
					return fmt.Errorf("%s is being processed by another batch run", args[0])
				}
				return err
			}

			out := cmd.OutOrStdout()
			label := summary.Phase
			if runner.DryRun() {
				label += " (dry run)"
			}
			writeLines(out, renderSectionHeader(label, shouldColorize(out))...)
			fmt.Fprintf(out, "Run ID:     %s\n", summary.RunID)
			fmt.Fprintf(out, "Processed:  %d\n", summary.Processed)
			fmt.Fprintf(out, "Succeeded:  %d\n", summary.Succeeded)
			fmt.Fprintf(out, "Failed:     %d\n", summary.Failed)
			fmt.Fprintf(out, "Skipped:    %d\n", summary.Skipped)
			fmt.Fprintf(out, "Duration:   %s\n", summary.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

func newBatchStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status LEDGER",
		Short: "Show ledger rows and status counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := ledger.Load(args[0])
			if err != nil {
				return err
			}
			headers := []string{"Row", "Artist", "Title", "Status", "Input"}
			rows := make([][]string, 0, len(book.Items))
			for _, item := range book.Items {
				rows = append(rows, []string{
					strconv.Itoa(item.Row),
					item.Artist,
					item.Title,
					item.Status.String(),
					item.Input(),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignRight}))

			counts := book.Counts()
			for _, status := range ledger.Statuses() {
				fmt.Fprintf(out, "%-13s %d\n", status.String()+":", counts[status])
			}
			return nil
		},
	}
}

func newBatchResetCommand(ctx *commandContext) *cobra.Command {
	var row int
	var statusValue string

	cmd := &cobra.Command{
		Use:   "reset LEDGER",
		Short: "Set a row's status so the next phase picks it up again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if row < 1 {
				return errors.New("--row must be a data row number (first row after the header is 1)")
			}
			status, err := ledger.ParseStatus(statusValue)
			if err != nil {
				return err
			}
			previous, err := batch.ResetRow(args[0], row, status)
			if err != nil {
				if batch.IsBusy(err) {
					return fmt.Errorf("%s is being processed by another batch run", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Row %d: %s -> %s\n", row, previous, status)
			return nil
		},
	}

	cmd.Flags().IntVar(&row, "row", 0, "Data row number as shown by batch status")
	cmd.Flags().StringVar(&statusValue, "status", ledger.StatusUploaded.String(), "Status to set")
	return cmd
}
