package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"karaokeprep/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var track string
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline and batch outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			if !cfg.Batch.JournalEnabled {
				fmt.Fprintln(cmd.OutOrStdout(), "Run journal disabled (batch.journal_enabled = false)")
				return nil
			}
			store, err := journal.Open(cfg.JournalPath())
			if err != nil {
				return err
			}
			defer store.Close()

			var entries []journal.Entry
			switch {
			case strings.TrimSpace(runID) != "":
				entries, err = store.ForRun(cmd.Context(), runID)
			case strings.TrimSpace(track) != "":
				entries, err = store.ForTrack(cmd.Context(), track, limit)
			default:
				entries, err = store.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No history recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderHistory(entries))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	cmd.Flags().StringVar(&track, "track", "", "Only show entries for this track base name")
	cmd.Flags().StringVar(&runID, "run", "", "Only show entries from this run ID")
	return cmd
}

func renderHistory(entries []journal.Entry) string {
	headers := []string{"When", "Phase", "Row", "Track", "Status", "Failed Stages", "Duration"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		row := "-"
		if e.Row > 0 {
			row = strconv.Itoa(e.Row)
		}
		status := "ok"
		if e.NewStatus != "" {
			status = e.OldStatus + " -> " + e.NewStatus
		} else if !e.Succeeded() {
			status = "failed"
		}
		failed := strings.Join(e.FailedStages, ", ")
		if failed == "" {
			failed = "-"
		}
		rows = append(rows, []string{
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Phase,
			row,
			e.Track,
			status,
			failed,
			e.Duration.Round(time.Second).String(),
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignRight})
}
