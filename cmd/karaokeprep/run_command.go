package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"karaokeprep/internal/journal"
	"karaokeprep/internal/logging"
	"karaokeprep/internal/naming"
	"karaokeprep/internal/pipeline"
	"karaokeprep/internal/services"
	"karaokeprep/internal/stage"
	"karaokeprep/internal/stages"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var stageList string
	var trackArgs []string
	var parallel int

	cmd := &cobra.Command{
		Use:   "run [ARTIST TITLE INPUT]",
		Short: "Run the pipeline for one or more tracks",
		Long: `Run the configured stages for a track. INPUT is a local audio file or a URL.

Stages whose outputs already exist are skipped, so an interrupted run resumes
where it stopped. Several tracks can be given with repeated --track flags in
the form "Artist|Title|Input"; --parallel bounds how many run at once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			entries := append([]string(nil), trackArgs...)
			switch len(args) {
			case 0:
			case 3:
				entries = append([]string{strings.Join(args, "|")}, entries...)
			default:
				return fmt.Errorf("expected ARTIST TITLE INPUT, got %d arguments", len(args))
			}
			if len(entries) == 0 {
				return errors.New("no track given (pass ARTIST TITLE INPUT or --track)")
			}

			jobs := make([]*stage.Job, 0, len(entries))
			for _, entry := range entries {
				job, err := parseTrackArg(entry, cfg.Paths.OutputDir)
				if err != nil {
					return err
				}
				jobs = append(jobs, job)
			}

			runner, registry, logger, err := ctx.pipelineFor(cmd)
			if err != nil {
				return err
			}
			names := cfg.Pipeline.Stages
			if strings.TrimSpace(stageList) != "" {
				names = splitList(stageList)
			}
			handlers, err := registry.Select(names)
			if err != nil {
				return services.Wrap(services.ErrConfiguration, "run", "resolve stages", strings.Join(names, ","), err)
			}

			if parallel <= 0 {
				parallel = cfg.Pipeline.Parallel
			}
			tracks := runner.RunMany(cmd.Context(), jobs, handlers, parallel)

			if !runner.DryRun() {
				recordRuns(cmd, ctx.openJournal(logger), logger, tracks)
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTrackResults(tracks))

			var failed []string
			for _, track := range tracks {
				if track.Failed() {
					failed = append(failed, track.Job.BaseName())
				}
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d tracks failed: %s", len(failed), len(tracks), strings.Join(failed, "; "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&stageList, "stages", "", "Comma-separated stages to run (defaults to pipeline.stages)")
	cmd.Flags().StringArrayVar(&trackArgs, "track", nil, `Additional track as "Artist|Title|Input" (repeatable)`)
	cmd.Flags().IntVar(&parallel, "parallel", 0, "Maximum tracks processed concurrently (defaults to pipeline.parallel)")
	return cmd
}

// parseTrackArg reads "Artist|Title|Input". Local inputs are made absolute
// so stage commands do not depend on the working directory.
func parseTrackArg(entry, outputDir string) (*stage.Job, error) {
	parts := strings.Split(entry, "|")
	if len(parts) != 3 {
		return nil, services.Wrap(services.ErrValidation, "run", "parse track", fmt.Sprintf("%q is not Artist|Title|Input", entry), nil)
	}
	id, err := naming.NewIdentity(parts[0], parts[1])
	if err != nil {
		return nil, err
	}
	input := strings.TrimSpace(parts[2])
	if input == "" {
		return nil, services.Wrap(services.ErrValidation, "run", "parse track", "input is required for "+id.String(), nil)
	}
	if !stages.IsRemote(input) {
		abs, err := filepath.Abs(input)
		if err != nil {
			return nil, fmt.Errorf("resolve input %q: %w", input, err)
		}
		input = abs
	}
	return stage.NewJob(id, input, outputDir), nil
}

func recordRuns(cmd *cobra.Command, store *journal.Store, logger *slog.Logger, tracks []*pipeline.Track) {
	if store == nil {
		return
	}
	runID := uuid.NewString()
	for _, track := range tracks {
		_, err := store.Record(cmd.Context(), journal.Entry{
			RunID:         runID,
			Phase:         journal.PhaseRun,
			Track:         track.Job.BaseName(),
			FailedStages:  track.FailedStages(),
			Duration:      track.Finished.Sub(track.Started),
			CorrelationID: track.RequestID,
			Error:         services.Summary(track.Err()),
		})
		if err != nil {
			logger.Warn("journal write failed", logging.Error(err),
				logging.String(logging.FieldImpact, "run history incomplete"))
		}
	}
}

func renderTrackResults(tracks []*pipeline.Track) string {
	headers := []string{"Track", "Stage", "Result", "Duration", "Detail"}
	var rows [][]string
	for _, track := range tracks {
		for i, res := range track.Summary() {
			name := ""
			if i == 0 {
				name = track.Job.BaseName()
			}
			rows = append(rows, []string{
				name,
				displayStage(res.Stage),
				res.Kind.String(),
				formatStageDuration(res),
				resultDetail(res),
			})
		}
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
}

func formatStageDuration(res pipeline.Result) string {
	if res.Kind != pipeline.KindSucceeded && res.Kind != pipeline.KindFailed {
		return "-"
	}
	return res.Duration.Round(100 * time.Millisecond).String()
}

func resultDetail(res pipeline.Result) string {
	switch {
	case res.Err != nil:
		return services.Summary(res.Err)
	case res.StaleLockRecovered:
		return "recovered stale lock"
	case len(res.Outputs) > 0:
		return filepath.Base(res.Outputs[0])
	default:
		return ""
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func writeLines(w io.Writer, lines ...string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
