package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"karaokeprep/internal/deps"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, directories, and stage readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			problems := 0

			writeLines(out, renderSectionHeader("Tools", colorize)...)
			for _, status := range deps.CheckBinaries(deps.EngineRequirements(cfg)) {
				kind, msg := dependencyLine(status)
				if kind == statusError {
					problems++
				}
				fmt.Fprintln(out, renderStatusLine(status.Name, kind, msg, colorize))
			}

			fmt.Fprintln(out)
			writeLines(out, renderSectionHeader("Directories", colorize)...)
			for _, status := range deps.CheckDirectories(cfg) {
				kind, msg := dependencyLine(status)
				if kind == statusError {
					problems++
				}
				fmt.Fprintln(out, renderStatusLine(status.Name, kind, msg, colorize))
			}

			_, registry, _, err := ctx.pipelineFor(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			writeLines(out, renderSectionHeader("Stages", colorize)...)
			for _, handler := range registry.All() {
				health := handler.HealthCheck(cmd.Context())
				if health.Ready {
					fmt.Fprintln(out, renderStatusLine(displayStage(health.Name), statusOK, "ready", colorize))
					continue
				}
				problems++
				fmt.Fprintln(out, renderStatusLine(displayStage(health.Name), statusError, health.Detail, colorize))
			}

			if problems > 0 {
				return fmt.Errorf("%d problem(s) found", problems)
			}
			return nil
		},
	}
}

func dependencyLine(status deps.Status) (statusKind, string) {
	msg := status.Command
	if status.Detail != "" {
		msg = status.Detail
	}
	switch {
	case status.Available:
		return statusOK, msg
	case status.Optional:
		return statusWarn, msg + " (optional)"
	default:
		return statusError, msg
	}
}
