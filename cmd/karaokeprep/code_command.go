package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"karaokeprep/internal/sequence"
	"karaokeprep/internal/services"
)

func newCodeCommand(ctx *commandContext) *cobra.Command {
	codeCmd := &cobra.Command{
		Use:   "code",
		Short: "Brand code utilities",
	}
	codeCmd.AddCommand(newCodeNextCommand(ctx))
	return codeCmd
}

func newCodeNextCommand(ctx *commandContext) *cobra.Command {
	var prefix string
	var dir string

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Print the next brand code without claiming it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(prefix) == "" {
				prefix = ctx.config.Naming.BrandPrefix
			}
			if strings.TrimSpace(dir) == "" {
				dir = ctx.config.Paths.OrganisedDir
			}
			code, _, err := sequence.Next(dir, prefix)
			if err != nil {
				if errors.Is(err, sequence.ErrTargetMissing) {
					return services.Wrap(services.ErrConfiguration, "code", "next", "organised directory "+dir+" does not exist", err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Brand prefix (defaults to naming.brand_prefix)")
	cmd.Flags().StringVar(&dir, "dir", "", "Directory to scan (defaults to paths.organised_dir)")
	return cmd
}
