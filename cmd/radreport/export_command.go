package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"radreport/internal/config"
	"radreport/internal/exporter"
	"radreport/internal/registry"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export confirmed clinical scans to the destination archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := ctx.sourceArchive()
			if err != nil {
				return err
			}
			destination, err := ctx.destinationArchive()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			return ctx.withStore(func(cfg *config.Config, store *registry.Store) error {
				summary, err := exporter.New(store, source, destination, cfg, logger).Run(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintf(out, "Export run %s\n", summary.RunID)
				if summary.Reclassified > 0 {
					fmt.Fprintf(out, "  %d sessions reclassified as containing no clinical scans\n", summary.Reclassified)
				}
				fmt.Fprintln(out, colorLine(ansiGreen,
					fmt.Sprintf("  %d sessions exported (%d scans)", summary.Sessions, summary.ScansExported), colorize))
				for _, failure := range summary.Failures {
					fmt.Fprintln(out, colorLine(ansiRed,
						fmt.Sprintf("  study %d failed: %v", failure.SessionID, failure.Err), colorize))
				}
				if len(summary.Failures) > 0 {
					fmt.Fprintln(out, colorLine(ansiYellow,
						"  staging files for failed sessions were kept for inspection", colorize))
				}
				return nil
			})
		},
	}
}
