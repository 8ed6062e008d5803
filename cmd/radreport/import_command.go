package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"radreport/internal/config"
	"radreport/internal/importer"
	"radreport/internal/registry"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import FEED",
		Short: "Import candidate sessions from a recruitment feed CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open feed: %w", err)
			}
			defer file.Close()

			rows, err := importer.ReadFeed(file)
			if err != nil {
				return fmt.Errorf("read feed: %w", err)
			}

			source, err := ctx.sourceArchive()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			return ctx.withStore(func(cfg *config.Config, store *registry.Store) error {
				summary, err := importer.New(store, source, logger).Run(cmd.Context(), rows)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %d new sessions (%d already known, %d skipped)\n",
					len(summary.Imported), len(summary.Previous), len(summary.Skipped))
				for _, skipped := range summary.Skipped {
					fmt.Fprintf(out, "  skipped: %s\n", skipped)
				}
				return nil
			})
		},
	}
}
