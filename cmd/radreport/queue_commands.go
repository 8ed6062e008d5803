package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"radreport/internal/config"
	"radreport/internal/registry"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the reporting, export, and repair queues",
	}

	queueCmd.AddCommand(newQueueReportCommand(ctx))
	queueCmd.AddCommand(newQueueExportCommand(ctx))
	queueCmd.AddCommand(newQueueRepairCommand(ctx))

	return queueCmd
}

func newQueueReportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "List sessions awaiting a report, most urgent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *registry.Store) error {
				sessions, err := store.SessionsRequiringReport(cmd.Context(), cfg.Reporting.ReportIntervalDays)
				if err != nil {
					return err
				}
				printSessionTable(cmd, sessions, "No sessions are waiting for a report")
				return nil
			})
		},
	}
}

func newQueueExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "List sessions ready for export to the clinical archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *registry.Store) error {
				sessions, err := store.SessionsReadyForExport(cmd.Context(), cfg.Reporting.ReportIntervalDays)
				if err != nil {
					return err
				}
				printSessionTable(cmd, sessions, "No sessions are ready for export")
				return nil
			})
		},
	}
}

func newQueueRepairCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "List broken sessions needing admin attention, most severe first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *registry.Store) error {
				sessions, err := store.SessionsNeedingRepair(cmd.Context())
				if err != nil {
					return err
				}
				printSessionTable(cmd, sessions, "No sessions need repair")
				return nil
			})
		},
	}
}

func printSessionTable(cmd *cobra.Command, sessions []*registry.ImagingSession, emptyMessage string) {
	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, emptyMessage)
		return
	}
	rows := make([][]string, 0, len(sessions))
	for _, sess := range sessions {
		rows = append(rows, []string{
			strconv.FormatInt(sess.ID, 10),
			sess.ProjectCode,
			sess.ArchiveID(),
			formatDate(sess.ScanDate),
			sess.Priority.String(),
			sess.DataStatus.Label(),
		})
	}
	table := renderTable(
		[]string{"Study", "Project", "Archive ID", "Scan Date", "Priority", "Status"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	)
	fmt.Fprintln(out, table)
}
