package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"radreport/internal/config"
	"radreport/internal/registry"
	"radreport/internal/services"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show STUDY_ID",
		Short: "Show one session with its scans and reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid study id %q", args[0])
			}
			return ctx.withStore(func(cfg *config.Config, store *registry.Store) error {
				sess, err := store.SessionByID(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				if sess == nil {
					return services.Wrap(services.ErrNotFound, "cli", "show",
						fmt.Sprintf("no session with study id %d", sessionID), nil)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Study %d (%s)\n", sess.ID, sess.ArchiveID())
				fmt.Fprintf(out, "  Project:   %s\n", sess.ProjectCode)
				fmt.Fprintf(out, "  Subject:   %s\n", sess.SubjectCode)
				fmt.Fprintf(out, "  Scan date: %s\n", formatDate(sess.ScanDate))
				fmt.Fprintf(out, "  Priority:  %s\n", sess.Priority)
				fmt.Fprintf(out, "  Status:    %s\n", sess.DataStatus.Label())
				if sess.Notes != "" {
					fmt.Fprintf(out, "  Notes:     %s\n", sess.Notes)
				}

				scans, err := store.ScansBySession(cmd.Context(), sess.ID)
				if err != nil {
					return err
				}
				if len(scans) > 0 {
					rows := make([][]string, 0, len(scans))
					for _, scan := range scans {
						rows = append(rows, []string{
							strconv.FormatInt(scan.ID, 10),
							scan.ArchiveID,
							scan.TypeName,
							yesNo(scan.Clinical),
							yesNo(scan.Confirmed),
							yesNo(scan.Exported),
						})
					}
					fmt.Fprintln(out, "\nScans:")
					fmt.Fprintln(out, renderTable(
						[]string{"ID", "Archive ID", "Type", "Clinical", "Confirmed", "Exported"},
						rows,
						[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
					))
				}

				reports, err := store.ReportsBySession(cmd.Context(), sess.ID)
				if err != nil {
					return err
				}
				if len(reports) > 0 {
					rows := make([][]string, 0, len(reports))
					for _, report := range reports {
						rows = append(rows, []string{
							strconv.FormatInt(report.ID, 10),
							formatDate(report.Date),
							report.Modality.String(),
							report.Conclusion.String(),
							yesNo(report.Dummy),
						})
					}
					fmt.Fprintln(out, "\nReports:")
					fmt.Fprintln(out, renderTable(
						[]string{"ID", "Date", "Modality", "Conclusion", "Legacy"},
						rows,
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
					))
				}
				return nil
			})
		},
	}
}
