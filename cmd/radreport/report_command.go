package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"radreport/internal/config"
	"radreport/internal/registry"
	"radreport/internal/reporting"
	"radreport/internal/services"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var reporterEmail string
	var findings string
	var conclusion int
	var modality string
	var scanList string

	cmd := &cobra.Command{
		Use:   "report STUDY_ID",
		Short: "File a report against a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid study id %q", args[0])
			}
			mod, err := parseModality(modality)
			if err != nil {
				return err
			}
			scanIDs, err := parseIDList(scanList)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			return ctx.withStore(func(cfg *config.Config, store *registry.Store) error {
				actor, err := lookupUser(cmd, store, reporterEmail)
				if err != nil {
					return err
				}
				svc := reporting.New(store, logger, cfg.Reporting.ScanTypesPageSize)
				report, err := svc.SubmitReport(cmd.Context(), actor, reporting.ReportInput{
					SessionID:  sessionID,
					Findings:   findings,
					Conclusion: registry.Conclusion(conclusion),
					Modality:   mod,
					ScanIDs:    scanIDs,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Filed %s report %d against study %d: %s\n",
					report.Modality, report.ID, report.SessionID, report.Conclusion)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reporterEmail, "reporter", "", "Email of the reporting radiologist")
	cmd.Flags().StringVar(&findings, "findings", "", "Findings text (required for pathology conclusions)")
	cmd.Flags().IntVar(&conclusion, "conclusion", 0, "Conclusion: 0 no pathology, 1 non-urgent, 2 critical")
	cmd.Flags().StringVar(&modality, "modality", "mr", "Report modality (mr or pet)")
	cmd.Flags().StringVar(&scanList, "scans", "", "Comma-separated scan IDs the report covers (see `radreport show`)")
	cmd.MarkFlagRequired("reporter")

	return cmd
}

func parseModality(value string) (registry.Modality, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "mr":
		return registry.ModalityMR, nil
	case "pet":
		return registry.ModalityPET, nil
	default:
		return 0, fmt.Errorf("unknown modality %q (expected mr or pet)", value)
	}
}

func lookupUser(cmd *cobra.Command, store *registry.Store, email string) (*registry.User, error) {
	user, err := store.UserByEmail(cmd.Context(), email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, services.Wrap(services.ErrNotFound, "cli", "lookup-user",
			fmt.Sprintf("no account registered for %s", email), nil)
	}
	return user, nil
}
