package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"radreport/internal/config"
	"radreport/internal/registry"
	"radreport/internal/reporting"
)

func newScanTypesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scantypes",
		Short: "Review and confirm the clinical relevance of scan types",
	}

	cmd.AddCommand(newScanTypesListCommand(ctx))
	cmd.AddCommand(newScanTypesConfirmCommand(ctx))

	return cmd
}

func newScanTypesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the next batch of unconfirmed scan types",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *registry.Store) error {
				svc := reporting.New(store, logger, cfg.Reporting.ScanTypesPageSize)
				page, err := svc.NextUnconfirmedPage(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(page.Types) == 0 {
					fmt.Fprintln(out, "Every catalogued scan type is confirmed")
					return nil
				}
				rows := make([][]string, 0, len(page.Types))
				for _, st := range page.Types {
					rows = append(rows, []string{
						strconv.FormatInt(st.ID, 10),
						st.Name,
						yesNo(st.Clinical),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Type", "Suggested Clinical"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft},
				))
				fmt.Fprintf(out, "%d unconfirmed types remain after this batch\n", page.Remaining)
				return nil
			})
		},
	}
}

func newScanTypesConfirmCommand(ctx *commandContext) *cobra.Command {
	var actorEmail string
	var clinicalList string
	var nonClinicalList string

	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm a batch of scan types as clinical or not",
		RunE: func(cmd *cobra.Command, args []string) error {
			clinicalIDs, err := parseIDList(clinicalList)
			if err != nil {
				return err
			}
			nonClinicalIDs, err := parseIDList(nonClinicalList)
			if err != nil {
				return err
			}
			if len(clinicalIDs) == 0 && len(nonClinicalIDs) == 0 {
				return fmt.Errorf("nothing to confirm: pass --clinical and/or --not-clinical")
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			return ctx.withStore(func(cfg *config.Config, store *registry.Store) error {
				actor, err := lookupUser(cmd, store, actorEmail)
				if err != nil {
					return err
				}
				decisions := make([]reporting.Confirmation, 0, len(clinicalIDs)+len(nonClinicalIDs))
				for _, id := range clinicalIDs {
					decisions = append(decisions, reporting.Confirmation{ScanTypeID: id, Clinical: true})
				}
				for _, id := range nonClinicalIDs {
					decisions = append(decisions, reporting.Confirmation{ScanTypeID: id})
				}
				svc := reporting.New(store, logger, cfg.Reporting.ScanTypesPageSize)
				confirmed, err := svc.ConfirmScanTypes(cmd.Context(), actor, decisions)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Confirmed %d scan types\n", confirmed)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&actorEmail, "actor", "", "Email of the confirming administrator")
	cmd.Flags().StringVar(&clinicalList, "clinical", "", "Comma-separated type IDs to confirm as clinically relevant")
	cmd.Flags().StringVar(&nonClinicalList, "not-clinical", "", "Comma-separated type IDs to confirm as not clinically relevant")
	cmd.MarkFlagRequired("actor")

	return cmd
}
