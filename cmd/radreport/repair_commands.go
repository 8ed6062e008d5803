package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"radreport/internal/config"
	"radreport/internal/lifecycle"
	"radreport/internal/registry"
)

func newRepairCommand(ctx *commandContext) *cobra.Command {
	var status string
	var subjectID string
	var visitID string

	cmd := &cobra.Command{
		Use:   "repair STUDY_ID",
		Short: "Resolve a broken session by setting its status or archive identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid study id %q", args[0])
			}
			target, ok := registry.ParseDataStatus(status)
			if !ok {
				return fmt.Errorf("unknown status %q (options: %s)", status, fixOptionList())
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
				sess, err := lifecycle.New(store, source, logger).ApplyRepair(cmd.Context(), lifecycle.Repair{
					SessionID: sessionID,
					Status:    target,
					SubjectID: subjectID,
					VisitID:   visitID,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Study %d is now %s (%s)\n",
					sess.ID, sess.DataStatus.Label(), sess.ArchiveID())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Status to set: "+fixOptionList())
	cmd.Flags().StringVar(&subjectID, "subject", "", "Corrected archive subject identifier")
	cmd.Flags().StringVar(&visitID, "visit", "", "Corrected archive visit identifier")
	cmd.MarkFlagRequired("status")

	return cmd
}

func newRecheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recheck STUDY_ID",
		Short: "Re-query the source archive and refresh a session's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid study id %q", args[0])
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
				sess, err := lifecycle.New(store, source, logger).Recheck(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Study %d is now %s\n", sess.ID, sess.DataStatus.Label())
				return nil
			})
		},
	}
}

func fixOptionList() string {
	options := registry.FixOptions()
	names := make([]string, 0, len(options))
	for _, option := range options {
		names = append(names, string(option))
	}
	return strings.Join(names, ", ")
}
