package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"radreport/internal/config"
	"radreport/internal/registry"
	"radreport/internal/reporting"
)

func newRegisterCommand(ctx *commandContext) *cobra.Command {
	var title string
	var firstName string
	var lastName string
	var email string
	var admin bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new reporter account pending activation",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *registry.Store) error {
				roles := []int{registry.RoleReporter}
				if admin {
					roles = append(roles, registry.RoleAdmin)
				}
				svc := reporting.New(store, logger, cfg.Reporting.ScanTypesPageSize)
				user, err := svc.RegisterUser(cmd.Context(), reporting.Registration{
					Title:     title,
					FirstName: firstName,
					LastName:  lastName,
					Email:     email,
					Roles:     roles,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s); the account is inactive until approved\n",
					user.Name(), user.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Honorific, e.g. Dr")
	cmd.Flags().StringVar(&firstName, "first-name", "", "Given name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Family name")
	cmd.Flags().StringVar(&email, "email", "", "Email address, used to sign in")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant the administrator role as well")
	cmd.MarkFlagRequired("first-name")
	cmd.MarkFlagRequired("last-name")
	cmd.MarkFlagRequired("email")

	return cmd
}
