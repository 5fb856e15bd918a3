package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/arvindjonn09/dharma-mini/internal/session"
	"github.com/arvindjonn09/dharma-mini/pkg/authflow"
	"github.com/arvindjonn09/dharma-mini/pkg/store"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
)

// passwordEnv supplies the password for "users add" when --password is not given.
const passwordEnv = "DHARMA_NEW_USER_PASSWORD"

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage registered accounts",
	}
	cmd.AddCommand(newUsersAddCmd(a), newUsersListCmd(a), newUsersDeleteCmd(a))
	return cmd
}

func newUsersAddCmd(a *app) *cobra.Command {
	var req authflow.SignUpRequest
	var year string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an account with the same rules as sign up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.YearOfBirth = authflow.YearInput(year)
			if req.Password == "" {
				req.Password = os.Getenv(passwordEnv)
			}
			if req.Password == "" {
				return fmt.Errorf("a password is required: pass --password or set %s", passwordEnv)
			}

			return a.withManager(cmd.Context(), func(ctx context.Context, mgr *session.Manager, st *store.Store, logger logr.Logger) error {
				flows := authflow.New(mgr, st.Users, authflow.Config{Logger: slogFrom(logger)})
				profile, err := flows.Register(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "registered %s (%s)\n", profile.Username, profile.DisplayName())
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Username, "username", "", "login name (required)")
	f.StringVar(&req.FirstName, "first-name", "", "first name (required)")
	f.StringVar(&req.LastName, "last-name", "", "last name")
	f.StringVar(&year, "year", "", "year of birth, YYYY (required)")
	f.StringVar(&req.Language, "language", "English", "preferred language")
	f.StringVar(&req.Location, "location", "", "city or region")
	f.StringVar(&req.Password, "password", "", "password, prefer "+passwordEnv)
	return cmd
}

func newUsersListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withManager(cmd.Context(), func(ctx context.Context, _ *session.Manager, st *store.Store, logger logr.Logger) error {
				users, err := st.Users.ListUsers(ctx)
				if err != nil && len(users) == 0 {
					return err
				}
				if err != nil {
					logger.Error(err, "some accounts could not be read")
				}
				tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "USERNAME\tNAME\tBORN\tLANGUAGE")
				for _, u := range users {
					born := "-"
					if u.YearOfBirth.Valid {
						born = fmt.Sprint(u.YearOfBirth.Year)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Username, u.DisplayName(), born, u.Language)
				}
				return tw.Flush()
			})
		},
	}
}

func newUsersDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete an account; its sessions stop resolving on their next use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(cmd.Context(), func(ctx context.Context, _ *session.Manager, st *store.Store, _ logr.Logger) error {
				existing, err := st.Users.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				if existing == nil {
					return errors.New("no such user: " + args[0])
				}
				if err := st.Users.DeleteUser(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "deleted %s\n", args[0])
				return nil
			})
		},
	}
}
