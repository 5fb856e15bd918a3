package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/arvindjonn09/dharma-mini/internal/config"
	"github.com/arvindjonn09/dharma-mini/internal/session"
	"github.com/arvindjonn09/dharma-mini/pkg/store"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
)

func newSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and clean up stored sessions",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored sessions, oldest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withManager(cmd.Context(), func(ctx context.Context, mgr *session.Manager, _ *store.Store, _ logr.Logger) error {
					sessions, err := mgr.ActiveSessions(ctx)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "TOKEN\tROLE\tUSERNAME\tCREATED\tEXPIRES\tSTATE")
					for _, s := range sessions {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
							s.TokenPrefix, s.Role, s.Username,
							formatTime(s.CreatedAt), formatTime(s.ExpiresAt), sessionState(s))
					}
					return tw.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "prune",
			Short: "Remove every expired session",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withManager(cmd.Context(), func(ctx context.Context, mgr *session.Manager, _ *store.Store, _ logr.Logger) error {
					removed, err := mgr.Prune(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(a.out, "removed %d expired session(s)\n", removed)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "revoke <token>",
			Short: "End a session immediately",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withManager(cmd.Context(), func(ctx context.Context, mgr *session.Manager, _ *store.Store, _ logr.Logger) error {
					if err := mgr.Revoke(ctx, args[0]); err != nil {
						return err
					}
					fmt.Fprintln(a.out, "session revoked")
					return nil
				})
			},
		},
	)
	return cmd
}

func sessionState(s session.Info) string {
	switch {
	case s.Expired:
		return "expired"
	case s.Warning:
		return "expiring"
	default:
		return "active"
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateTime)
}

// withManager opens the configured stores, builds a session manager and
// closes everything once fn returns.
func (a *app) withManager(ctx context.Context, fn func(context.Context, *session.Manager, *store.Store, logr.Logger) error) (err error) {
	cfg, logger, err := a.load()
	if err != nil {
		return err
	}
	log := slogFrom(logger)

	st, err := store.New(ctx, cfg.Store, cfg.Redis, cfg.Session.TTL(), log)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, st.Close())
	}()

	mgr, err := newManager(cfg, st, log)
	if err != nil {
		return err
	}
	return fn(ctx, mgr, st, logger)
}

func newManager(cfg *config.Config, st *store.Store, log *slog.Logger) (*session.Manager, error) {
	return session.NewManager(st.Sessions, st.Users, session.Options{
		TTL:          cfg.Session.TTL(),
		WarningLead:  cfg.Session.WarningLead(),
		TokenBytes:   cfg.Session.TokenBytes,
		OrphanPolicy: session.OrphanPolicy(cfg.Session.OrphanPolicy),
		Logger:       log,
	})
}
