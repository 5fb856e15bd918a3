// Command dharma runs the session and auth service and offers operator
// commands for sessions and accounts.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/arvindjonn09/dharma-mini/internal/config"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by all subcommands.
type app struct {
	v          *viper.Viper
	configFile string
	out        io.Writer
	logOut     io.Writer
}

func newRootCmd(out, logOut io.Writer) *cobra.Command {
	a := &app{out: out, logOut: logOut}

	root := &cobra.Command{
		Use:           "dharma",
		Short:         "Session and sign-in service for Dharma Story Chat",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.v = config.NewViper(a.configFile)
			return bindFlags(a.v, cmd)
		},
	}
	root.SetOut(out)
	root.SetErr(logOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "path to a YAML config file (default: ./dharma.yaml or /etc/dharma/dharma.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("backend", "", "session store backend: file, sqlite, redis or memory")

	root.AddCommand(
		newServeCmd(a),
		newSessionsCmd(a),
		newUsersCmd(a),
	)
	return root
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"backend":    "store.backend",
	"addr":       "server.addr",
}

// bindFlags binds the flags the user actually set, so unset flags never
// shadow file or environment values.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// load returns the validated configuration and a logger configured by it.
func (a *app) load() (*config.Config, logr.Logger, error) {
	cfg, err := config.Load(a.v)
	if err != nil {
		return nil, logr.Discard(), err
	}

	opts := &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(a.logOut, opts)
	} else {
		handler = slog.NewTextHandler(a.logOut, opts)
	}
	return cfg, logr.FromSlogHandler(handler), nil
}

// slogFrom adapts the command logger for the internal packages.
func slogFrom(l logr.Logger) *slog.Logger {
	return slog.New(logr.ToSlogHandler(l))
}
