// Package dharma wires the session and auth service together: storage backend,
// session manager, sign-in flows and the guarded JSON routes.
package dharma

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/arvindjonn09/dharma-mini/internal/config"
	"github.com/arvindjonn09/dharma-mini/internal/logutil"
	"github.com/arvindjonn09/dharma-mini/internal/metrics"
	"github.com/arvindjonn09/dharma-mini/internal/session"
	"github.com/arvindjonn09/dharma-mini/pkg/access"
	"github.com/arvindjonn09/dharma-mini/pkg/authflow"
	"github.com/arvindjonn09/dharma-mini/pkg/builtins"
	"github.com/arvindjonn09/dharma-mini/pkg/store"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Dharma struct {
	logger   *slog.Logger
	Store    *store.Store
	Sessions *session.Manager
	Flows    *authflow.Service
	Enforcer *access.Enforcer
	Metrics  *metrics.Metrics

	registry *prometheus.Registry
	router   access.Router
	clock    func() time.Time
	hashCost int
}

type Option func(*Dharma)

// WithLogger routes all internal logging through l.
func WithLogger(l logr.Logger) Option {
	return func(d *Dharma) {
		if l.GetSink() != nil {
			d.logger = slog.New(logr.ToSlogHandler(l))
		}
	}
}

// WithRouter registers the routes on r instead of a fresh http.ServeMux.
func WithRouter(r access.Router) Option {
	return func(d *Dharma) {
		d.router = r
	}
}

// WithRegistry collects metrics into reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(d *Dharma) {
		d.registry = reg
	}
}

// WithClock replaces time.Now for session ages, cookie expiry and birth-year checks.
func WithClock(now func() time.Time) Option {
	return func(d *Dharma) {
		d.clock = now
	}
}

// WithHashCost sets the bcrypt cost used for new passwords.
func WithHashCost(cost int) Option {
	return func(d *Dharma) {
		d.hashCost = cost
	}
}

// New opens the configured stores and registers the built-in routes.
// The caller owns the returned value and must Close it.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Dharma, error) {
	d := &Dharma{}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logutil.OrDiscard(d.logger)
	if d.router == nil {
		d.router = http.NewServeMux()
	}
	if d.registry == nil {
		d.registry = prometheus.NewRegistry()
		d.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	d.logger.Info("starting dharma", "backend", cfg.Store.Backend, "session_ttl", cfg.Session.TTL())

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	d.Metrics = metrics.NewMetrics(d.registry)

	st, err := store.New(ctx, cfg.Store, cfg.Redis, cfg.Session.TTL(), d.logger)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s store: %w", cfg.Store.Backend, err)
	}
	d.Store = st
	d.logger.Debug("stores opened")

	d.Sessions, err = session.NewManager(st.Sessions, st.Users, session.Options{
		TTL:          cfg.Session.TTL(),
		WarningLead:  cfg.Session.WarningLead(),
		TokenBytes:   cfg.Session.TokenBytes,
		OrphanPolicy: session.OrphanPolicy(cfg.Session.OrphanPolicy),
		Clock:        d.clock,
		Logger:       d.logger,
		Metrics:      d.Metrics,
	})
	if err != nil {
		return nil, errors.Join(err, st.Close())
	}

	d.Flows = authflow.New(d.Sessions, st.Users, authflow.Config{
		Admin:    authflow.AdminCredentials{Username: cfg.Admin.Username, Password: cfg.Admin.Password},
		HashCost: d.hashCost,
		Clock:    d.clock,
		Logger:   d.logger,
		Metrics:  d.Metrics,
	})
	if cfg.Admin.Username == "" {
		d.logger.Warn("admin credentials are not configured, admin sign in is disabled")
	}

	d.Enforcer = access.NewEnforcer(d.logger, d.router, d.Sessions, d.Metrics, access.Config{
		CookieName:   access.DefaultConfig().CookieName,
		CookiePath:   access.DefaultConfig().CookiePath,
		CookieSecure: cfg.Server.CookieSecure,
	})

	b := builtins.New(d.logger, d.Enforcer, d.Flows, d.Sessions, st, d.registry, d.clock)
	b.LoadAllPolicies()
	if err := b.LoadAllRoutes(); err != nil {
		return nil, errors.Join(fmt.Errorf("unable to register routes: %w", err), st.Close())
	}
	d.logger.Info("dharma routes loaded")

	return d, nil
}

// Handler returns the router when it can serve requests itself.
func (d *Dharma) Handler() http.Handler {
	if h, ok := d.router.(http.Handler); ok {
		return h
	}
	return http.NotFoundHandler()
}

// Registry exposes the metrics registry, e.g. for additional collectors.
func (d *Dharma) Registry() *prometheus.Registry {
	return d.registry
}

func (d *Dharma) Close() error {
	if d.Store == nil {
		return nil
	}
	return d.Store.Close()
}
