package builtins

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/arvindjonn09/dharma-mini/internal/logutil"
	"github.com/arvindjonn09/dharma-mini/pkg/access"
	"github.com/arvindjonn09/dharma-mini/pkg/authflow"
	"github.com/prometheus/client_golang/prometheus"
)

type Builtin struct {
	enforcer *access.Enforcer
	handler  Handler
	gatherer prometheus.Gatherer
}

// New returns the built-in JSON routes. A nil gatherer leaves /metrics unregistered
// and a nil now uses time.Now for cookie and token expiry.
func New(logger *slog.Logger, enforcer *access.Enforcer, flows *authflow.Service, sessions SessionAdmin, health HealthChecker, gatherer prometheus.Gatherer, now func() time.Time) *Builtin {
	return &Builtin{
		enforcer: enforcer,
		handler:  *newHandler(logutil.OrDiscard(logger), enforcer, flows, sessions, health, now),
		gatherer: gatherer,
	}
}

// LoadAllRoutes registers every built-in route group. Registration errors of
// all groups are combined with errors.Join.
func (b *Builtin) LoadAllRoutes() error {
	errs := []error{
		b.LoadSessionRoutes(),
		b.LoadAdminRoutes(),
		b.LoadOperationalRoutes(),
	}

	return errors.Join(errs...)
}

// LoadAllPolicies installs the access rules the built-in routes rely on.
// Call it before LoadAllRoutes; policies are resolved at registration time.
func (b *Builtin) LoadAllPolicies() {
	b.enforcer.LoadDefaultPolicies()
}

// LoadSessionRoutes covers the sign in, sign up and logout commands plus the
// current request state.
func (b *Builtin) LoadSessionRoutes() error {
	return b.registerRoutes(map[string]http.HandlerFunc{
		"POST /login":       b.handler.handleLoginPost(),
		"POST /admin/login": b.handler.handleAdminLoginPost(),
		"POST /signup":      b.handler.handleSignupPost(),
		"POST /logout":      b.handler.handleLogoutPost(),
		"GET /me":           b.handler.handleMeGet(),
	})
}

func (b *Builtin) LoadAdminRoutes() error {
	return b.registerRoutes(map[string]http.HandlerFunc{
		"GET /admin/sessions":        b.handler.handleAdminSessionsGet(),
		"POST /admin/sessions/prune": b.handler.handleAdminSessionsPrunePost(),
	})
}

func (b *Builtin) LoadOperationalRoutes() error {
	routes := map[string]http.HandlerFunc{
		"GET /healthz": b.handler.handleHealthzGet(),
	}
	if b.gatherer != nil {
		routes["GET /metrics"] = b.handler.handleMetricsGet(b.gatherer)
	}
	return b.registerRoutes(routes)
}

// registerRoutes registers each pattern with the enforcer and joins the
// errors of failed registrations.
func (b *Builtin) registerRoutes(routes map[string]http.HandlerFunc) error {
	var errs []error
	for pattern, handler := range routes {
		if err := b.enforcer.Handle(pattern, handler); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
