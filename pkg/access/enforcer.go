package access

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/arvindjonn09/dharma-mini/internal/logutil"
	"github.com/arvindjonn09/dharma-mini/internal/metrics"
	"github.com/arvindjonn09/dharma-mini/pkg/models"
)

// Enforcer manages access control policies and wraps route handlers with
// session resolution and role checks. Routes are guarded by the minimum
// role recorded for them in the Policies map.
type Enforcer struct {
	log      *slog.Logger
	Policies map[string]map[string]models.Role  // e.g route: {GET: RoleUser, POST: RoleAdmin}
	handlers map[string]map[string]http.Handler // path -> method -> handler internal mapping
	router   Router                             // used for middlewares and creating routes
	sessions SessionResolver
	metrics  *metrics.Metrics
	Config
	mu sync.RWMutex // protects Policies and handlers
}

// Config controls how the resumption token travels between requests.
type Config struct {
	CookieName   string // cookie carrying the token, also the query parameter name
	CookiePath   string
	CookieSecure bool // should be true behind TLS
}

// DefaultConfig uses "session" both as cookie and as query parameter.
func DefaultConfig() Config {
	return Config{
		CookieName: "session",
		CookiePath: "/",
	}
}

// SessionResolver is the part of the session manager the middleware needs.
type SessionResolver interface {
	// Restore returns (nil, nil) when the request should be treated as a guest.
	Restore(ctx context.Context, token string) (*models.SessionView, error)
	// ExpiryWarning reports whether the session is close to its hard expiry.
	ExpiryWarning(ctx context.Context, token string) bool
}

// NewEnforcer returns an Enforcer with an empty policy set.
// A nil Metrics disables request instrumentation.
func NewEnforcer(logger *slog.Logger, router Router, sessions SessionResolver, m *metrics.Metrics, cfg Config) *Enforcer {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultConfig().CookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = DefaultConfig().CookiePath
	}
	return &Enforcer{
		log:      logutil.OrDiscard(logger),
		Policies: map[string]map[string]models.Role{},
		handlers: map[string]map[string]http.Handler{},
		router:   router,
		sessions: sessions,
		metrics:  m,
		Config:   cfg,
	}
}

// LoadDefaultPolicies sets the access rules of the built-in routes.
// Policies must be in place before the routes are registered.
func (e *Enforcer) LoadDefaultPolicies() {
	e.SetPolicy("/", "*", models.RoleGuest)
	e.SetPolicy("/login", "POST", models.RoleGuest)
	e.SetPolicy("/admin/login", "POST", models.RoleGuest)
	e.SetPolicy("/signup", "POST", models.RoleGuest)
	e.SetPolicy("/logout", "POST", models.RoleUser)
	e.SetPolicy("/me", "GET", models.RoleGuest)
	e.SetPolicy("/admin", "*", models.RoleAdmin)
	e.SetPolicy("/healthz", "GET", models.RoleGuest)
	e.SetPolicy("/metrics", "GET", models.RoleGuest)
}

// SetPolicy defines the minimum role for a path and method.
// Use "*" as the method to cover every method on that path and below it.
func (e *Enforcer) SetPolicy(resourcePath string, method string, requiredRole models.Role) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.Policies[resourcePath]; !ok {
		e.Policies[resourcePath] = make(map[string]models.Role)
	}
	e.Policies[resourcePath][strings.ToUpper(method)] = requiredRole
}

// FindMatchingPolicy finds the most specific policy for a path and method.
// Longer path prefixes win over shorter ones and, for the same path, an exact
// method wins over "*". The boolean is false when only the guest fallback applied.
func (e *Enforcer) FindMatchingPolicy(resourcePath, method string) (models.Role, bool) {
	method = strings.ToUpper(method)
	candidates := policyCandidates(resourcePath)
	e.log.Debug("finding matching policy", "resource_path", resourcePath, "method", method, "candidates", candidates)

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, p := range candidates {
		methodPolicies, ok := e.Policies[p]
		if !ok {
			continue
		}
		if role, ok := methodPolicies[method]; ok {
			return role, true
		}
		if role, ok := methodPolicies["*"]; ok {
			return role, true
		}
	}
	return models.RoleGuest, false
}

// policyCandidates lists resourcePath and each of its parents, ending with "/".
func policyCandidates(resourcePath string) []string {
	trimmed := strings.TrimSuffix(resourcePath, "/")
	out := []string{}
	if resourcePath != "" {
		out = append(out, resourcePath)
	}
	for trimmed != "" {
		i := strings.LastIndex(trimmed, "/")
		if i <= 0 {
			break
		}
		trimmed = trimmed[:i]
		out = append(out, trimmed)
	}
	if !slices.Contains(out, "/") {
		out = append(out, "/")
	}
	return out
}
