package builtins

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/arvindjonn09/dharma-mini/api"
	"github.com/arvindjonn09/dharma-mini/internal/session"
	"github.com/arvindjonn09/dharma-mini/pkg/access"
	"github.com/arvindjonn09/dharma-mini/pkg/authflow"
	"github.com/arvindjonn09/dharma-mini/pkg/models"
)

// SessionAdmin is the operator side of the session manager.
type SessionAdmin interface {
	TTL() time.Duration
	ActiveSessions(ctx context.Context) ([]session.Info, error)
	Prune(ctx context.Context) (int, error)
}

// HealthChecker reports whether the storage backend is reachable.
type HealthChecker interface {
	Backend() string
	Ping(ctx context.Context) error
}

type Handler struct {
	flows    *authflow.Service
	sessions SessionAdmin
	health   HealthChecker
	enforcer *access.Enforcer
	now      func() time.Time
	log      *slog.Logger
}

func newHandler(logger *slog.Logger, enforcer *access.Enforcer, flows *authflow.Service, sessions SessionAdmin, health HealthChecker, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		flows:    flows,
		sessions: sessions,
		health:   health,
		enforcer: enforcer,
		now:      now,
		log:      logger,
	}
}

// startSession sets the cookie and answers with the token and its resume link.
func (h *Handler) startSession(w http.ResponseWriter, status int, res *authflow.Result) {
	expires := h.now().Add(h.sessions.TTL())
	h.enforcer.SetSessionCookie(w, res.Token, expires)
	api.RespondJSONAndLog(w, h.log, status, api.AuthResponse{
		Token:      res.Token,
		ResumeLink: h.enforcer.ResumeLink(res.Token),
		ExpiresAt:  expires,
		View:       res.View,
	})
}

// respondFlowError maps flow and storage errors onto API errors.
func (h *Handler) respondFlowError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		api.ReturnError(w, h.log, func() (int, api.ErrorResponse) { return api.BadRequestValidation(vErr.Error()) })
	case errors.Is(err, authflow.ErrInvalidCredentials):
		api.ReturnError(w, h.log, api.UnauthorizedInvalidCredentials)
	case errors.Is(err, authflow.ErrAccountNotFound):
		api.ReturnError(w, h.log, api.UnauthorizedAccountNotFound)
	case errors.Is(err, authflow.ErrIncorrectPassword):
		api.ReturnError(w, h.log, api.UnauthorizedIncorrectPassword)
	case errors.Is(err, authflow.ErrUsernameTaken):
		api.ReturnError(w, h.log, func() (int, api.ErrorResponse) { return api.ResourceConflict(err.Error()) })
	case models.IsDatabaseError(err):
		h.log.Error("storage failure", "path", r.URL.Path, "err", err)
		api.ReturnError(w, h.log, api.ServiceUnavailable)
	default:
		h.log.Error("request failed", "path", r.URL.Path, "err", err)
		api.ReturnError(w, h.log, api.InternalServerError)
	}
}

func requestContext(r *http.Request) access.RequestContext {
	rc, ok := access.FromContext(r.Context())
	if !ok {
		return access.RequestContext{View: models.GuestView()}
	}
	return rc
}
