package access

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/arvindjonn09/dharma-mini/api"
	"github.com/arvindjonn09/dharma-mini/internal/logutil"
	"github.com/arvindjonn09/dharma-mini/pkg/models"
	"github.com/google/uuid"
)

type contextKey string

const requestContextKey contextKey = "request"

// RequestIDHeader carries the request id back to the client.
const RequestIDHeader = "X-Request-ID"

// RequestContext is the state resolved once per request. Handlers read it
// through FromContext and never change it; flows that change the session
// return a new view instead.
type RequestContext struct {
	View      models.SessionView
	Warning   bool // session is inside the expiry warning window
	RequestID string
}

// Token returns the resumption token of the request, empty for guests.
func (rc RequestContext) Token() string {
	return rc.View.Token
}

// FromContext returns the RequestContext stored by AuthenticationMiddleware.
// The second value is false when the middleware did not run.
func FromContext(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey).(RequestContext)
	return rc, ok
}

// WithRequestContext stores rc in ctx the way AuthenticationMiddleware does.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// AuthenticationMiddleware resolves the resumption token into a session view.
//
// The token is read from the query parameter first, then from the cookie.
// Unknown, expired or orphaned tokens all resolve to the guest view; a stale
// cookie is cleared. Storage failures answer 503 instead of silently
// downgrading the caller to a guest.
//
// This middleware does not enforce access control, see AuthorizationMiddleware.
func (e *Enforcer) AuthenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		log := e.log.With("request_id", requestID, "method", r.Method, "path", r.URL.Path)

		token, fromCookie := e.tokenFromRequest(r)
		rc := RequestContext{View: models.GuestView(), RequestID: requestID}

		if token != "" {
			view, err := e.sessions.Restore(r.Context(), token)
			if err != nil {
				log.Error("session restore failed", "token", logutil.Redact(token), "err", err)
				api.ReturnError(w, e.log, api.ServiceUnavailable)
				return
			}
			if view != nil {
				rc.View = *view
				rc.Warning = e.sessions.ExpiryWarning(r.Context(), token)
			} else if fromCookie {
				log.Debug("clearing stale session cookie", "token", logutil.Redact(token))
				e.ExpireCookie(w)
			}
		}

		next.ServeHTTP(w, r.WithContext(WithRequestContext(r.Context(), rc)))
	})
}

// AuthorizationMiddleware rejects requests whose role is below required.
// Guests get 401 so clients show the sign-in form; signed-in users get 403.
func (e *Enforcer) AuthorizationMiddleware(path string, required models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc, ok := FromContext(r.Context())
			if !ok {
				e.log.Error("authorization ran without a request context", "path", path)
				api.ReturnError(w, e.log, api.InternalServerError)
				return
			}

			if !rc.View.Role.AtLeast(required) {
				e.log.Debug("access denied", "path", path, "role", rc.View.Role, "required", required, "request_id", rc.RequestID)
				if rc.View.IsGuest() {
					api.ReturnError(w, e.log, api.UnauthorizedSignInRequired)
					return
				}
				api.ReturnError(w, e.log, api.ForbiddenAccessDenied)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WrapHandler applies authentication and, when the matching policy requires
// more than guest, authorization. The outermost layer records request metrics.
func (e *Enforcer) WrapHandler(path, method string, h http.Handler) http.Handler {
	requiredRole, _ := e.FindMatchingPolicy(path, method)

	if requiredRole != models.RoleGuest {
		h = e.AuthorizationMiddleware(path, requiredRole)(h)
	}

	h = e.AuthenticationMiddleware(h)
	return e.instrument(path, h)
}

// SetSessionCookie hands the token to the browser for later requests.
func (e *Enforcer) SetSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     e.CookieName,
		Value:    token,
		Path:     e.CookiePath,
		Expires:  expires,
		HttpOnly: true,
		Secure:   e.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ExpireCookie clears the session cookie on the client.
func (e *Enforcer) ExpireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     e.CookieName,
		Value:    "",
		Path:     e.CookiePath,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   e.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ResumeLink returns the query string that resumes the session on any page.
func (e *Enforcer) ResumeLink(token string) string {
	return "?" + e.CookieName + "=" + token
}

func (e *Enforcer) tokenFromRequest(r *http.Request) (token string, fromCookie bool) {
	if t := r.URL.Query().Get(e.CookieName); t != "" {
		return t, false
	}
	if c, err := r.Cookie(e.CookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (e *Enforcer) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		e.metrics.ObserveRequest(r.Method, route, strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}
