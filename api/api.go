package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/arvindjonn09/dharma-mini/internal/session"
	"github.com/arvindjonn09/dharma-mini/pkg/models"
)

// RespondJSONAndLog is a convenience wrapper around RespondJSON that also logs any encoding errors.
func RespondJSONAndLog(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	if err := RespondJSON(w, status, payload); err != nil && logger != nil {
		logger.Debug("failed to respond with JSON", "err", err)
	}
}

// RespondJSON sets the status code and Content-Type header and encodes payload.
// Returns an error only if JSON encoding fails.
func RespondJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

// LoginRequest is the body of POST /login and POST /admin/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by every flow that starts a session.
// ResumeLink can be bookmarked to pick the session up again within its lifetime.
type AuthResponse struct {
	Token      string             `json:"session_token"`
	ResumeLink string             `json:"resume_link"`
	ExpiresAt  time.Time          `json:"expires_at"`
	View       models.SessionView `json:"view"`
}

// LogoutResponse carries the guest view that replaces the ended session.
type LogoutResponse struct {
	View models.SessionView `json:"view"`
}

// MeResponse describes the state resolved for the current request.
type MeResponse struct {
	View          models.SessionView `json:"view"`
	ExpiryWarning bool               `json:"expiry_warning"`
	RequestID     string             `json:"request_id"`
}

// SessionsResponse lists stored sessions for administrators.
type SessionsResponse struct {
	Sessions []session.Info `json:"sessions"`
	Count    int            `json:"count"`
}

// PruneResponse reports how many expired sessions were removed.
type PruneResponse struct {
	Removed int `json:"removed"`
}

// HealthResponse is served by GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}
