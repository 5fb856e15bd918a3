// Package session implements the session lifecycle: issuing tokens, restoring
// them into a per-request view, expiry warnings and teardown.
//
// A token moves through absent -> active -> absent. It becomes active only via
// Create and returns to absent when it is destroyed or found expired on restore.
// Nothing ever re-activates a token.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arvindjonn09/dharma-mini/internal/logutil"
	"github.com/arvindjonn09/dharma-mini/internal/metrics"
	"github.com/arvindjonn09/dharma-mini/internal/sessionstore"
	"github.com/arvindjonn09/dharma-mini/pkg/models"
)

const (
	DefaultTTL         = 40 * time.Minute
	DefaultWarningLead = 10 * time.Minute
	// NoWarning as Options.WarningLead turns expiry warnings off.
	NoWarning time.Duration = -1
	// maxCreateAttempts bounds retries when a freshly generated token is already taken.
	maxCreateAttempts = 3
)

// OrphanPolicy decides what happens to a user session whose account no longer exists.
type OrphanPolicy string

const (
	// OrphanKeep leaves the token in the store until it expires.
	OrphanKeep OrphanPolicy = "keep"
	// OrphanPurge deletes the token as soon as the missing account is noticed.
	OrphanPurge OrphanPolicy = "purge"
)

func (p OrphanPolicy) IsValid() bool {
	return p == OrphanKeep || p == OrphanPurge
}

// UserLookup resolves a username to its profile, returning (nil, nil) when absent.
type UserLookup interface {
	GetUser(ctx context.Context, username string) (*models.UserProfile, error)
}

// Options configures a Manager. Zero values select the defaults.
// A negative WarningLead disables expiry warnings.
type Options struct {
	TTL          time.Duration
	WarningLead  time.Duration
	TokenBytes   int
	OrphanPolicy OrphanPolicy
	Clock        func() time.Time
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// Manager owns the session lifecycle on top of a session store and a credential lookup.
type Manager struct {
	store        sessionstore.Store
	users        UserLookup
	ttl          time.Duration
	warningLead  time.Duration
	tokenBytes   int
	orphanPolicy OrphanPolicy
	now          func() time.Time
	log          *slog.Logger
	metrics      *metrics.Metrics
}

// NewManager returns a Manager. It returns an error for invalid options.
func NewManager(store sessionstore.Store, users UserLookup, opts Options) (*Manager, error) {
	if store == nil || users == nil {
		return nil, errors.New("session manager requires a session store and a user lookup")
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	switch {
	case opts.WarningLead == 0:
		opts.WarningLead = DefaultWarningLead
	case opts.WarningLead < 0:
		opts.WarningLead = 0
	}
	if opts.TokenBytes == 0 {
		opts.TokenBytes = sessionstore.MinTokenBytes
	}
	if opts.OrphanPolicy == "" {
		opts.OrphanPolicy = OrphanKeep
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	switch {
	case opts.TTL < 0:
		return nil, models.NewFieldValidationError("ttl", "session ttl must be positive")
	case opts.WarningLead > opts.TTL:
		return nil, models.NewFieldValidationError("warning_lead", "warning lead must not exceed the session ttl")
	case opts.TokenBytes < sessionstore.MinTokenBytes:
		return nil, models.NewFieldValidationError("token_bytes",
			fmt.Sprintf("token must be at least %d bytes", sessionstore.MinTokenBytes))
	case !opts.OrphanPolicy.IsValid():
		return nil, models.NewFieldValidationError("orphan_policy", "unknown orphan policy: "+string(opts.OrphanPolicy))
	}

	return &Manager{
		store:        store,
		users:        users,
		ttl:          opts.TTL,
		warningLead:  opts.WarningLead,
		tokenBytes:   opts.TokenBytes,
		orphanPolicy: opts.OrphanPolicy,
		now:          opts.Clock,
		log:          logutil.OrDiscard(opts.Logger),
		metrics:      opts.Metrics,
	}, nil
}

// TTL returns the fixed lifetime of a session, counted from creation.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create issues a new session for an admin or user and returns its token.
// A persistence failure is returned; nothing is retried except a token collision.
func (m *Manager) Create(ctx context.Context, role models.Role, username string) (string, error) {
	if !role.CanHoldSession() {
		return "", models.NewFieldValidationError("role", "sessions can only be issued for admin or user, got "+role.String())
	}
	if strings.TrimSpace(username) == "" {
		return "", models.NewFieldValidationError("username", "username is required")
	}

	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		token, err := sessionstore.GenerateToken(m.tokenBytes)
		if err != nil {
			return "", logutil.LogAndWrapErr(m.log, "failed to create session", err)
		}

		sess := models.Session{
			Token:     token,
			Role:      role,
			Username:  username,
			CreatedAt: m.now(),
		}

		err = m.store.Insert(ctx, sess)
		if errors.Is(err, sessionstore.ErrTokenExists) {
			m.log.Warn("session token collision, regenerating", "attempt", attempt)
			continue
		}
		if err != nil {
			return "", logutil.LogAndWrapErr(m.log, "failed to create session", err,
				"role", role, "username", username)
		}

		m.log.Info("session created", "role", role, "username", username, "token", logutil.Redact(token))
		m.metrics.SessionCreated(role.String())
		return token, nil
	}

	return "", logutil.LogAndWrapErr(m.log, "failed to create session",
		fmt.Errorf("%w after %d attempts", sessionstore.ErrTokenExists, maxCreateAttempts))
}

// Restore resolves a token into the view for the current request.
//
// It returns (nil, nil) whenever the caller should fall back to the guest state:
// no token, unknown token, expired or unreadable session, or a user session whose
// account no longer exists. Expired sessions are removed from the store here.
// Only storage failures are returned as errors.
func (m *Manager) Restore(ctx context.Context, token string) (*models.SessionView, error) {
	if token == "" {
		m.metrics.SessionRestore(metrics.OutcomeNoToken)
		return nil, nil
	}
	log := m.log.With("token", logutil.Redact(token))

	sess, err := m.store.Get(ctx, token)
	if errors.Is(err, sessionstore.ErrSessionNotFound) {
		log.Debug("session not found")
		m.metrics.SessionRestore(metrics.OutcomeNotFound)
		return nil, nil
	}
	if err != nil {
		m.metrics.SessionRestore(metrics.OutcomeError)
		return nil, logutil.LogAndWrapErr(log, "failed to restore session", err)
	}

	now := m.now()
	if m.expired(sess, now) {
		if err := m.store.Delete(ctx, token); err != nil {
			m.metrics.SessionRestore(metrics.OutcomeError)
			return nil, logutil.LogAndWrapErr(log, "failed to remove expired session", err)
		}
		log.Info("session expired and removed", "username", sess.Username, "created_at", sess.CreatedAt)
		m.metrics.SessionRestore(metrics.OutcomeExpired)
		m.metrics.SessionDestroyed(metrics.ReasonExpired, 1)
		return nil, nil
	}

	if sess.Role == models.RoleAdmin {
		m.metrics.SessionRestore(metrics.OutcomeRestored)
		return &models.SessionView{
			Role:     models.RoleAdmin,
			UserName: sess.Username,
			Token:    token,
		}, nil
	}

	// anything that is not an admin session is resolved against the credential store
	profile, err := m.users.GetUser(ctx, sess.Username)
	var tErr *models.TransformationError
	if errors.As(err, &tErr) {
		log.Warn("session user record is unreadable, treating account as missing", "username", sess.Username, "err", err)
		profile, err = nil, nil
	}
	if err != nil {
		m.metrics.SessionRestore(metrics.OutcomeError)
		return nil, logutil.LogAndWrapErr(log, "failed to look up session user", err, "username", sess.Username)
	}
	if profile == nil {
		m.metrics.SessionRestore(metrics.OutcomeOrphaned)
		if m.orphanPolicy == OrphanPurge {
			if err := m.store.Delete(ctx, token); err != nil {
				return nil, logutil.LogAndWrapErr(log, "failed to remove orphaned session", err)
			}
			m.metrics.SessionDestroyed(metrics.ReasonOrphan, 1)
			log.Info("orphaned session removed", "username", sess.Username)
			return nil, nil
		}
		log.Info("session user no longer exists, keeping token until expiry", "username", sess.Username)
		return nil, nil
	}

	m.metrics.SessionRestore(metrics.OutcomeRestored)
	return &models.SessionView{
		Role:     models.RoleUser,
		UserName: profile.DisplayName(),
		AgeGroup: models.DeriveAgeGroup(profile.YearOfBirth, now),
		Profile:  profile.Public(),
		Token:    token,
	}, nil
}

// ExpiryWarning reports whether the session is inside the warning window
// [TTL-lead, TTL). It fails closed: any lookup problem yields false.
func (m *Manager) ExpiryWarning(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	sess, err := m.store.Get(ctx, token)
	if err != nil {
		if !errors.Is(err, sessionstore.ErrSessionNotFound) {
			m.log.Warn("expiry warning lookup failed", "token", logutil.Redact(token), "err", err)
		}
		return false
	}
	return m.inWarningWindow(sess, m.now())
}

// Destroy removes the session. Destroying an absent token is a no-op.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	return m.destroy(ctx, token, metrics.ReasonLogout)
}

// Revoke removes a session on behalf of an operator.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	return m.destroy(ctx, token, metrics.ReasonRevoked)
}

func (m *Manager) destroy(ctx context.Context, token, reason string) error {
	if token == "" {
		return nil
	}
	if err := m.store.Delete(ctx, token); err != nil {
		return logutil.LogAndWrapErr(m.log, "failed to destroy session", err, "token", logutil.Redact(token))
	}
	m.log.Info("session destroyed", "token", logutil.Redact(token), "reason", reason)
	m.metrics.SessionDestroyed(reason, 1)
	return nil
}

// Info describes a stored session for operators.
type Info struct {
	Token       string      `json:"-"`
	TokenPrefix string      `json:"token_prefix"`
	Role        models.Role `json:"role"`
	Username    string      `json:"username"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Expired     bool        `json:"expired"`
	Warning     bool        `json:"expiry_warning"`
}

// ActiveSessions lists every stored session, including expired ones not yet cleaned up.
func (m *Manager) ActiveSessions(ctx context.Context) ([]Info, error) {
	sessions, err := m.store.List(ctx)
	if err != nil {
		return nil, logutil.LogAndWrapErr(m.log, "failed to list sessions", err)
	}

	now := m.now()
	out := make([]Info, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		info := Info{
			Token:       s.Token,
			TokenPrefix: logutil.Redact(s.Token),
			Role:        s.Role,
			Username:    s.Username,
			CreatedAt:   s.CreatedAt,
			Expired:     m.expired(s, now),
			Warning:     m.inWarningWindow(s, now),
		}
		if !s.CreatedAt.IsZero() {
			info.ExpiresAt = s.CreatedAt.Add(m.ttl)
		}
		out = append(out, info)
	}
	return out, nil
}

// Prune removes every expired or unreadable session and returns how many were removed.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	removed, err := m.store.DeleteCreatedBefore(ctx, m.now().Add(-m.ttl))
	if err != nil {
		return removed, logutil.LogAndWrapErr(m.log, "failed to prune sessions", err)
	}
	m.log.Info("pruned expired sessions", "removed", removed)
	m.metrics.SessionDestroyed(metrics.ReasonPruned, removed)
	return removed, nil
}

// expired is strict: a session exactly TTL old is still valid.
// An unreadable creation time counts as expired.
func (m *Manager) expired(s *models.Session, now time.Time) bool {
	if s.CreatedAt.IsZero() {
		return true
	}
	return s.Age(now) > m.ttl
}

func (m *Manager) inWarningWindow(s *models.Session, now time.Time) bool {
	if m.warningLead == 0 || s.CreatedAt.IsZero() {
		return false
	}
	age := s.Age(now)
	return age >= m.ttl-m.warningLead && age < m.ttl
}
