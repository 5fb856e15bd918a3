package models

import (
	"errors"
	"strings"
	"time"
)

// Session represents the data stored for a single browser session.
// The token is the map key of the persisted collection and is the only
// capability needed to resume the session.
type Session struct {
	Token     string    // opaque bearer token
	Role      Role      // admin or user, fixed at creation
	Username  string    // admin login name or credential store key
	CreatedAt time.Time // sole basis for expiry, zero when the stored value could not be parsed
}

// Age returns how long ago the session was issued.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// SessionView is the per-request state derived from a session and the user profile.
// It is computed on every restore and never persisted.
type SessionView struct {
	Role     Role         `json:"role"`
	UserName string       `json:"user_name,omitempty"`
	AgeGroup *AgeGroup    `json:"age_group"`
	Profile  *UserProfile `json:"user_profile,omitempty"`
	Token    string       `json:"session_token,omitempty"`
}

// GuestView is the view used when no session could be restored.
func GuestView() SessionView {
	return SessionView{Role: RoleGuest}
}

// IsGuest reports whether the view carries no authenticated identity.
func (v SessionView) IsGuest() bool {
	return v.Role == "" || v.Role == RoleGuest
}

// TimestampLayout is the local, timezone-naive ISO-8601 layout used in the session file.
const TimestampLayout = "2006-01-02T15:04:05.999999"

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// FormatTimestamp renders t in local wall-clock time without an offset.
func FormatTimestamp(t time.Time) string {
	return t.In(time.Local).Format(TimestampLayout)
}

// ParseTimestamp accepts the naive layouts written by FormatTimestamp (and older
// writers using a space separator) as local time, and RFC 3339 values with an offset.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Parse(time.RFC3339Nano, s)
}
