package sessionstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/arvindjonn09/dharma-mini/pkg/models"
)

// MinTokenBytes is the smallest accepted token size, 128 bits of entropy.
const MinTokenBytes = 16

// GenerateToken returns n bytes from crypto/rand encoded as unpadded base64url.
func GenerateToken(n int) (string, error) {
	if n < MinTokenBytes {
		return "", fmt.Errorf("token length %d is below the %d byte minimum", n, MinTokenBytes)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// record is the persisted shape of a session in the JSON file and in redis:
// {"role": "...", "username": "...", "created_at": "2025-01-02T15:04:05.123456"}
type record struct {
	Role      string `json:"role"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

func encodeRecord(s models.Session) (json.RawMessage, error) {
	return json.Marshal(record{
		Role:      s.Role.String(),
		Username:  s.Username,
		CreatedAt: models.FormatTimestamp(s.CreatedAt),
	})
}

// decodeRecord never fails: anything unreadable yields a session with a zero
// CreatedAt, which callers treat as expired.
func decodeRecord(token string, raw []byte) models.Session {
	s := models.Session{Token: token}
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return s
	}
	s.Role = models.Role(r.Role)
	s.Username = r.Username
	if t, err := models.ParseTimestamp(r.CreatedAt); err == nil {
		s.CreatedAt = t
	}
	return s
}

func sortByCreation(sessions []models.Session) {
	slices.SortFunc(sessions, func(a, b models.Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Token, b.Token)
	})
}

func isStale(s models.Session, cutoff time.Time) bool {
	return s.CreatedAt.IsZero() || s.CreatedAt.Before(cutoff)
}

// checkContext reports a cancelled or expired context before any storage is touched.
func checkContext(ctx context.Context, log *slog.Logger, op string) error {
	select {
	case <-ctx.Done():
		log.Info("context cancelled during session "+op, "error", ctx.Err())
		return ctx.Err()
	default:
		return nil
	}
}
