package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arvindjonn09/dharma-mini/pkg/models"
)

// Store defines the interface for a session store.
//
// Every mutation is atomic for the token it touches: two concurrent Inserts of
// different tokens both survive, and an Insert racing a Delete of another token
// never drops either change. Failures to read or write the backing storage are
// returned as models.DatabaseError and must never be reported as "not found".
type Store interface {
	// Insert stores a new session. It fails with ErrTokenExists when the token is already present.
	Insert(ctx context.Context, s models.Session) error

	// Get retrieves a session by its token, or ErrSessionNotFound.
	// A record whose creation time cannot be parsed is returned with a zero CreatedAt.
	Get(ctx context.Context, token string) (*models.Session, error)

	// Delete removes a session by its token. Deleting an absent token is not an error.
	Delete(ctx context.Context, token string) error

	// List returns every stored session, expired or not, oldest first.
	List(ctx context.Context) ([]models.Session, error)

	// DeleteCreatedBefore removes every session created before cutoff, and every
	// session with an unreadable creation time. It returns the number removed.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases the resources held by the store.
	Close() error
}

var (
	ErrSessionNotFound = &SessionNotFoundError{}
	ErrTokenExists     = errors.New("session token already exists")
)

// SessionNotFoundError is returned when no session exists for a token.
type SessionNotFoundError struct {
	Token string
}

func (e *SessionNotFoundError) Error() string {
	if e.Token == "" {
		return "session not found"
	}
	return fmt.Sprintf("session '%s' not found", e.Token)
}

func (e *SessionNotFoundError) Is(target error) bool {
	_, ok := target.(*SessionNotFoundError)
	return ok
}

func newSessionNotFoundError(token string) error {
	return &SessionNotFoundError{Token: token}
}
