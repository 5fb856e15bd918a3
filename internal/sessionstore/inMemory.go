package sessionstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arvindjonn09/dharma-mini/internal/logutil"
	"github.com/arvindjonn09/dharma-mini/pkg/models"
)

type inMemorySessionStore struct {
	sessions map[string]models.Session // token -> session
	mutex    sync.Mutex
	log      *slog.Logger
}

// NewInMemory returns a store that keeps sessions in process memory only.
func NewInMemory(logger *slog.Logger) *inMemorySessionStore {
	return &inMemorySessionStore{
		sessions: make(map[string]models.Session),
		log:      logutil.OrDiscard(logger),
	}
}

func (s *inMemorySessionStore) Insert(ctx context.Context, sess models.Session) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := checkContext(ctx, s.log, "insert"); err != nil {
		return err
	}

	if _, exists := s.sessions[sess.Token]; exists {
		return ErrTokenExists
	}
	s.sessions[sess.Token] = sess

	s.log.Debug("inserted session", "token", logutil.Redact(sess.Token), "role", sess.Role)
	return nil
}

func (s *inMemorySessionStore) Get(ctx context.Context, token string) (*models.Session, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := checkContext(ctx, s.log, "get"); err != nil {
		return nil, err
	}

	sess, ok := s.sessions[token]
	if !ok {
		return nil, newSessionNotFoundError(token)
	}
	return &sess, nil
}

func (s *inMemorySessionStore) Delete(ctx context.Context, token string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := checkContext(ctx, s.log, "delete"); err != nil {
		return err
	}

	delete(s.sessions, token)
	s.log.Debug("deleted session", "token", logutil.Redact(token))
	return nil
}

func (s *inMemorySessionStore) List(ctx context.Context) ([]models.Session, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := checkContext(ctx, s.log, "list"); err != nil {
		return nil, err
	}

	out := make([]models.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sortByCreation(out)
	return out, nil
}

func (s *inMemorySessionStore) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := checkContext(ctx, s.log, "cleanup"); err != nil {
		return 0, err
	}

	removed := 0
	for k, v := range s.sessions {
		if isStale(v, cutoff) {
			delete(s.sessions, k)
			removed++
		}
	}
	return removed, nil
}

func (s *inMemorySessionStore) Close() error {
	return nil
}
