package sessionstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/arvindjonn09/dharma-mini/internal/jsonfile"
	"github.com/arvindjonn09/dharma-mini/internal/logutil"
	"github.com/arvindjonn09/dharma-mini/pkg/models"
)

// fileSessionStore keeps every session in one JSON object keyed by token,
// the format read and written by earlier deployments:
//
//	{"<token>": {"role": "user", "username": "asha", "created_at": "2025-01-02T15:04:05.123456"}}
//
// Each mutation changes a single token under the document lock, so a
// creation racing an expiry cleanup keeps both changes.
type fileSessionStore struct {
	doc *jsonfile.Document
	log *slog.Logger
}

// NewFile returns a store persisted to the JSON document at path.
func NewFile(logger *slog.Logger, path string) *fileSessionStore {
	logger = logutil.OrDiscard(logger)
	return &fileSessionStore{
		doc: jsonfile.New(logger, path),
		log: logger,
	}
}

func (s *fileSessionStore) Insert(ctx context.Context, sess models.Session) error {
	if err := checkContext(ctx, s.log, "insert"); err != nil {
		return err
	}

	raw, err := encodeRecord(sess)
	if err != nil {
		return models.NewTransformationError(err.Error())
	}

	return s.doc.Update(ctx, func(doc map[string]json.RawMessage) (bool, error) {
		if _, exists := doc[sess.Token]; exists {
			return false, ErrTokenExists
		}
		doc[sess.Token] = raw
		return true, nil
	})
}

func (s *fileSessionStore) Get(ctx context.Context, token string) (*models.Session, error) {
	if err := checkContext(ctx, s.log, "get"); err != nil {
		return nil, err
	}

	doc, err := s.doc.Load()
	if err != nil {
		return nil, logutil.LogAndWrapErr(s.log, "failed to read session file", err, "path", s.doc.Path())
	}

	raw, ok := doc[token]
	if !ok {
		return nil, newSessionNotFoundError(token)
	}
	sess := decodeRecord(token, raw)
	return &sess, nil
}

func (s *fileSessionStore) Delete(ctx context.Context, token string) error {
	if err := checkContext(ctx, s.log, "delete"); err != nil {
		return err
	}

	return s.doc.Update(ctx, func(doc map[string]json.RawMessage) (bool, error) {
		if _, exists := doc[token]; !exists {
			return false, nil
		}
		delete(doc, token)
		return true, nil
	})
}

func (s *fileSessionStore) List(ctx context.Context) ([]models.Session, error) {
	if err := checkContext(ctx, s.log, "list"); err != nil {
		return nil, err
	}

	doc, err := s.doc.Load()
	if err != nil {
		return nil, logutil.LogAndWrapErr(s.log, "failed to read session file", err, "path", s.doc.Path())
	}

	out := make([]models.Session, 0, len(doc))
	for token, raw := range doc {
		out = append(out, decodeRecord(token, raw))
	}
	sortByCreation(out)
	return out, nil
}

func (s *fileSessionStore) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := checkContext(ctx, s.log, "cleanup"); err != nil {
		return 0, err
	}

	removed := 0
	err := s.doc.Update(ctx, func(doc map[string]json.RawMessage) (bool, error) {
		for token, raw := range doc {
			if isStale(decodeRecord(token, raw), cutoff) {
				delete(doc, token)
				removed++
			}
		}
		return removed > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *fileSessionStore) Close() error {
	return s.doc.Close()
}
