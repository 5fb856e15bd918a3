package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/arvindjonn09/dharma-mini/internal/db"
	"github.com/arvindjonn09/dharma-mini/internal/db/sqliteDB"
	"github.com/arvindjonn09/dharma-mini/internal/logutil"
	"github.com/arvindjonn09/dharma-mini/pkg/models"
)

type sqliteSessionStore struct {
	db      *sql.DB
	queries *sqliteDB.Queries
	log     *slog.Logger
}

// NewSqlite returns a store backed by the sessions table. Migrations must already have run.
func NewSqlite(logger *slog.Logger, conn *sql.DB) *sqliteSessionStore {
	return &sqliteSessionStore{
		db:      conn,
		queries: sqliteDB.New(conn),
		log:     logutil.OrDiscard(logger),
	}
}

func (s *sqliteSessionStore) Insert(ctx context.Context, sess models.Session) error {
	defer logutil.NewTimingLogger(s.log, time.Now(), "executed sql query", "method", "insert session")()

	if err := checkContext(ctx, s.log, "insert"); err != nil {
		return err
	}

	err := s.queries.InsertSession(ctx, sqliteDB.InsertSessionParamsFromModel(sess))
	if err != nil {
		if dup, _ := db.WrapErrorIfDuplicateConstraint(err); dup {
			return ErrTokenExists
		}
		return logutil.LogAndWrapErr(s.log, "failed to insert session",
			models.NewDatabaseError(err))
	}
	return nil
}

func (s *sqliteSessionStore) Get(ctx context.Context, token string) (*models.Session, error) {
	defer logutil.NewTimingLogger(s.log, time.Now(), "executed sql query", "method", "get session", "token", logutil.Redact(token))()

	if err := checkContext(ctx, s.log, "get"); err != nil {
		return nil, err
	}

	row, err := s.queries.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newSessionNotFoundError(token)
		}
		return nil, logutil.LogAndWrapErr(s.log, "failed to get session",
			models.NewDatabaseError(err),
			"token", logutil.Redact(token))
	}

	sess, err := row.ToSessionModel()
	if err != nil {
		return nil, logutil.LogAndWrapErr(s.log, "failed to get session", err)
	}
	return &sess, nil
}

func (s *sqliteSessionStore) Delete(ctx context.Context, token string) error {
	defer logutil.NewTimingLogger(s.log, time.Now(), "executed sql query", "method", "delete session", "token", logutil.Redact(token))()

	if err := checkContext(ctx, s.log, "delete"); err != nil {
		return err
	}

	if err := s.queries.DeleteSession(ctx, token); err != nil {
		return logutil.LogAndWrapErr(s.log, "failed to delete session",
			models.NewDatabaseError(err),
			"token", logutil.Redact(token))
	}
	return nil
}

func (s *sqliteSessionStore) List(ctx context.Context) ([]models.Session, error) {
	defer logutil.NewTimingLogger(s.log, time.Now(), "executed sql query", "method", "list sessions")()

	if err := checkContext(ctx, s.log, "list"); err != nil {
		return nil, err
	}

	rows, err := s.queries.ListSessions(ctx)
	if err != nil {
		return nil, logutil.LogAndWrapErr(s.log, "failed to list sessions", models.NewDatabaseError(err))
	}

	var errs []error
	out := make([]models.Session, 0, len(rows))
	for _, row := range rows {
		sess, err := row.ToSessionModel()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, sess)
	}
	sortByCreation(out)

	// partial results with joined transformation errors
	return out, errors.Join(errs...)
}

func (s *sqliteSessionStore) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	defer logutil.NewTimingLogger(s.log, time.Now(), "executed sql query", "method", "delete old sessions")()

	if err := checkContext(ctx, s.log, "cleanup"); err != nil {
		return 0, err
	}

	n, err := s.queries.DeleteSessionsCreatedBefore(ctx, cutoff.UnixMicro())
	if err != nil {
		return 0, logutil.LogAndWrapErr(s.log, "failed to delete old sessions", models.NewDatabaseError(err))
	}
	return int(n), nil
}

// Close is a no-op: the connection belongs to the caller.
func (s *sqliteSessionStore) Close() error {
	return nil
}
