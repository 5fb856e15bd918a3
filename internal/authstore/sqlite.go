package authstore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/arvindjonn09/dharma-mini/internal/db"
	"github.com/arvindjonn09/dharma-mini/internal/db/sqliteDB"
	"github.com/arvindjonn09/dharma-mini/internal/logutil"
	"github.com/arvindjonn09/dharma-mini/pkg/models"
)

type sqliteAuthStore struct {
	db      *sql.DB
	queries *sqliteDB.Queries
	log     *slog.Logger
}

func (s *sqliteAuthStore) Ping() error {
	return s.db.Ping()
}

func (s *sqliteAuthStore) GetUser(ctx context.Context, username string) (*models.UserProfile, error) {
	defer logutil.NewTimingLogger(s.log, time.Now(), "executed sql query", "method", "GetUser")()

	sqlUser, err := s.queries.GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, logutil.LogAndWrapErr(s.log, "failed to get user",
			models.NewDatabaseError(err), "username", username)
	}
	user := sqlUser.ToUserModel()
	return &user, nil
}

func (s *sqliteAuthStore) CreateUser(ctx context.Context, profile models.UserProfile) (*models.UserProfile, error) {
	defer logutil.NewTimingLogger(s.log, time.Now(), "executed sql query", "method", "CreateUser")()
	errMsg := "failed to create user"

	if strings.TrimSpace(profile.Username) == "" {
		return nil, logutil.DebugAndWrapErr(s.log, errMsg,
			models.NewFieldValidationError("username", "username not set"))
	}

	sqlUser, err := s.queries.CreateUser(ctx, sqliteDB.CreateUserParamsFromModel(profile, time.Now()))
	if err != nil {
		if dup, dupErr := db.WrapErrorIfDuplicateConstraint(err); dup {
			return nil, logutil.DebugAndWrapErr(s.log, errMsg, dupErr, "username", profile.Username)
		}
		return nil, logutil.LogAndWrapErr(s.log, errMsg, models.NewDatabaseError(err))
	}
	user := sqlUser.ToUserModel()
	return &user, nil
}

func (s *sqliteAuthStore) ListUsers(ctx context.Context) ([]*models.UserProfile, error) {
	defer logutil.NewTimingLogger(s.log, time.Now(), "executed sql query", "method", "ListUsers")()

	sqlUsers, err := s.queries.ListUsers(ctx)
	if err != nil {
		return nil, logutil.LogAndWrapErr(s.log, "failed to list users", models.NewDatabaseError(err))
	}

	users := make([]*models.UserProfile, 0, len(sqlUsers))
	for _, sqlUser := range sqlUsers {
		user := sqlUser.ToUserModel()
		users = append(users, &user)
	}
	return users, nil
}

func (s *sqliteAuthStore) DeleteUser(ctx context.Context, username string) error {
	defer logutil.NewTimingLogger(s.log, time.Now(), "executed sql query", "method", "DeleteUser")()

	if err := s.queries.DeleteUser(ctx, username); err != nil {
		return logutil.LogAndWrapErr(s.log, "failed to delete user",
			models.NewDatabaseError(err), "username", username)
	}
	return nil
}

// Close is a no-op; the connection belongs to the caller.
func (s *sqliteAuthStore) Close() error {
	return nil
}
