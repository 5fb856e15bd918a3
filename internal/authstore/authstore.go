// Package authstore is the credential store: registered user profiles keyed by username.
package authstore

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/arvindjonn09/dharma-mini/internal/db/sqliteDB"
	"github.com/arvindjonn09/dharma-mini/internal/jsonfile"
	"github.com/arvindjonn09/dharma-mini/internal/logutil"
	"github.com/arvindjonn09/dharma-mini/pkg/models"
)

// NewWithSqliteStore returns a Store backed by the users table. Migrations must already have run.
func NewWithSqliteStore(conn *sql.DB, logger *slog.Logger) *sqliteAuthStore {
	return &sqliteAuthStore{
		db:      conn,
		queries: sqliteDB.New(conn),
		log:     logutil.OrDiscard(logger),
	}
}

// NewWithFileStore returns a Store persisted to a JSON object keyed by username.
func NewWithFileStore(path string, logger *slog.Logger) *fileAuthStore {
	logger = logutil.OrDiscard(logger)
	return &fileAuthStore{
		doc: jsonfile.New(logger, path),
		log: logger,
	}
}

// Store defines a unified interface for interacting with the user credential datastore.
// It abstracts storage-specific implementations (JSON file, SQLite) behind consistent
// operations used by the session manager and the auth flows.
//
// All methods must return meaningful error types as defined in the models package,
// including ValidationError, TransformationError, and DatabaseError.
//
// Returned profiles carry the bcrypt hash in Password. Callers exposing a profile
// outside the process must use UserProfile.Public.
type Store interface {

	// GetUser retrieves a user by username.
	// If no user is found, returns (nil, nil). A failure to read the store is an error.
	GetUser(ctx context.Context, username string) (*models.UserProfile, error)

	// CreateUser inserts a new profile whose Password is already hashed.
	// Returns a db.DuplicateKeyError when the username is taken.
	CreateUser(ctx context.Context, profile models.UserProfile) (*models.UserProfile, error)

	// ListUsers returns all users ordered by username.
	// Records that fail to transform are skipped and reported via errors.Join.
	ListUsers(ctx context.Context) ([]*models.UserProfile, error)

	// DeleteUser permanently removes a user. Deleting an absent user is not an error.
	// Sessions held by the user are left in the session store.
	DeleteUser(ctx context.Context, username string) error

	// Close releases the resources held by the store.
	Close() error
}
