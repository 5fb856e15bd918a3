package authstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/arvindjonn09/dharma-mini/database"
	"github.com/arvindjonn09/dharma-mini/internal/db"
	"github.com/arvindjonn09/dharma-mini/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	conn, err := sql.Open("sqlite3", filepath.Join(dir, "users.db"))
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, database.RunSqliteMigrations(conn))

	file := NewWithFileStore(filepath.Join(dir, "users.json"), nil)
	t.Cleanup(func() { _ = file.Close() })

	return map[string]Store{
		"file":   file,
		"sqlite": NewWithSqliteStore(conn, nil),
	}
}

func strPtr(s string) *string { return &s }

func sampleProfile(username string) models.UserProfile {
	return models.UserProfile{
		Username:    username,
		FirstName:   "Asha",
		LastName:    strPtr("Rao"),
		YearOfBirth: models.KnownBirthYear(2012),
		Language:    "Telugu",
		Password:    "$2a$12$hashhashhashhashhashhu",
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			created, err := store.CreateUser(ctx, sampleProfile("asha"))
			require.NoError(t, err)
			assert.Equal(t, "asha", created.Username)

			got, err := store.GetUser(ctx, "asha")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "Asha", got.FirstName)
			require.NotNil(t, got.LastName)
			assert.Equal(t, "Rao", *got.LastName)
			assert.Nil(t, got.Location)
			assert.Equal(t, models.KnownBirthYear(2012), got.YearOfBirth)
			assert.Equal(t, "Telugu", got.Language)
			assert.Equal(t, "$2a$12$hashhashhashhashhashhu", got.Password)
		})
	}
}

func TestStore_GetMissingIsNilNil(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.GetUser(context.Background(), "nobody")
			assert.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestStore_DuplicateUsername(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.CreateUser(ctx, sampleProfile("asha"))
			require.NoError(t, err)

			_, err = store.CreateUser(ctx, sampleProfile("asha"))
			require.Error(t, err)
			assert.True(t, db.IsDuplicateKey(err))
		})
	}
}

func TestStore_EmptyUsernameRejected(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.CreateUser(context.Background(), sampleProfile("  "))
			var vErr *models.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, "username", vErr.Field)
		})
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, u := range []string{"ravi", "asha", "meera"} {
				_, err := store.CreateUser(ctx, sampleProfile(u))
				require.NoError(t, err)
			}

			users, err := store.ListUsers(ctx)
			require.NoError(t, err)
			require.Len(t, users, 3)
			assert.Equal(t, "asha", users[0].Username)
			assert.Equal(t, "meera", users[1].Username)
			assert.Equal(t, "ravi", users[2].Username)

			require.NoError(t, store.DeleteUser(ctx, "meera"))
			require.NoError(t, store.DeleteUser(ctx, "meera"))

			got, err := store.GetUser(ctx, "meera")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestFileStore_LenientBirthYear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "old": {"first_name": "Old", "year_of_birth": "1990", "language": "Hindi", "password": "x"},
  "none": {"first_name": "None", "language": "Other", "password": "x"}
}`), 0o600))

	store := NewWithFileStore(path, nil)
	defer store.Close()

	old, err := store.GetUser(context.Background(), "old")
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.Equal(t, "old", old.Username, "username comes from the key")
	assert.False(t, old.YearOfBirth.Valid, "string years are unknown")

	none, err := store.GetUser(context.Background(), "none")
	require.NoError(t, err)
	assert.False(t, none.YearOfBirth.Valid)
}

func TestFileStore_WrongFieldTypesAreIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "asha": {"first_name": "Asha", "last_name": 7, "year_of_birth": 2012, "language": "Telugu", "location": 5, "password": "x"}
}`), 0o600))

	store := NewWithFileStore(path, nil)
	defer store.Close()

	got, err := store.GetUser(context.Background(), "asha")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Asha", got.FirstName)
	assert.Nil(t, got.LastName)
	assert.Nil(t, got.Location)
	assert.Equal(t, models.KnownBirthYear(2012), got.YearOfBirth)
	assert.Equal(t, "Telugu", got.Language)
	assert.Equal(t, "x", got.Password)

	users, err := store.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestFileStore_UnreadableFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	store := NewWithFileStore(path, nil)
	defer store.Close()

	got, err := store.GetUser(context.Background(), "asha")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, models.IsDatabaseError(err))
}

func TestFileStore_CorruptRecordSkippedInList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"good": {"first_name": "G"}, "bad": ["not", "a", "profile"]}`), 0o600))

	store := NewWithFileStore(path, nil)
	defer store.Close()

	users, err := store.ListUsers(context.Background())
	require.Error(t, err)
	var tErr *models.TransformationError
	assert.ErrorAs(t, err, &tErr)
	require.Len(t, users, 1)
	assert.Equal(t, "good", users[0].Username)
}
