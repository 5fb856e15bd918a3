package authstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/arvindjonn09/dharma-mini/internal/db"
	"github.com/arvindjonn09/dharma-mini/internal/jsonfile"
	"github.com/arvindjonn09/dharma-mini/internal/logutil"
	"github.com/arvindjonn09/dharma-mini/pkg/models"
)

// fileAuthStore reads and writes the users document:
//
//	{"asha": {"username": "asha", "first_name": "Asha", "year_of_birth": 2010, ..., "password": "$2a$12$..."}}
type fileAuthStore struct {
	doc *jsonfile.Document
	log *slog.Logger
}

func (s *fileAuthStore) GetUser(ctx context.Context, username string) (*models.UserProfile, error) {
	defer logutil.NewTimingLogger(s.log, time.Now(), "read users file", "method", "GetUser")()

	doc, err := s.doc.Load()
	if err != nil {
		return nil, logutil.LogAndWrapErr(s.log, "failed to read users file", err, "path", s.doc.Path())
	}
	raw, ok := doc[username]
	if !ok {
		return nil, nil
	}
	user, err := s.decodeProfile(username, raw)
	if err != nil {
		return nil, logutil.LogAndWrapErr(s.log, "failed to decode user", err, "username", username)
	}
	return user, nil
}

func (s *fileAuthStore) CreateUser(ctx context.Context, profile models.UserProfile) (*models.UserProfile, error) {
	defer logutil.NewTimingLogger(s.log, time.Now(), "updated users file", "method", "CreateUser")()
	errMsg := "failed to create user"

	if strings.TrimSpace(profile.Username) == "" {
		return nil, logutil.DebugAndWrapErr(s.log, errMsg,
			models.NewFieldValidationError("username", "username not set"))
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		return nil, logutil.LogAndWrapErr(s.log, errMsg, models.NewTransformationError(err.Error()))
	}

	err = s.doc.Update(ctx, func(doc map[string]json.RawMessage) (bool, error) {
		if _, exists := doc[profile.Username]; exists {
			return false, db.NewDuplicateKeyError("username",
				fmt.Errorf("user %q already exists", profile.Username))
		}
		doc[profile.Username] = raw
		return true, nil
	})
	if err != nil {
		if db.IsDuplicateKey(err) {
			return nil, logutil.DebugAndWrapErr(s.log, errMsg, err, "username", profile.Username)
		}
		return nil, err
	}

	created := profile
	return &created, nil
}

func (s *fileAuthStore) ListUsers(ctx context.Context) ([]*models.UserProfile, error) {
	doc, err := s.doc.Load()
	if err != nil {
		return nil, logutil.LogAndWrapErr(s.log, "failed to read users file", err, "path", s.doc.Path())
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	slices.Sort(names)

	var errs []error
	users := make([]*models.UserProfile, 0, len(names))
	for _, name := range names {
		user, err := s.decodeProfile(name, doc[name])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		users = append(users, user)
	}

	if len(errs) > 0 {
		// Return partial results with joined transformation errors
		return users, errors.Join(errs...)
	}
	return users, nil
}

func (s *fileAuthStore) DeleteUser(ctx context.Context, username string) error {
	return s.doc.Update(ctx, func(doc map[string]json.RawMessage) (bool, error) {
		if _, exists := doc[username]; !exists {
			return false, nil
		}
		delete(doc, username)
		return true, nil
	})
}

func (s *fileAuthStore) Close() error {
	return s.doc.Close()
}

// decodeProfile reads one record. The map key is authoritative for the username.
// A field holding the wrong type is left empty and logged; only a record that is
// not a JSON object fails to decode.
func (s *fileAuthStore) decodeProfile(username string, raw json.RawMessage) (*models.UserProfile, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, models.NewTransformationError(fmt.Sprintf("user %q: %v", username, err))
	}

	user := models.UserProfile{Username: username}
	decoders := []struct {
		name   string
		decode func(json.RawMessage) error
	}{
		{"first_name", func(r json.RawMessage) error { return decodeField(r, &user.FirstName) }},
		{"last_name", func(r json.RawMessage) error { return decodeField(r, &user.LastName) }},
		{"year_of_birth", func(r json.RawMessage) error { return decodeField(r, &user.YearOfBirth) }},
		{"language", func(r json.RawMessage) error { return decodeField(r, &user.Language) }},
		{"location", func(r json.RawMessage) error { return decodeField(r, &user.Location) }},
		{"password", func(r json.RawMessage) error { return decodeField(r, &user.Password) }},
	}

	var skipped []string
	for _, d := range decoders {
		v, ok := fields[d.name]
		if !ok {
			continue
		}
		if err := d.decode(v); err != nil {
			skipped = append(skipped, d.name)
		}
	}
	if len(skipped) > 0 {
		s.log.Warn("ignored malformed user fields", "username", username, "fields", skipped)
	}
	return &user, nil
}

// decodeField leaves dst untouched when raw does not fit its type.
func decodeField[T any](raw json.RawMessage, dst *T) error {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = v
	return nil
}
