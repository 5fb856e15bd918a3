package sqliteDB

import (
	"database/sql"
	"time"

	"github.com/arvindjonn09/dharma-mini/pkg/models"
)

func (s *Session) ToSessionModel() (models.Session, error) {
	role := models.Role(s.Role)
	if !role.CanHoldSession() {
		return models.Session{}, models.NewTransformationError("invalid session role: " + s.Role)
	}
	return models.Session{
		Token:     s.Token,
		Role:      role,
		Username:  s.Username,
		CreatedAt: time.UnixMicro(s.CreatedAt),
	}, nil
}

func InsertSessionParamsFromModel(s models.Session) InsertSessionParams {
	return InsertSessionParams{
		Token:     s.Token,
		Role:      s.Role.String(),
		Username:  s.Username,
		CreatedAt: s.CreatedAt.UnixMicro(),
	}
}

func (u *User) ToUserModel() models.UserProfile {
	profile := models.UserProfile{
		Username:  u.Username,
		FirstName: u.FirstName,
		Language:  u.Language,
		Password:  u.PasswordHash,
		LastName:  fromNullString(u.LastName),
		Location:  fromNullString(u.Location),
	}
	if u.YearOfBirth.Valid {
		profile.YearOfBirth = models.KnownBirthYear(int(u.YearOfBirth.Int64))
	}
	return profile
}

func CreateUserParamsFromModel(p models.UserProfile, now time.Time) CreateUserParams {
	return CreateUserParams{
		Username:     p.Username,
		FirstName:    p.FirstName,
		LastName:     toNullString(p.LastName),
		YearOfBirth:  sql.NullInt64{Int64: int64(p.YearOfBirth.Year), Valid: p.YearOfBirth.Valid},
		Language:     p.Language,
		Location:     toNullString(p.Location),
		PasswordHash: p.Password,
		CreatedAt:    now.Unix(),
	}
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
