package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// UserProfile is a registered end user as held by the credential store.
// Password carries the bcrypt hash, never the plain text.
type UserProfile struct {
	Username    string    `json:"username"`
	FirstName   string    `json:"first_name"`
	LastName    *string   `json:"last_name"`
	YearOfBirth BirthYear `json:"year_of_birth"`
	Language    string    `json:"language"`
	Location    *string   `json:"location"`
	Password    string    `json:"password,omitempty"`
}

// DisplayName is the name shown to the user: first name when set, otherwise the username.
func (u *UserProfile) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}

// Public returns a copy of the profile with the password hash removed.
func (u *UserProfile) Public() *UserProfile {
	cp := *u
	cp.Password = ""
	return &cp
}

// BirthYear is a year of birth read leniently from persisted profiles.
// Only JSON integers are accepted, anything else (null, strings, floats) decodes as unknown.
type BirthYear struct {
	Year  int
	Valid bool
}

// KnownBirthYear returns a valid BirthYear for y.
func KnownBirthYear(y int) BirthYear {
	return BirthYear{Year: y, Valid: true}
}

func (b *BirthYear) UnmarshalJSON(data []byte) error {
	n, err := strconv.Atoi(string(bytes.TrimSpace(data)))
	if err != nil {
		*b = BirthYear{}
		return nil
	}
	*b = BirthYear{Year: n, Valid: true}
	return nil
}

func (b BirthYear) MarshalJSON() ([]byte, error) {
	if !b.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(b.Year)
}
