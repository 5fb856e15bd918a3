package passwd

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Constants for cost and max password length (bcrypt truncates after 72 bytes)
const (
	DefaultCost    = 12 // Usually 10
	MaxPasswordLen = 72 // bcrypt input limit
	MinPasswordLen = 8
)

// SpecialCharacters lists the characters of which a password must contain at least one.
const SpecialCharacters = `!@#$%^&*()-_=+[]{};:'",.<>/?|`

var (
	ErrPasswordTooLong  = errors.New("password exceeds 72 bytes and will be truncated by bcrypt")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordNoSymbol = errors.New("password must contain a special character")
)

// HashPassword hashes a password using bcrypt with the DefaultCost
func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, DefaultCost)
}

// HashPasswordWithCost hashes a password using bcrypt with the given cost.
func HashPasswordWithCost(password string, cost int) (string, error) {
	// Warn or reject overly long passwords
	if len(password) > MaxPasswordLen {
		return "", ErrPasswordTooLong
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}

	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plaintext password with a bcrypt hashed password.
// Returns true if they match, false otherwise.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ValidatePolicy enforces the account password rule: at least MinPasswordLen
// characters once surrounding whitespace is removed, and at least one of SpecialCharacters.
func ValidatePolicy(password string) error {
	if len([]rune(strings.TrimSpace(password))) < MinPasswordLen {
		return ErrPasswordTooShort
	}
	if !strings.ContainsAny(password, SpecialCharacters) {
		return ErrPasswordNoSymbol
	}
	if len(strings.TrimSpace(password)) > MaxPasswordLen {
		return ErrPasswordTooLong
	}
	return nil
}
