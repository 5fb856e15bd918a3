package passwd

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	// Test case 1: Valid password
	password := "mysecret#password"
	hashedPassword, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword returned an error for valid password: %v", err)
	}
	if hashedPassword == "" {
		t.Error("HashPassword returned an empty string for valid password")
	}

	// Verify the hash (we can't decrypt, but we can check if it's a valid bcrypt hash)
	err = bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if err != nil {
		t.Errorf("Hashed password does not match original password: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hashedPassword))
	if err != nil || cost != DefaultCost {
		t.Errorf("expected cost %d, got %d (%v)", DefaultCost, cost, err)
	}

	// Test case 2: Password exceeding MaxPasswordLen
	longPassword := strings.Repeat("a", MaxPasswordLen+1) // 73 characters
	_, err = HashPassword(longPassword)
	if !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("Expected ErrPasswordTooLong, got '%v' for overly long password", err)
	}
}

func TestHashPasswordWithCost(t *testing.T) {
	hashed, err := HashPasswordWithCost("quick!pass", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPasswordWithCost returned an error: %v", err)
	}
	if !CheckPasswordHash("quick!pass", hashed) {
		t.Error("hash made with a custom cost does not verify")
	}

	if _, err := HashPasswordWithCost("quick!pass", bcrypt.MaxCost+1); err == nil {
		t.Error("expected an error for an out of range cost")
	}
}

func TestCheckPasswordHash(t *testing.T) {
	password := "testpassword123!"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to generate bcrypt hash for testing: %v", err)
	}

	// Test case 1: Correct password and hash
	if !CheckPasswordHash(password, string(hashedPassword)) {
		t.Error("CheckPasswordHash returned false for correct password and hash")
	}

	// Test case 2: Incorrect password
	if CheckPasswordHash("wrongpassword!", string(hashedPassword)) {
		t.Error("CheckPasswordHash returned true for incorrect password")
	}

	// Test case 3: Empty password with non-empty hash (should fail)
	if CheckPasswordHash("", string(hashedPassword)) {
		t.Error("CheckPasswordHash returned true for empty password and non-empty hash")
	}

	// Test case 4: Invalid hash format (should fail)
	if CheckPasswordHash(password, "thisisnotavalidhash") {
		t.Error("CheckPasswordHash returned true for invalid hash format")
	}

	// Test case 5: Missing hash, as on a profile without a password field
	if CheckPasswordHash(password, "") {
		t.Error("CheckPasswordHash returned true for an empty stored hash")
	}
}

func TestValidatePolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"valid", "lotus#bloom", nil},
		{"valid with every special kind", `abcdefg"`, nil},
		{"too short", "ab#cd", ErrPasswordTooShort},
		{"short once trimmed", "   ab#cd   ", ErrPasswordTooShort},
		{"no special character", "lotusbloom", ErrPasswordNoSymbol},
		{"empty", "", ErrPasswordTooShort},
		{"too long", strings.Repeat("a", MaxPasswordLen) + "!", ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePolicy(tt.password)
			if !errors.Is(err, tt.want) {
				t.Errorf("ValidatePolicy(%q) = %v, want %v", tt.password, err, tt.want)
			}
		})
	}
}
