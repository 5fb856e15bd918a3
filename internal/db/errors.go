package db

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/mattn/go-sqlite3"
)

// DuplicateKeyError represents a database constraint violation error
type DuplicateKeyError struct {
	Field string // The field that caused the constraint violation
	err   error  // The underlying database error
}

func (e *DuplicateKeyError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("duplicate key violation: %s already exists", e.Field)
	}
	return "duplicate key violation"
}

// Unwrap returns the underlying error for error chain support
func (e *DuplicateKeyError) Unwrap() error {
	return e.err
}

// NewDuplicateKeyError creates a new DuplicateKeyError
func NewDuplicateKeyError(field string, err error) error {
	return &DuplicateKeyError{
		Field: field,
		err:   err,
	}
}

// IsDuplicateKey reports whether err is, or wraps, a DuplicateKeyError.
func IsDuplicateKey(err error) bool {
	var dup *DuplicateKeyError
	return errors.As(err, &dup)
}

// WrapErrorIfDuplicateConstraint converts sqlite unique and primary key violations
// into a DuplicateKeyError. Other errors are returned unchanged.
func WrapErrorIfDuplicateConstraint(err error) (bool, error) {
	var sqliteErr sqlite3.Error
	switch {
	case errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey):
		return true, NewDuplicateKeyError(extractViolatedFieldFromSQLite(err), err)
	default:
		return false, err
	}
}

// A pre-compiled regex to find the column name from a SQLite unique constraint error.
// It looks for the pattern "table.column" at the end of the error string.
var sqliteUniqueConstraintRegex = regexp.MustCompile(`(?:UNIQUE|PRIMARY KEY) constraint failed: \w+\.(\w+)`)

// extractViolatedFieldFromSQLite attempts to parse the column name from a SQLite error.
func extractViolatedFieldFromSQLite(err error) string {
	// e.g., ["UNIQUE constraint failed: users.username", "username"]
	matches := sqliteUniqueConstraintRegex.FindStringSubmatch(err.Error())
	if len(matches) > 1 {
		return matches[1]
	}
	return "unknown"
}
