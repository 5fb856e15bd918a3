package models

import (
	"errors"
	"fmt"
)

// ValidationError represents an error due to invalid or malformed input,
// such as a signup form field or an unknown session role.
// Supports errors.As.
type ValidationError struct {
	Field string
	msg   string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.msg
}

// NewValidationError creates a new ValidationError with the given message.
func NewValidationError(msg string) error {
	return &ValidationError{msg: msg}
}

// NewFieldValidationError creates a ValidationError attributed to a single input field.
func NewFieldValidationError(field, msg string) error {
	return &ValidationError{Field: field, msg: msg}
}

// TransformationError wraps errors that occur while converting persisted
// records into models, e.g. a corrupt JSON document.
type TransformationError struct {
	msg string
}

// Error implements the error interface.
func (e *TransformationError) Error() string {
	return e.msg
}

// NewTransformationError creates a new TransformationError.
func NewTransformationError(msg string) error {
	return &TransformationError{
		msg: msg,
	}
}

// DatabaseError wraps failures interacting with the persistence layer
// (session file, sqlite, redis). It is never used for "not found".
// Supports errors.As and errors.Unwrap.
type DatabaseError struct {
	err error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error: %v", e.err)
}

func (e *DatabaseError) Unwrap() error {
	return e.err
}

// NewDatabaseError creates a new DatabaseError.
func NewDatabaseError(err error) error {
	return &DatabaseError{
		err: err,
	}
}

// IsDatabaseError reports whether err or anything it wraps is a DatabaseError.
func IsDatabaseError(err error) bool {
	var dbErr *DatabaseError
	return errors.As(err, &dbErr)
}
