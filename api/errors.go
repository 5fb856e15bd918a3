package api

import (
	"log/slog"
	"net/http"
)

// ErrorKey references a standardized error message in errorMessages.
// Several keys may share the same HTTP status code.
type ErrorKey string

const (
	ErrInvalidJSON      ErrorKey = "invalid_json"
	ErrValidation       ErrorKey = "validation_failed"
	ErrNotFound         ErrorKey = "not_found"
	ErrInternal         ErrorKey = "internal_error"
	ErrUnavailable      ErrorKey = "unavailable"
	ErrCredentials      ErrorKey = "invalid_credentials"
	ErrAuthRequired     ErrorKey = "auth_required"
	ErrAccessDenied     ErrorKey = "access_denied"
	ErrConflict         ErrorKey = "conflict"
	ErrMethodNotAllowed ErrorKey = "not_allowed"
)

var errorMessages = map[ErrorKey]string{
	ErrInvalidJSON:      "invalid JSON format",
	ErrValidation:       "validation failed",
	ErrNotFound:         "resource not found",
	ErrInternal:         "internal server error",
	ErrUnavailable:      "service unavailable",
	ErrCredentials:      "invalid credentials",
	ErrAuthRequired:     "authentication required",
	ErrAccessDenied:     "access denied",
	ErrConflict:         "resource conflict",
	ErrMethodNotAllowed: "method not allowed",
}

// ErrorResponse represents the JSON body returned for an error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NewError creates an ErrorResponse for a given HTTP status, error key, and details.
// Unknown keys fall back to "unknown error".
func NewError(status int, key ErrorKey, details string) (int, ErrorResponse) {
	msg, ok := errorMessages[key]
	if !ok {
		msg = "unknown error"
	}
	return status, ErrorResponse{
		Error:   msg,
		Details: details,
	}
}

func BadRequestInvalidJSON() (int, ErrorResponse) {
	return NewError(http.StatusBadRequest, ErrInvalidJSON, "expected valid JSON object")
}

// BadRequestValidation returns a 400 error naming the offending input.
func BadRequestValidation(details string) (int, ErrorResponse) {
	return NewError(http.StatusBadRequest, ErrValidation, details)
}

func NotFound(details string) (int, ErrorResponse) {
	return NewError(http.StatusNotFound, ErrNotFound, details)
}

// InternalServerError hides the cause from the client; the handler logs it.
func InternalServerError() (int, ErrorResponse) {
	return NewError(http.StatusInternalServerError, ErrInternal, "an unexpected error occurred")
}

// ServiceUnavailable is used when the session or credential store cannot be reached.
func ServiceUnavailable() (int, ErrorResponse) {
	return NewError(http.StatusServiceUnavailable, ErrUnavailable, "storage is not reachable, try again shortly")
}

func MethodNotAllowed() (int, ErrorResponse) {
	return NewError(http.StatusMethodNotAllowed, ErrMethodNotAllowed, "")
}

// UnauthorizedInvalidCredentials is the answer to a failed admin sign in.
func UnauthorizedInvalidCredentials() (int, ErrorResponse) {
	return NewError(http.StatusUnauthorized, ErrCredentials, "username or password is incorrect")
}

// UnauthorizedAccountNotFound is returned when the username is not registered.
func UnauthorizedAccountNotFound() (int, ErrorResponse) {
	return NewError(http.StatusUnauthorized, ErrCredentials, "account not found, please sign up")
}

func UnauthorizedIncorrectPassword() (int, ErrorResponse) {
	return NewError(http.StatusUnauthorized, ErrCredentials, "incorrect password")
}

// UnauthorizedSignInRequired covers every way a session can fail to resume.
func UnauthorizedSignInRequired() (int, ErrorResponse) {
	return NewError(http.StatusUnauthorized, ErrAuthRequired, "please sign in")
}

func ForbiddenAccessDenied() (int, ErrorResponse) {
	return NewError(http.StatusForbidden, ErrAccessDenied, "insufficient permissions for this operation")
}

// ResourceConflict returns a 409 error, such as a taken username.
func ResourceConflict(details string) (int, ErrorResponse) {
	return NewError(http.StatusConflict, ErrConflict, details)
}

// ReturnError calls errorFunc and writes its result with RespondJSONAndLog.
func ReturnError(w http.ResponseWriter, logger *slog.Logger, errorFunc func() (int, ErrorResponse)) {
	status, errResp := errorFunc()
	RespondJSONAndLog(w, logger, status, errResp)
}
