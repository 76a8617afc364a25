package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors. The string codes are a stable contract: the kiosk UI
// branches on them verbatim, so they must not be renamed.
var (
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInvalidQuery = New("INVALID_QUERY", http.StatusBadRequest, "search query must have at least 2 characters")
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")

	ErrStudentNotFound      = New("STUDENT_NOT_FOUND", http.StatusNotFound, "student not found or inactive")
	ErrSessionNotFound      = New("SESSION_NOT_FOUND", http.StatusNotFound, "class session not found")
	ErrSessionCancelled     = New("SESSION_CANCELLED", http.StatusConflict, "class session was cancelled")
	ErrAlreadyCheckedIn     = New("ALREADY_CHECKED_IN", http.StatusConflict, "attendance already recorded for this session today")
	ErrNoActiveSubscription = New("NO_ACTIVE_SUBSCRIPTION", http.StatusForbidden, "student has no active subscription")
	ErrOutsideWindow        = New("OUTSIDE_CHECKIN_WINDOW", http.StatusConflict, "check-in is outside the allowed window")

	ErrNoFaceMatch       = New("NO_FACE_MATCH", http.StatusNotFound, "no matching student above the similarity threshold")
	ErrNoEmbedding       = New("NO_EMBEDDING", http.StatusNotFound, "no face embeddings enrolled")
	ErrDimensionMismatch = New("DIMENSION_MISMATCH", http.StatusBadRequest, "descriptor has wrong dimensions")
	ErrRateLimited       = New("RATE_LIMITED", http.StatusTooManyRequests, "too many biometric attempts, try again later")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Is reports whether err carries the same code as target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code == target.Code
	}
	return false
}
