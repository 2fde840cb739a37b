package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error for propagation and HTTP mapping.
type Kind string

const (
	// KindValidation marks malformed input; never retried.
	KindValidation Kind = "validation"
	// KindNotFound marks a missing source, event, run, or job.
	KindNotFound Kind = "not_found"
	// KindConflict marks admission rejection or a unique-constraint race.
	KindConflict Kind = "conflict"
	// KindExternal marks a collaborator failure; retryable at item granularity.
	KindExternal Kind = "external_service"
	// KindPersistence marks store unavailability; fatal to the current operation.
	KindPersistence Kind = "persistence"
)

// Error is a kind-tagged application error with an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with the given kind and formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error with the given kind wrapping a cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Validation creates a validation error.
func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

// NotFound creates a not-found error.
func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

// Conflict creates a conflict error.
func Conflict(format string, args ...interface{}) *Error {
	return New(KindConflict, format, args...)
}

// External creates an external-service error wrapping a cause.
func External(err error, format string, args ...interface{}) *Error {
	return Wrap(KindExternal, err, format, args...)
}

// Persistence creates a persistence error wrapping a cause.
func Persistence(err error, format string, args ...interface{}) *Error {
	return Wrap(KindPersistence, err, format, args...)
}

// KindOf extracts the kind from an error chain.
// Unclassified errors report KindPersistence so callers fail safe.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindPersistence
}

// Is reports whether the error chain contains an Error of the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// HTTPStatus maps an error chain to an HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
