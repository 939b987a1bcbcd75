// Package errors provides standardized domain errors with codes for the
// ChannelFinder API.
//
// Usage:
//
//	// In services - return typed errors
//	if !exists {
//	    return errors.NotFoundf("tag %q does not exist", name)
//	}
//
//	// In handlers - check with errors.Is
//	if errors.Is(err, errors.ErrNotFound) {
//	    response.NotFound(w, err.Error(), logger)
//	    return
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	// CodeValidation covers malformed or missing required fields, references
	// to non-existent tags/properties/channels, and empty property values.
	CodeValidation Code = "VALIDATION"
	// CodeUnauthorized covers failed role or ownership checks.
	CodeUnauthorized Code = "UNAUTHORIZED"
	// CodeForbidden covers rejected credentials at the transport layer.
	CodeForbidden Code = "FORBIDDEN"
	// CodeNotFound covers reads or deletes of absent entities.
	CodeNotFound Code = "NOT_FOUND"
	// CodeBackend covers failed or unexpected document store operations.
	CodeBackend Code = "BACKEND"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional cause.
type Error struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// Sentinel errors for use with errors.Is().
var (
	ErrValidation   = &Error{Code: CodeValidation, Message: "validation error"}
	ErrUnauthorized = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden    = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrNotFound     = &Error{Code: CodeNotFound, Message: "not found"}
	ErrBackend      = &Error{Code: CodeBackend, Message: "backend error"}
)

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with per-field messages.
func ValidationWithDetails(msg string, details map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Unauthorizedf creates an unauthorized error with formatted message.
func Unauthorizedf(format string, args ...any) *Error {
	return &Error{Code: CodeUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Forbidden creates a forbidden error.
func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Backend creates a backend error wrapping the underlying cause.
// The cause is preserved for diagnostics; backend errors are not retried
// by the engine.
func Backend(msg string, cause error) *Error {
	return &Error{Code: CodeBackend, Message: msg, cause: cause}
}

// Backendf creates a backend error with formatted message and cause.
func Backendf(cause error, format string, args ...any) *Error {
	return &Error{Code: CodeBackend, Message: fmt.Sprintf(format, args...), cause: cause}
}
