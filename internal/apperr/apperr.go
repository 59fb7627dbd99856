// Package apperr provides the typed error taxonomy used across the control
// plane. Service and repository code returns *Error (or wraps one with Wrap)
// instead of raw strings, so a single HTTP middleware can map every failure
// to the wire error envelope.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a taxonomy entry. String-valued so it round-trips through
// the JSON envelope without a lookup table.
type Code string

const (
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeEnvVarNotFound     Code = "ENV_VAR_NOT_FOUND"
	CodeExternalService    Code = "EXTERNAL_SERVICE_ERROR"
	CodeDatabaseError      Code = "DATABASE_ERROR"
	CodeInternalError      Code = "INTERNAL_ERROR"
)

var httpStatus = map[Code]int{
	CodeBadRequest:      http.StatusBadRequest,
	CodeUnauthorized:    http.StatusUnauthorized,
	CodeForbidden:       http.StatusForbidden,
	CodeNotFound:        http.StatusNotFound,
	CodeConflict:        http.StatusConflict,
	CodeEnvVarNotFound:  http.StatusBadRequest,
	CodeExternalService: http.StatusBadGateway,
	CodeDatabaseError:   http.StatusInternalServerError,
	CodeInternalError:   http.StatusInternalServerError,
}

// Error is the application-level error type. It implements error and
// supports errors.Is/errors.As via Unwrap.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped error for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the HTTP status code associated with the error's code.
func (e *Error) HTTPStatus() int {
	if s, ok := httpStatus[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func newErr(code Code, msg string) *Error { return &Error{Code: code, Message: msg} }

func BadRequest(msg string) *Error     { return newErr(CodeBadRequest, msg) }
func Unauthorized(msg string) *Error   { return newErr(CodeUnauthorized, msg) }
func Forbidden(msg string) *Error      { return newErr(CodeForbidden, msg) }
func Conflict(msg string) *Error       { return newErr(CodeConflict, msg) }
func Internal(msg string) *Error       { return newErr(CodeInternalError, msg) }

// NotFound builds a NOT_FOUND error for a named resource/id pair.
func NotFound(resource, id string) *Error {
	return newErr(CodeNotFound, fmt.Sprintf("%s %q not found", resource, id))
}

// EnvVarNotFound builds an ENV_VAR_NOT_FOUND error for substitution failures.
func EnvVarNotFound(name string) *Error {
	return newErr(CodeEnvVarNotFound, fmt.Sprintf("environment variable %q not found", name))
}

// ExternalService wraps a failure from an external collaborator (object
// store, executor manager, git) with context about which one.
func ExternalService(service string, err error) *Error {
	return &Error{Code: CodeExternalService, Message: fmt.Sprintf("%s unavailable", service), Err: err}
}

// Database wraps a low-level storage failure.
func Database(op string, err error) *Error {
	return &Error{Code: CodeDatabaseError, Message: fmt.Sprintf("database error during %s", op), Err: err}
}

// Wrap attaches msg as context to err, preserving its Code/HTTPStatus if it
// is already an *Error, otherwise classifying it as INTERNAL_ERROR.
func Wrap(err error, msg string) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return &Error{Code: ae.Code, Message: fmt.Sprintf("%s: %s", msg, ae.Message), Err: err}
	}
	return &Error{Code: CodeInternalError, Message: msg, Err: err}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// HTTPStatusOf returns the status code for err, defaulting to 500 for
// errors outside the taxonomy.
func HTTPStatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.HTTPStatus()
	}
	return http.StatusInternalServerError
}
