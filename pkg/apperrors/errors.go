// Package apperrors provides the typed error taxonomy shared by the gateway,
// the review client and the batch tools.
//
// Every error carries a machine-readable code and the HTTP status it maps to
// at the gateway boundary. Sentinels are matched with errors.Is by code, so a
// wrapped *AppError with extra context still matches its sentinel.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeUpstreamNotFound  = "UPSTREAM_NOT_FOUND"
	CodeUpstream          = "UPSTREAM_ERROR"
	CodeCorruptLocalState = "CORRUPT_LOCAL_STATE"
	CodeDataInvariant     = "DATA_INVARIANT_VIOLATION"
)

// Sentinels for errors.Is.
var (
	ErrValidation        = New(CodeValidation, "validation error", http.StatusBadRequest)
	ErrUpstreamNotFound  = New(CodeUpstreamNotFound, "upstream not found", http.StatusNotFound)
	ErrUpstream          = New(CodeUpstream, "upstream error", http.StatusInternalServerError)
	ErrCorruptLocalState = New(CodeCorruptLocalState, "corrupt local state", http.StatusInternalServerError)
	ErrDataInvariant     = New(CodeDataInvariant, "data invariant violation", http.StatusInternalServerError)
)

// AppError is a structured application error with HTTP status and error code.
type AppError struct {
	// Code is a machine-readable error code (e.g., "UPSTREAM_NOT_FOUND").
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// HTTPStatus is the corresponding HTTP status code.
	HTTPStatus int `json:"-"`

	// UpstreamStatus is the status the upstream wiki answered with, if any.
	UpstreamStatus int `json:"upstream_status,omitempty"`

	// Err is the wrapped underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AppError.
func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error into an AppError.
func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Validation creates a 400 error for missing or malformed input.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// UpstreamNotFound creates a 404 error for a document the upstream wiki does not have.
func UpstreamNotFound(url string) *AppError {
	return &AppError{
		Code:           CodeUpstreamNotFound,
		Message:        fmt.Sprintf("upstream 404 for %s", url),
		HTTPStatus:     http.StatusNotFound,
		UpstreamStatus: http.StatusNotFound,
	}
}

// Upstream creates a 500 error for a non-success upstream status or a
// network failure (status 0).
func Upstream(url string, status int, err error) *AppError {
	msg := fmt.Sprintf("upstream %d for %s", status, url)
	if status == 0 {
		msg = fmt.Sprintf("upstream request to %s failed", url)
	}
	return &AppError{
		Code:           CodeUpstream,
		Message:        msg,
		HTTPStatus:     http.StatusInternalServerError,
		UpstreamStatus: status,
		Err:            err,
	}
}

// DataInvariant creates an error describing stored data that breaks an invariant.
func DataInvariant(format string, args ...any) *AppError {
	return New(CodeDataInvariant, fmt.Sprintf(format, args...), http.StatusInternalServerError)
}

// CorruptLocalState wraps a decode failure of device-local state.
func CorruptLocalState(key string, err error) *AppError {
	return Wrap(err, CodeCorruptLocalState, fmt.Sprintf("corrupt local state %q", key), http.StatusInternalServerError)
}

// IsAppError checks if an error is an AppError and returns it.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus returns the status an error maps to, 500 for untyped errors.
func HTTPStatus(err error) int {
	if appErr, ok := IsAppError(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
