// Package errors defines the catalog's error taxonomy and its mapping onto
// HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Every AppError wraps exactly one of them, so callers can
// branch with errors.Is regardless of how deep the error was wrapped.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrConflict      = errors.New("conflict")
	ErrInternal      = errors.New("internal error")
)

// AppError is an error with a stable machine-readable code and the HTTP
// status it maps to.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

type kind struct {
	sentinel error
	code     string
	status   int
	message  string
}

// kinds is checked in order by Classify.
var kinds = []kind{
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound, "resource not found"},
	{ErrAlreadyExists, "ALREADY_EXISTS", http.StatusConflict, "resource already exists"},
	{ErrConflict, "CONFLICT", http.StatusConflict, "resource was modified concurrently"},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest, ""},
}

func newError(k kind, message string) *AppError {
	return &AppError{Code: k.code, Message: message, Status: k.status, Err: k.sentinel}
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return newError(kinds[0], fmt.Sprintf("%s with id %s not found", resource, id))
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return newError(kinds[1], fmt.Sprintf("%s with %s %q already exists", resource, field, value))
}

// Conflict creates a 409 error for writes that lost a concurrent race.
func Conflict(message string) *AppError {
	return newError(kinds[2], message)
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return newError(kinds[3], message)
}

// Internal creates a 500 error. The cause stays reachable via errors.Is/As
// but never reaches the client.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     fmt.Errorf("%w: %w", ErrInternal, err),
	}
}

// Classify returns the AppError describing err. An AppError anywhere in the
// chain wins; otherwise bare sentinels map to their kind, and anything else
// is Internal.
func Classify(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, k := range kinds {
		if !errors.Is(err, k.sentinel) {
			continue
		}
		msg := k.message
		if msg == "" {
			msg = err.Error()
		}
		return &AppError{Code: k.code, Message: msg, Status: k.status, Err: err}
	}
	return Internal(err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	return Classify(err).Status
}
