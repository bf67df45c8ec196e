package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code onto an HTTP status.
func (e *AppError) StatusCode() int {
	return e.Code.HTTPStatus()
}

// Kind is the machine-checkable name of the error code.
func (e *AppError) Kind() string {
	return e.Code.String()
}

// Common error codes
const (
	ErrValidation ErrorCode = iota + 1000
	ErrDuplicateEmail
	ErrInvalidCredentials
	ErrUnauthorized
	ErrForbidden
	ErrNotFound
	ErrInvalidTransition
	ErrConflict
	ErrStoreUnavailable
	ErrInternal
)

var codeNames = map[ErrorCode]string{
	ErrValidation:         "ValidationError",
	ErrDuplicateEmail:     "DuplicateEmail",
	ErrInvalidCredentials: "InvalidCredentials",
	ErrUnauthorized:       "Unauthorized",
	ErrForbidden:          "Forbidden",
	ErrNotFound:           "NotFound",
	ErrInvalidTransition:  "InvalidTransition",
	ErrConflict:           "Conflict",
	ErrStoreUnavailable:   "StoreUnavailable",
	ErrInternal:           "Internal",
}

var codeStatuses = map[ErrorCode]int{
	ErrValidation:         http.StatusBadRequest,
	ErrDuplicateEmail:     http.StatusConflict,
	ErrInvalidCredentials: http.StatusUnauthorized,
	ErrUnauthorized:       http.StatusUnauthorized,
	ErrForbidden:          http.StatusForbidden,
	ErrNotFound:           http.StatusNotFound,
	ErrInvalidTransition:  http.StatusConflict,
	ErrConflict:           http.StatusConflict,
	ErrStoreUnavailable:   http.StatusServiceUnavailable,
	ErrInternal:           http.StatusInternalServerError,
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

func (c ErrorCode) HTTPStatus() int {
	if status, ok := codeStatuses[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error constructors
func Validation(message string, err error) *AppError {
	return &AppError{Code: ErrValidation, Message: message, Err: err}
}

func DuplicateEmail(err error) *AppError {
	return &AppError{Code: ErrDuplicateEmail, Message: "email already registered", Err: err}
}

// InvalidCredentials carries no cause so that an unknown email and a wrong
// password are indistinguishable to the caller.
func InvalidCredentials() *AppError {
	return &AppError{Code: ErrInvalidCredentials, Message: "invalid email or password"}
}

func Unauthorized(err error) *AppError {
	return &AppError{Code: ErrUnauthorized, Message: "unauthorized", Err: err}
}

func Forbidden(message string) *AppError {
	if message == "" {
		message = "permission denied"
	}
	return &AppError{Code: ErrForbidden, Message: message}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{Code: ErrNotFound, Message: fmt.Sprintf("%s not found", resource), Err: err}
}

func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("cannot change status from %s to %s", from, to),
	}
}

func Conflict(message string, err error) *AppError {
	return &AppError{Code: ErrConflict, Message: message, Err: err}
}

func StoreUnavailable(err error) *AppError {
	return &AppError{Code: ErrStoreUnavailable, Message: "store temporarily unavailable", Err: err}
}

func Internal(err error) *AppError {
	return &AppError{Code: ErrInternal, Message: "internal server error", Err: err}
}

// As returns the first *AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first *AppError in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Retryable reports whether the caller may retry with backoff. Only transient
// store failures qualify.
func Retryable(err error) bool {
	return Is(err, ErrStoreUnavailable)
}
