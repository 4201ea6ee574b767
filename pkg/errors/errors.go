package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrUpdateConflict
	ErrCancelConflict
	ErrConfiguration
	ErrBadRequest
	ErrInternal
)

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

// StatusCode maps the error code to an HTTP status for the API surface.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrUpdateConflict, ErrCancelConflict:
		return http.StatusConflict
	case ErrBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NotFound signals that the requested notification does not exist or has
// been cancelled; cancelled rows are invisible to plain lookups.
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

// UpdateConflict signals that a conditional update matched zero rows: the
// stored status had already advanced past the expected source state.
func UpdateConflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrUpdateConflict,
		Message: message,
		Err:     err,
	}
}

// CancelConflict signals a cancel attempt on a non-pending notification.
func CancelConflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCancelConflict,
		Message: message,
		Err:     err,
	}
}

// Configuration signals an invalid or missing store configuration at startup.
func Configuration(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConfiguration,
		Message: message,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal error",
		Err:     err,
	}
}

func codeOf(err error) (ErrorCode, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, true
	}
	return 0, false
}

func IsNotFound(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrNotFound
}

func IsUpdateConflict(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrUpdateConflict
}

func IsCancelConflict(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCancelConflict
}

func IsConfiguration(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrConfiguration
}

func IsBadRequest(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrBadRequest
}
