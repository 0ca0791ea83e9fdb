package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrStorage          = errors.New("storage failure")
	ErrTimeout          = errors.New("operation timed out")
)

// AppError pairs a sentinel with the HTTP status it maps to. Cause, when set,
// is the underlying error and stays reachable through errors.Is and errors.As.
type AppError struct {
	Err        error
	Cause      error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Malformed wraps a JSON decoding failure as a 400 AppError.
func Malformed(cause error) *AppError {
	return wrap(ErrMalformedPayload, http.StatusBadRequest, cause)
}

// Storage wraps a filesystem or sequence failure as a 500 AppError.
func Storage(cause error) *AppError {
	return wrap(ErrStorage, http.StatusInternalServerError, cause)
}

func wrap(sentinel error, statusCode int, cause error) *AppError {
	return &AppError{
		Err:        sentinel,
		Cause:      cause,
		Message:    cause.Error(),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrMalformedPayload):
		return http.StatusBadRequest
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
