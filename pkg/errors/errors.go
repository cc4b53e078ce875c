// Package errors defines the coordination layer's error taxonomy: NotFound
// for absent rows, AlreadyExists for insert-or-ignore collisions,
// ErrConfiguration for undecodable stored schemas or filters, and ErrStore
// for failures surfaced by the durable store. Helpers map errors to HTTP
// status codes for the coordinator API.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrConfiguration = errors.New("configuration error")
	ErrStore         = errors.New("store error")
	ErrIllegalState  = errors.New("illegal state transition")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRateLimited   = errors.New("rate limit exceeded")
)

// AppError wraps a sentinel with a human-readable message identifying the
// offending key (repository name, content id, work id, ...).
type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound returns an ErrNotFound identifying the missing entity.
func NotFound(kind, key string) *AppError {
	return &AppError{Err: ErrNotFound, Message: fmt.Sprintf("%s %q", kind, key)}
}

// Configuration returns an ErrConfiguration identifying the offending row.
func Configuration(format string, args ...any) *AppError {
	return &AppError{Err: ErrConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Store wraps a store-level failure. The cause is preserved in the message so
// callers can log it, but the sentinel stays generic per the propagation
// policy (retries are the caller's decision).
func Store(op string, cause error) *AppError {
	return &AppError{Err: ErrStore, Message: fmt.Sprintf("%s: %v", op, cause)}
}

// IllegalTransition reports a rejected work state transition.
func IllegalTransition(workID, from, to string) *AppError {
	return &AppError{
		Err:     ErrIllegalState,
		Message: fmt.Sprintf("work %q: %s -> %s", workID, from, to),
	}
}

// HTTPStatusCode maps an error to the HTTP status the coordinator API should
// return.
func HTTPStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, ErrIllegalState):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
