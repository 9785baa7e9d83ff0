package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies application errors so handlers can map them to HTTP
// status codes without string matching.
type ErrorKind string

const (
	KindBadRequest ErrorKind = "bad_request"
	KindNotFound   ErrorKind = "not_found"
	KindForbidden  ErrorKind = "forbidden"
	KindUpstream   ErrorKind = "upstream_failure"
	KindInternal   ErrorKind = "internal"
)

// AppError carries the error taxonomy used across the checkout and payment
// flows: a kind, an HTTP status, a message safe to show to clients, and the
// underlying cause for logs.
type AppError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func ErrBadRequest(message string) *AppError {
	return &AppError{Kind: KindBadRequest, StatusCode: http.StatusBadRequest, Message: message}
}

func ErrNotFound(message string) *AppError {
	return &AppError{Kind: KindNotFound, StatusCode: http.StatusNotFound, Message: message}
}

func ErrForbidden(message string) *AppError {
	return &AppError{Kind: KindForbidden, StatusCode: http.StatusForbidden, Message: message}
}

func ErrUpstream(message string, cause error) *AppError {
	return &AppError{Kind: KindUpstream, StatusCode: http.StatusBadGateway, Message: message, Err: cause}
}

func ErrInternal(cause error) *AppError {
	return &AppError{Kind: KindInternal, StatusCode: http.StatusInternalServerError, Message: "internal error", Err: cause}
}

// AsAppError unwraps err into an *AppError, falling back to an internal error
// so unexpected failures never leak details to clients.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal(err)
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
