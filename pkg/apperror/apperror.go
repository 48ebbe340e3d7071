// Package apperror defines the error kinds the API surface reports to callers.
package apperror

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindUnauthenticated    Kind = "unauthenticated"
	KindInvalidInput       Kind = "invalid_input"
	KindConflict           Kind = "conflict"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindNotFound           Kind = "not_found"
	KindUnhandled          Kind = "unhandled"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, message)
}

func InvalidInput(message string) *Error {
	return New(KindInvalidInput, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func InvalidCredentials(message string) *Error {
	return New(KindInvalidCredentials, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Unhandled(message string, err error) *Error {
	return Wrap(KindUnhandled, message, err)
}

// KindOf reports the kind of err, or KindUnhandled for errors that were never
// classified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnhandled
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindInvalidInput, KindConflict, KindInvalidCredentials:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
