// Package service holds the business rules: the ride lifecycle engine,
// registration and login, and vehicle management. Every failure returned to
// callers is an *Error whose Kind is one of the sentinels below.
package service

import "errors"

// Error kinds. Match them with errors.Is.
var (
	ErrInvalid            = errors.New("invalid")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrFailedPrecondition = errors.New("failed precondition")
	ErrLocked             = errors.New("locked")
	ErrInternal           = errors.New("internal error")
)

// Error carries a kind and a message safe to show to the caller.
type Error struct {
	Kind    error
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the kind so errors.Is(err, ErrConflict) works.
func (e *Error) Unwrap() error { return e.Kind }

// Cause returns the underlying store error of an internal failure, if any.
func (e *Error) Cause() error { return e.cause }

func newErr(kind error, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func internal(msg string, cause error) *Error {
	return &Error{Kind: ErrInternal, Message: msg, cause: cause}
}

// KindOf returns the kind of err, or ErrInternal for foreign errors.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		return e.Kind
	}
	return ErrInternal
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != ErrInternal {
		return e.Message
	}
	return "internal server error"
}
