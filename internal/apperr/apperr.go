// Package apperr defines the error kinds shared by every layer of the API.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable, client-visible classification of an error.
type Kind string

const (
	KindValidation           Kind = "VALIDATION_ERROR"
	KindInvalidRequest       Kind = "INVALID_REQUEST"
	KindDuplicateEmail       Kind = "DUPLICATE_EMAIL"
	KindAlreadyFriends       Kind = "ALREADY_FRIENDS"
	KindRequestAlreadyExists Kind = "REQUEST_ALREADY_EXISTS"
	KindInvalidState         Kind = "INVALID_STATE"
	KindInvalidCredentials   Kind = "INVALID_CREDENTIALS"
	KindUnauthenticated      Kind = "UNAUTHENTICATED"
	KindOnboardingRequired   Kind = "ONBOARDING_REQUIRED"
	KindForbidden            Kind = "FORBIDDEN"
	KindNotFound             Kind = "NOT_FOUND"
	KindTooManyAttempts      Kind = "TOO_MANY_ATTEMPTS"
	KindChatProvider         Kind = "CHAT_PROVIDER_ERROR"
	KindInternal             Kind = "INTERNAL"
)

// Error is an application error with a stable kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind and message, so sentinel values
// keep matching after they have been wrapped with a cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// New returns an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns a copy of sentinel carrying cause.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Err: cause}
}

// Validation builds a VALIDATION_ERROR with the given message.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// KindOf returns the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps a kind to its response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindInvalidRequest:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindOnboardingRequired, KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicateEmail, KindAlreadyFriends, KindRequestAlreadyExists, KindInvalidState:
		return http.StatusConflict
	case KindTooManyAttempts:
		return http.StatusTooManyRequests
	case KindChatProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to a client. Internal errors
// never leak their cause.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "internal server error"
}
