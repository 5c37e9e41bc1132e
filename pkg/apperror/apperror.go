// Package apperror classifies failures the way the views react to them:
// store failures and identity lookups become generic notifications, a
// missing row becomes a redirect, validation blocks the submission.
package apperror

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindStore Kind = iota
	KindNotFound
	KindValidation
	KindIdentityLookup
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindIdentityLookup:
		return "identity_lookup"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "store"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Store(message string, err error) error {
	return &Error{Kind: KindStore, Message: message, Err: err}
}

func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func IdentityLookup(message string, err error) error {
	return &Error{Kind: KindIdentityLookup, Message: message, Err: err}
}

func Unauthorized(message string) error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// KindOf returns the kind of err. Unclassified errors count as store failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}

func IsNotFound(err error) bool   { return err != nil && KindOf(err) == KindNotFound }
func IsValidation(err error) bool { return err != nil && KindOf(err) == KindValidation }

// Message returns the user-facing message carried by err, or fallback.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindIdentityLookup:
		return http.StatusUnprocessableEntity
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Write reports err with its status code. Store failures never leak the
// underlying driver error to the caller.
func Write(w http.ResponseWriter, err error, fallback string) {
	status := HTTPStatus(err)
	msg := Message(err, fallback)
	if status == http.StatusInternalServerError {
		msg = fallback
	}
	http.Error(w, msg, status)
}
