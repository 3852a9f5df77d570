package services

import (
	"errors"
	"strings"
)

// Error kinds. Classify a service error with errors.Is; anything that
// matches none of them is an internal failure.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrAuth       = errors.New("not authenticated")
	ErrNotFound   = errors.New("not found")
	ErrBadRequest = errors.New("bad request")
)

// Error carries a kind plus the user facing messages for it.
type Error struct {
	Kind     error
	Messages []string
	Err      error
}

func newError(kind error, messages ...string) *Error {
	return &Error{Kind: kind, Messages: messages}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if len(e.Messages) > 0 {
		msg += ": " + strings.Join(e.Messages, "; ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Messages returns the user facing messages attached to err, if any.
func Messages(err error) []string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Messages
	}
	return nil
}

// Message returns the first user facing message attached to err, or fallback.
func Message(err error, fallback string) string {
	if messages := Messages(err); len(messages) > 0 {
		return messages[0]
	}
	return fallback
}
