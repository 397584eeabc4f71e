// Package apperr defines the error taxonomy shared by every layer of the
// chatbot core. Callers match kinds with errors.Is.
package apperr

import (
	"context"
	"errors"
)

// Kinds.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrProvider      = errors.New("provider error")
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
)

// Specific errors. Each one wraps its kind.
var (
	ErrInvalidChunking     = wrap(ErrConfiguration, "chunk size and overlap must satisfy 0 <= overlap < size")
	ErrDimensionMismatch   = wrap(ErrConfiguration, "embedding dimension mismatch")
	ErrProviderUnavailable = wrap(ErrProvider, "provider unavailable")
	ErrMalformedResponse   = wrap(ErrProvider, "malformed provider response")
	ErrEmptyText           = wrap(ErrValidation, "empty input text")
	ErrZeroMagnitude       = wrap(ErrValidation, "zero magnitude vector")
)

type kindError struct {
	kind error
	msg  string
}

func wrap(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.kind.Error() + ": " + e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// KindOf returns a short name for the kind of err, or "internal" when err
// carries none of the known kinds.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrProvider):
		return "provider"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "internal"
	}
}

// IsTransient reports whether an error is worth retrying. An unavailable
// provider is; a malformed answer or a caller mistake is not.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrProviderUnavailable)
}
