// Package common defines shared constants and error values used across the
// server and client layers of StaffKeeper. Callers should use errors.Is and
// errors.As to match them.
package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal         = errors.New("internal error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrForbidden          = errors.New("forbidden")
	ErrMissingToken       = errors.New("missing token")

	// ErrStoreUnavailable is returned when a store call times out or the
	// backend cannot be reached. It is the only retryable class.
	ErrStoreUnavailable = errors.New("store unavailable")

	// Token verification errors. They are never shown to clients verbatim.
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrTokenBadSignature = fmt.Errorf("%w: bad signature", ErrInvalidToken)
	ErrTokenWrongType    = fmt.Errorf("%w: wrong type", ErrInvalidToken)
	ErrTokenRevoked      = fmt.Errorf("%w: revoked", ErrInvalidToken)
)

// TokenErrorCode returns a short machine code for a token verification error,
// suitable for logs. It returns "invalid" for anything it does not recognise.
func TokenErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenBadSignature):
		return "bad_signature"
	case errors.Is(err, ErrTokenWrongType):
		return "wrong_type"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked"
	default:
		return "invalid"
	}
}

// DuplicateFieldError reports a uniqueness collision on a single field,
// e.g. "email" or "username".
type DuplicateFieldError struct {
	Field string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("duplicate %s", e.Field)
}

// ValidationError collects user-correctable problems per input field.
// All violations are reported, not only the first one.
type ValidationError struct {
	Fields map[string][]string

	duplicates []error
}

// NewValidationError returns an empty ValidationError ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

// Add records a message for field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// AddDuplicate records a uniqueness violation for field. The resulting error
// also matches *DuplicateFieldError through errors.As.
func (e *ValidationError) AddDuplicate(field, msg string) {
	e.Add(field, msg)
	e.duplicates = append(e.duplicates, &DuplicateFieldError{Field: field})
}

// Unwrap exposes recorded uniqueness violations.
func (e *ValidationError) Unwrap() []error {
	return e.duplicates
}

// Empty reports whether no violations were recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// OrNil returns e when it holds violations and nil otherwise, so callers can
// return it directly as an error.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], "; "))
	}
	return "validation error: " + strings.Join(parts, ", ")
}
