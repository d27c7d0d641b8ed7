package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Flow errors surfaced to users
	ErrAuthorizationFailed = fmt.Errorf("authorization failed")
	ErrUpstreamUnavailable = fmt.Errorf("upstream unavailable")
	ErrAccessDenied        = fmt.Errorf("access denied")
	ErrValidationFailed    = fmt.Errorf("validation failed")
	ErrPageNotFound        = fmt.Errorf("page not found")

	// Catalog API failures
	ErrUnauthorized = fmt.Errorf("catalog: unauthorized")
	ErrForbidden    = fmt.Errorf("catalog: forbidden")
	ErrNotFound     = fmt.Errorf("catalog: not found")
	ErrUpstream     = fmt.Errorf("catalog: upstream error")
)

// UserError pairs an error kind from this package with a message that is safe to show to users.
type UserError struct {
	Kind    error
	Message string
}

// NewUserError returns a [UserError] of the given kind.
func NewUserError(kind error, msg string) *UserError {
	return &UserError{Kind: kind, Message: msg}
}

func (e *UserError) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

func (e *UserError) Unwrap() error {
	return e.Kind
}

// UserMessage extracts the user-facing message from err, or returns fallback.
func UserMessage(err error, fallback string) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return fallback
}
