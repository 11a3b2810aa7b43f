package core

import (
	"fmt"

	"github.com/go-faster/errors"
)

var ErrEntityNotFound = errors.New("entity not found")

// ValidationError reports a malformed action, request or parameter detected before anything is sent to the network.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError is returned when a contract reports that the requested entity is absent.
// It matches ErrEntityNotFound with errors.Is.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrEntityNotFound
}

// SignerError wraps a failure of the signing capability: a user rejection or a failed submission.
// The message of the underlying error is kept verbatim.
type SignerError struct {
	Err error
}

func (e *SignerError) Error() string {
	return e.Err.Error()
}

func (e *SignerError) Unwrap() error {
	return e.Err
}
