// Package errs defines the two error kinds the correlation store surfaces:
// validation failures on caller-supplied values, and repository failures
// from the backing store.
package errs

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups that treat a missing row as an error.
// Most read paths convert not-found into an empty result instead.
var ErrNotFound = errors.New("not found")

// ErrInUse is returned when a delete would strand rows that reference the
// target, such as removing an organization that still owns reference sets.
var ErrInUse = errors.New("in use")

// ErrNoBackingStorage is returned when reference-set values are written or
// queried for a correlation type without a reference table.
var ErrNoBackingStorage = errors.New("correlation type has no reference storage")

// ValidationReason categorizes why a value failed validation.
type ValidationReason string

const (
	ReasonEmpty       ValidationReason = "empty"
	ReasonMalformed   ValidationReason = "malformed"
	ReasonUnknownType ValidationReason = "unknown type"
)

// ValidationError reports a malformed or missing caller-supplied value.
// It is always recoverable by correcting the input.
type ValidationError struct {
	TypeName string
	Value    string
	Reason   ValidationReason
	Detail   string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("invalid %s value %q: %s: %s", e.TypeName, e.Value, e.Reason, e.Detail)
	}
	return fmt.Sprintf("invalid %s value %q: %s", e.TypeName, e.Value, e.Reason)
}

// NewValidationError builds a ValidationError for the given type and value.
func NewValidationError(typeName, value string, reason ValidationReason, detail string) *ValidationError {
	return &ValidationError{TypeName: typeName, Value: value, Reason: reason, Detail: detail}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// RepositoryError reports a storage-level failure: a constraint violation,
// an unknown foreign key, or an underlying database error.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// NewRepositoryError wraps err with the operation that failed.
func NewRepositoryError(op string, err error) *RepositoryError {
	return &RepositoryError{Op: op, Err: err}
}

// IsRepository reports whether err is a RepositoryError.
func IsRepository(err error) bool {
	var re *RepositoryError
	return errors.As(err, &re)
}
