/*
errors.go - Centralized error types for the ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Services return these (possibly wrapped) so callers can decide how to
  present a failure without parsing messages.

ERROR CATEGORIES:
  1. Validation - bad input shape or range; nothing was written
  2. Not found - a referenced entity does not exist
  3. Duplicate key - identity collision; a sequencing defect if ever seen
  4. Corrupt state - persisted bytes could not be decoded
  5. Append-only - an attempt to edit or remove a ledger record

USAGE:
    var vErr *linen.ValidationError
    if errors.As(err, &vErr) {
        fmt.Println(vErr.Field, vErr.Reason)
    }
    if errors.Is(err, linen.ErrNotFound) { ... }
*/
package linen

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the sentinel behind every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the sentinel behind every NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a record id is already present.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrCorruptState is returned when persisted data cannot be decoded.
	ErrCorruptState = errors.New("corrupt persisted state")

	// ErrAppendOnly is returned when something tries to update or delete a
	// ledger record.
	ErrAppendOnly = errors.New("ledger is append-only")

	// ErrForbidden is returned when the principal's role lacks a capability.
	ErrForbidden = errors.New("operation not permitted for role")

	// ErrNoSession is returned when no user is signed in.
	ErrNoSession = errors.New("no active session")

	// ErrInvalidCredentials is returned by sign-in on a bad e-mail/secret pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the first offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type NotFoundError struct {
	Collection Collection
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Collection, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type DuplicateKeyError struct {
	Collection Collection
	ID         string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Collection, e.ID)
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

// CorruptStateError reports a collection whose persisted form is unreadable.
type CorruptStateError struct {
	Collection Collection
	ID         string // record that failed, empty if unknown
	Err        error
}

func (e *CorruptStateError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("corrupt %s record %q: %v", e.Collection, e.ID, e.Err)
	}
	return fmt.Sprintf("corrupt %s collection: %v", e.Collection, e.Err)
}

// Unwrap exposes both the sentinel and the decoding cause.
func (e *CorruptStateError) Unwrap() []error { return []error{ErrCorruptState, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrAppendOnly)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
