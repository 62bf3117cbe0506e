/*
errors.go - Centralized error types for the tax engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The taxation package returns these; the api package maps them to HTTP.

ERROR CATEGORIES:
  1. Validation errors - Malformed input (bad date range, negative amount)
  2. Permission errors - Actor lacks the role for an operation
  3. Not-found errors - Referenced vehicle/exemption/payment does not exist
  4. Conflict errors - Illegal state transition or duplicate record
  5. Concurrency errors - Optimistic lock lost; safe to retry

  Arithmetic edge cases are NOT errors. Negative day counts are clamped and
  negative balances are classified, never raised.

USAGE:
  if errors.Is(err, generic.ErrPermissionDenied) {
      // 403
  }

  var nf *generic.NotFoundError
  if errors.As(err, &nf) {
      log.Printf("missing %s %s", nf.Kind, nf.ID)
  }

SEE ALSO:
  - taxation/request.go: Workflow returns these
  - api/handlers.go: statusFor maps them to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the parent of every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidPeriod is returned when a period ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrPermissionDenied is the parent of every PermissionError.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is the parent of every NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned for illegal state transitions and duplicates.
	ErrConflict = errors.New("conflict")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected input. Nothing is persisted.
type ValidationError struct {
	Field   string
	Message string
	Err     error // optional, more specific sentinel
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

// PermissionError is returned when an actor's role does not allow an action.
type PermissionError struct {
	Actor  Actor
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s may not %s", e.Actor.Role, e.Action)
}

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "vehicle", "exemption", "payment"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError is returned when a record is not in a state that allows the
// requested transition.
type ConflictError struct {
	Kind    string
	ID      string
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Kind, e.ID, e.Message)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
