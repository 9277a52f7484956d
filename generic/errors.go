/*
errors.go - Centralized error kinds for the benefit engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify errors with errors.Is against the sentinels, or
  errors.As against the structured types to read their details.

ERROR KINDS:
  1. ValidationError    - Malformed input (amount, reason, origin, duplicate receipt)
  2. PolicyError        - Business rule refusal (window, ceiling, transition)
  3. AuthorizationError - Actor lacks the role required for an action
  4. NotFoundError      - Referenced claim/period/employee/type does not exist
  5. ConflictError      - Optimistic check failed; safe to retry

USAGE:
  if errors.Is(err, generic.ErrPolicy) {
      var pe *generic.PolicyError
      errors.As(err, &pe)
      // pe.Code, pe.Message, pe.Detail
  }

SEE ALSO:
  - benefit/service.go: Produces these errors
  - api/errors.go: Maps them to HTTP status codes
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
	// ErrValidation is the root of every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrPolicy is the root of every PolicyError.
	ErrPolicy = errors.New("policy violation")

	// ErrUnauthorized is the root of every AuthorizationError.
	ErrUnauthorized = errors.New("not authorized")

	// ErrNotFound is the root of every NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidWindow is returned when a window is malformed (end before start).
	ErrInvalidWindow = errors.New("invalid window: end before start")

	// ErrLockNotAcquired is returned when a keyed lock could not be taken in time.
	ErrLockNotAcquired = errors.New("lock not acquired")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports input that can never succeed as given.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PolicyError reports a well-formed request refused by a business rule.
// Detail carries the decision that produced the refusal (for example the
// allocation breakdown) so callers can still display it.
type PolicyError struct {
	Code    string
	Message string
	Detail  any
}

func (e *PolicyError) Error() string { return e.Message }

func (e *PolicyError) Unwrap() error { return ErrPolicy }

// AuthorizationError reports an actor missing a required role.
type AuthorizationError struct {
	ActorID string
	Action  string
	Role    string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %q may not %s: role %q required", e.ActorID, e.Action, e.Role)
}

func (e *AuthorizationError) Unwrap() error { return ErrUnauthorized }

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports that the data read for a decision changed before
// the write. Retrying re-reads and re-decides.
type ConflictError struct {
	Resource string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s changed concurrently, retry", e.Resource)
}

func (e *ConflictError) Unwrap() error { return ErrConcurrentModification }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrLockNotAcquired)
}

// IsClientError returns true if the error is due to the caller's input or
// a business rule, as opposed to an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPolicy) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidWindow)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
