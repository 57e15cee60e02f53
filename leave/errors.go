/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is/errors.As; HTTP and other outer layers map
  these onto status codes.

ERROR CATEGORIES:
  1. Not-found errors   - referenced user/request does not exist
  2. Validation errors  - bad input, disabled feature, insufficient balance
  3. Concurrency errors - bulk operation detected a changed pending set
  4. Dependency errors  - store/notifier failures

PROPAGATION POLICY:
  Validation and not-found errors always stop the specific operation and are
  returned verbatim. Concurrency errors abort a bulk batch before any
  mutation is committed. Notifier failures during bulk approval are isolated
  per user and recorded, never propagated.

SEE ALSO:
  - validate.go: produces ValidationError
  - bulk.go: produces ConcurrencyError, records DependencyError per user
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUserNotFound is returned when a referenced user doesn't exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrRequestNotFound is returned when a referenced request doesn't exist.
	ErrRequestNotFound = errors.New("leave request not found")

	// ErrValidation is the base for all request validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrConcurrentModification is returned when the bulk approval guard
	// detects that the pending set changed during processing.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDependency is the base for failures of external collaborators.
	ErrDependency = errors.New("dependency failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes why a proposed request is not legal. The message
// is user-facing and must name the disabled feature or the exact remaining
// balance figure where relevant.
type ValidationError struct {
	Code    string // e.g. "feature_disabled", "insufficient_balance", "bad_date_order"
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConcurrencyError signals that the pending set changed between snapshot and
// commit. The operation made no mutation and is safe to retry.
type ConcurrencyError struct {
	Expected int
	Actual   int
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("state changed during processing, retry: expected %d pending, found %d",
		e.Expected, e.Actual)
}

func (e *ConcurrencyError) Unwrap() error { return ErrConcurrentModification }

// DependencyError wraps a failed call to an external collaborator.
type DependencyError struct {
	Dependency string // "store", "notifier"
	Op         string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Dependency, e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error { return ErrDependency }

// NotFoundError carries the identifier that failed to resolve.
type NotFoundError struct {
	Kind string // "user", "request"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Kind == "request" {
		return ErrRequestNotFound
	}
	return ErrUserNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing user or request.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrRequestNotFound)
}
