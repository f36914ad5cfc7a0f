/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these onto HTTP statuses; callers classify with
  errors.Is/As and the helpers at the bottom.

ERROR CATEGORIES:
  1. Validation errors - malformed entries, never retried
  2. Not-found errors - unknown vendor/customer references, never retried
  3. Store errors - transient persistence failures, retryable
  4. Materialization errors - isolated per recurrence template

SEE ALSO:
  - entry.go: Produces ValidationError
  - store.go: Store implementations wrap ErrStoreUnavailable
  - api/generator.go: Wraps MaterializationError
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when an entry violates a model invariant.
	// Deterministic; retrying cannot change the outcome.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced vendor or customer does not
	// resolve at write time, or a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable is returned for transient persistence failures.
	// Writes may be retried with backoff; reads fail fast.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrDuplicateOccurrence is returned when a materialized clone for a
	// (template, occurrence date) pair already exists. This is expected
	// behavior for generator re-runs and retries.
	ErrDuplicateOccurrence = errors.New("occurrence already materialized")

	// ErrMaterialization is returned when one recurrence occurrence cannot
	// be materialized. Isolated to its template; retried on the next run.
	ErrMaterialization = errors.New("materialization failed")

	// ErrInvalidPeriod is returned when a summary period is malformed.
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidCursor is returned for an unparseable pagination cursor.
	ErrInvalidCursor = errors.New("invalid pagination cursor")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the specific field at fault.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError identifies the missing reference.
type NotFoundError struct {
	Kind string // "vendor", "customer", "entry"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// MaterializationError records which template occurrence failed so the
// generator can log it and move on to the next template.
type MaterializationError struct {
	TemplateID EntryID
	Occurrence Date
	Err        error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("materialization failed for template %s occurrence %s: %v",
		e.TemplateID, e.Occurrence, e.Err)
}

func (e *MaterializationError) Unwrap() error { return ErrMaterialization }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidCursor)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
