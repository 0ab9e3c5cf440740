/*
errors.go - Centralized error types for the settlement engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The api package maps these onto HTTP statuses; nothing else in the
  repository defines its own failure taxonomy.

ERROR CATEGORIES:
  1. Validation errors - bad sale input, nothing committed
  2. Not-found errors  - unknown customer, nothing committed
  3. Conflict errors   - concurrent commit detected, safe to retry
  4. Store errors      - persistence failure, outcome possibly unknown

SEE ALSO:
  - calculator.go: Returns ValidationError
  - settlement.go: Classifies store failures, drives conflict retries
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
	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("invalid sale input")

	// ErrCustomerNotFound is returned when a referenced customer doesn't exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrConcurrentUpdate is returned when the optimistic balance guard
	// detects that another commit advanced the customer first.
	ErrConcurrentUpdate = errors.New("concurrent customer update detected")

	// ErrDuplicateIdempotencyKey is returned when a transaction with the
	// same idempotency key already exists. Expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrStoreFailure is returned on persistence failures. The commit
	// outcome may be unknown; callers must not blindly retry without
	// reusing the same idempotency key.
	ErrStoreFailure = errors.New("store failure")

	// ErrCustomerHasTransactions is returned when deleting a customer that
	// still has ledger history. History is never orphaned.
	ErrCustomerHasTransactions = errors.New("customer has transactions")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a field-level problem with a sale input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// StoreError wraps an underlying persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return ErrStoreFailure
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if a fresh read and re-commit might succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentUpdate)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrCustomerHasTransactions)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}
