package domain

import (
	"errors"
	"fmt"
)

// Error types for consistent error handling across the engine.
// NotFound, Conflict and Validation are deterministic business-rule
// violations. Timeout, ExternalService and CircuitOpen are transient.

// ErrNotFound indicates a resource was not found within the organization.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrConflict indicates a state conflict: duplicate active name, invalid
// period, cyclic category parent or deleting a referenced category.
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrExternalService indicates a failure in the store or another collaborator.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// Retryable reports that the failure may clear on a later attempt.
func (e *ErrExternalService) Retryable() bool { return true }

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// Retryable reports that the failure may clear on a later attempt.
func (e *ErrTimeout) Retryable() bool { return true }

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// Retryable reports that the failure may clear on a later attempt.
func (e *ErrCircuitOpen) Retryable() bool { return true }

// IsTransient reports whether err is retryable by the caller.
func IsTransient(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

// IsBusinessError reports whether err is a deterministic rule violation
// that must reach the caller unmodified.
func IsBusinessError(err error) bool {
	var notFound *ErrNotFound
	var conflict *ErrConflict
	var validation *ErrValidation
	return errors.As(err, &notFound) || errors.As(err, &conflict) || errors.As(err, &validation)
}
