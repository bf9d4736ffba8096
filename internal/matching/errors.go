package matching

import (
	"errors"
	"fmt"
)

// Error kinds. Typed errors below match them through errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInvariantViolation  = errors.New("invariant violation")
	ErrMatchBudgetExceeded = errors.New("match iteration budget exceeded")
	ErrStaleSnapshot       = errors.New("queue changed since snapshot")
)

// ValidationError reports a rejected field on submission
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports an unknown engine, fund or order
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError reports a request that clashes with current state
type ConflictError struct {
	Kind   string
	ID     string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Kind, e.ID, e.Reason)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// InvariantViolation reports an impossible state produced during matching.
// A pass that returns it must not be applied.
type InvariantViolation struct {
	OrderID string
	Detail  string
}

func (e *InvariantViolation) Error() string {
	if e.OrderID == "" {
		return "invariant violation: " + e.Detail
	}
	return fmt.Sprintf("invariant violation on order %s: %s", e.OrderID, e.Detail)
}

func (e *InvariantViolation) Is(target error) bool {
	return target == ErrInvariantViolation
}

// Fixed ConflictError reasons
const (
	ReasonAlreadyExists   = "already exists"
	ReasonBusy            = "matching pass in progress"
	ReasonDuplicateID     = "duplicate order_id"
	ReasonPayloadMismatch = "same key used with a different payload"
)
