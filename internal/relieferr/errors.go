// Package relieferr defines the typed failure kinds the workflow engines
// return. Callers branch on kind with errors.As instead of string matching.
package relieferr

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ValidationError rejects malformed input before any state mutation.
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

func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// StateConflictError means a precondition on current entity state no longer
// holds: the caller should re-fetch and decide whether to retry.
type StateConflictError struct {
	Entity   string
	ID       primitive.ObjectID
	Expected string
	Actual   string
}

func (e *StateConflictError) Error() string {
	if e.Actual == "" {
		return fmt.Sprintf("%s %s: precondition failed, expected %q", e.Entity, e.ID.Hex(), e.Expected)
	}
	return fmt.Sprintf("%s %s: expected %q, found %q", e.Entity, e.ID.Hex(), e.Expected, e.Actual)
}

func NewStateConflict(entity string, id primitive.ObjectID, expected, actual string) *StateConflictError {
	return &StateConflictError{Entity: entity, ID: id, Expected: expected, Actual: actual}
}

// ResourceExhaustionError means the resource could not cover the requested
// allocation. Non-fatal: the request stays matched and may be re-matched.
type ResourceExhaustionError struct {
	ResourceID primitive.ObjectID
	Requested  int64
	Available  int64
}

func (e *ResourceExhaustionError) Error() string {
	return fmt.Sprintf("resource %s: requested %d, available %d", e.ResourceID.Hex(), e.Requested, e.Available)
}

// IntegrityError reports an audit-chain fingerprint mismatch. Fatal to the
// audit subsystem only; workflow operations keep running.
type IntegrityError struct {
	ChainID primitive.ObjectID
	Index   int
	Message string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("audit chain %s: entry %d: %s", e.ChainID.Hex(), e.Index, e.Message)
}

// TransportFailure means one delivery channel failed. Never escalated to the
// originating workflow transition; the channel flag stays false for retry.
type TransportFailure struct {
	Channel string
	Err     error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Channel, e.Err)
}

func (e *TransportFailure) Unwrap() error {
	return e.Err
}
