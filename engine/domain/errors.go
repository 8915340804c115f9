package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the retrieval engine.
var (
	// ErrChunkNotFound and ErrBookNotFound are expected steady-state
	// conditions during ingestion; callers usually translate them into
	// empty results rather than failures.
	ErrChunkNotFound = errors.New("chunk not found")
	ErrBookNotFound  = errors.New("book not found")

	// ErrDimensionMismatch means an encoder swap or misconfiguration
	// produced vectors of a different width than the existing index.
	// It is fatal for index construction and must never be swallowed.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEncoderUnavailable means the embedding capability cannot be
	// reached. Propagated to the caller as a retryable failure.
	ErrEncoderUnavailable = errors.New("embedding encoder unavailable")

	ErrEmptyQuery    = errors.New("query is empty")
	ErrEmptyContent  = errors.New("content is empty")
	ErrNegativeIndex = errors.New("chunk index is negative")
)

// ValidationError wraps a sentinel with field context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
