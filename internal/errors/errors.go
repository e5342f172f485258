// Package errors provides domain-specific error types and sentinel errors
// for improved error handling across the application.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates user provided invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoSnapshot indicates no knowledge snapshot has been loaded yet.
	ErrNoSnapshot = errors.New("no knowledge snapshot available")

	// ErrRateLimitExceeded indicates rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// SourceError represents knowledge source load failures with context.
type SourceError struct {
	Source   string
	Category string
	Err      error
}

func (e *SourceError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("knowledge source error (source=%s, category=%s): %v", e.Source, e.Category, e.Err)
	}
	return fmt.Sprintf("knowledge source error (source=%s): %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError creates a new knowledge source error.
func NewSourceError(source, category string, err error) *SourceError {
	return &SourceError{
		Source:   source,
		Category: category,
		Err:      err,
	}
}
