package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   error
		expected bool
	}{
		{
			name:     "ErrNotFound is recognized",
			err:      ErrNotFound,
			target:   ErrNotFound,
			expected: true,
		},
		{
			name:     "Wrapped ErrNotFound is recognized",
			err:      fmt.Errorf("download general.csv: %w", ErrNotFound),
			target:   ErrNotFound,
			expected: true,
		},
		{
			name:     "Different error is not ErrNotFound",
			err:      ErrRateLimitExceeded,
			target:   ErrNotFound,
			expected: false,
		},
		{
			name:     "Wrapped ErrInvalidInput is recognized",
			err:      fmt.Errorf("respond: %w", ErrInvalidInput),
			target:   ErrInvalidInput,
			expected: true,
		},
		{
			name:     "ErrNoSnapshot is recognized",
			err:      ErrNoSnapshot,
			target:   ErrNoSnapshot,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.expected {
				t.Errorf("errors.Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSourceError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewSourceError("bucket", "general", cause)

	if err.Source != "bucket" {
		t.Errorf("Source = %q, want %q", err.Source, "bucket")
	}
	if !errors.Is(err, cause) {
		t.Error("SourceError should unwrap to its cause")
	}

	var srcErr *SourceError
	if !errors.As(fmt.Errorf("refresh: %w", err), &srcErr) {
		t.Error("errors.As should find SourceError through wrapping")
	}
}

func TestSourceErrorMessage(t *testing.T) {
	withCategory := NewSourceError("dir", "by_term", errors.New("missing column"))
	if got := withCategory.Error(); got != "knowledge source error (source=dir, category=by_term): missing column" {
		t.Errorf("Error() = %q", got)
	}

	withoutCategory := NewSourceError("bucket", "", errors.New("timeout"))
	if got := withoutCategory.Error(); got != "knowledge source error (source=bucket): timeout" {
		t.Errorf("Error() = %q", got)
	}
}
