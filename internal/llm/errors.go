package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned before any network activity when no
	// credential is available.
	ErrNotConfigured = errors.New("llm: no credential configured")

	// ErrCancelled marks a cooperative stop. It is not a failure.
	ErrCancelled = errors.New("cancelled")
)

// IsCancelled reports whether err stems from cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// CheckContext returns ErrCancelled (wrapping the context error) once ctx is done.
func CheckContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}
