package util

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying; RetryWithBackoff returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryWithBackoff calls fn up to maxRetries+1 times, sleeping base, 2*base, 4*base...
// between attempts. fn receives the current attempt number (0-indexed).
// Errors wrapped with Permanent stop the loop and are returned unwrapped.
func RetryWithBackoff(ctx context.Context, maxRetries int, base time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}

		if attempt == maxRetries {
			break
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		backoff := time.Duration(1<<attempt) * base
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
