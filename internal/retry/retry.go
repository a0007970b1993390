// Package retry provides bounded retries with linear backoff for
// best-effort external calls.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config bounds a retryable operation.
type Config struct {
	MaxAttempts int
	Delay       time.Duration
}

// Do invokes fn up to MaxAttempts times, waiting attempt*Delay between
// tries. It stops early when the context is canceled.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := fn(); err != nil {
			lastErr = err
			if attempt == attempts {
				return fmt.Errorf("failed after %d attempts: %w", attempts, err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * cfg.Delay):
			}
			continue
		}
		return nil
	}
	return lastErr
}
