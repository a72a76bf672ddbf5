package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/taskmint/taskmint/internal/config"
)

// retryWithBackoff executes fn with exponential backoff, making at most
// retries+1 attempts. Unlike generic API clients that classify errors, the
// pipeline retries every failure: the retry budget is small, fixed per call
// site, and the alternative to retrying is rejecting a user's input unit.
// Cancellation stops the loop immediately, during a call or a backoff.
func retryWithBackoff(ctx context.Context, cfg *config.Config, operation string, retries int, fn func(context.Context) error) error {
	if retries < 0 {
		retries = 0
	}

	backoff := cfg.RetryBackoff
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Printf("[PIPELINE] %s succeeded after %d retries", operation, attempt)
			}
			return nil
		}
		lastErr = err

		if attempt == retries {
			break
		}

		log.Printf("[PIPELINE] %s failed (attempt %d/%d), retrying in %v: %v",
			operation, attempt+1, retries+1, backoff, err)

		select {
		case <-time.After(backoff):
			backoff *= 2
			if limit := cfg.MaxRetryBackoff; limit > 0 && backoff > limit {
				backoff = limit
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, retries+1, lastErr)
}
