package sink

import (
	"context"
	"math"
	"time"

	simerrors "github.com/arkilian/fraudsim/internal/errors"
)

// retryPolicy runs an operation with exponential backoff. Only errors
// marked retryable are retried, so operations classify their failures.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
}

func (r retryPolicy) do(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if !simerrors.IsRetryable(lastErr) {
			return lastErr
		}

		if attempt < r.maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * r.baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
