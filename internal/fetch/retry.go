package fetch

import (
	"context"
	"fmt"
	"math"
	"time"
)

// retryPolicy retries transient upstream failures with exponential
// backoff. attempts counts retries, not calls.
type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		attempts:  3,
		baseDelay: 1 * time.Second,
		maxDelay:  30 * time.Second,
	}
}

// do runs fn until it succeeds or attempts are exhausted, waiting
// baseDelay*2^(n-1) between tries and honoring ctx while waiting.
func (p retryPolicy) do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= p.attempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(p.baseDelay) * math.Pow(2, float64(attempt-1)))
			if delay > p.maxDelay {
				delay = p.maxDelay
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := fn(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
