package reconcile

import (
	"context"
	"time"
)

// RetryPolicy is the bounded client-side retry for backend writes:
// a fixed number of attempts with linearly increasing backoff.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 500 * time.Millisecond}
}

// Do runs fn until it succeeds, the attempts are exhausted, or the
// context is cancelled. Between attempt n and n+1 it sleeps n*Backoff.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * p.Backoff):
		}
	}
	return lastErr
}
