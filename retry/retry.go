// Package retry provides bounded retry logic with a fixed inter-attempt delay
// for transient blockchain-read failures. It uses Go generics for type-safe
// retry operations and respects context cancellation.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy holds retry configuration. The zero-value classifiers treat every
// error as retryable.
type Policy struct {
	// Retries is the number of additional attempts after the first.
	Retries int

	// Interval is the fixed delay between attempts.
	Interval time.Duration

	// NonRetryable reports errors that must abort immediately and propagate.
	NonRetryable func(error) bool

	// NonRetryableSilently reports errors that must abort immediately but be
	// swallowed: the call returns the zero value and a nil error.
	NonRetryableSilently func(error) bool
}

// DefaultPolicy provides sensible defaults for blockchain reads.
var DefaultPolicy = Policy{
	Retries:  5,
	Interval: time.Second,
}

// Do executes fn under the policy. The first error classified non-retryable
// is returned as-is; a silently non-retryable error yields the zero value and
// nil. All other errors are retried up to Retries times with a fixed delay.
func Do[T any](ctx context.Context, policy Policy, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= policy.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("context cancelled: %w", err)
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		if policy.NonRetryableSilently != nil && policy.NonRetryableSilently(err) {
			return zero, nil
		}
		if policy.NonRetryable != nil && policy.NonRetryable(err) {
			return zero, err
		}

		lastErr = err

		// Don't sleep after the last attempt.
		if attempt < policy.Retries {
			select {
			case <-time.After(policy.Interval):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}

	return zero, fmt.Errorf("max retries exceeded: %w", lastErr)
}
