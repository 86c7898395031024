// Package retry implements the bounded-backoff policy shared by the fetch
// and publish paths.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy describes a bounded exponential backoff schedule.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy returns the policy used against the survey API.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// Transient marks an error as retryable. Do retries only errors wrapped with
// Retryable.
type Transient struct {
	Err error
}

func (t *Transient) Error() string {
	return t.Err.Error()
}

func (t *Transient) Unwrap() error {
	return t.Err
}

// Retryable wraps an error so that Do will retry it.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &Transient{Err: err}
}

// Do runs fn up to MaxAttempts times, sleeping with exponential backoff
// between attempts. Permanent errors and context cancellation end the loop
// immediately. The returned error is the last attempt's cause, unwrapped.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var transient *Transient
		if !errors.As(err, &transient) {
			return err
		}
		lastErr = transient.Err

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return lastErr
}
