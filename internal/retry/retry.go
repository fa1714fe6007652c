// Package retry wraps a single bounded-backoff policy around all outbound
// collaborator calls so retry behaviour is configured in one place instead
// of ad hoc per call site.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	retrygo "github.com/avast/retry-go/v4"
)

// Policy describes bounded retries with exponential backoff.
type Policy struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultPolicy matches the timeout classes used for collaborator APIs:
// three attempts, 300ms initial delay, doubling up to 5s.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Delay: 300 * time.Millisecond, MaxDelay: 5 * time.Second}
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks an error as non-retryable. Auth rejections and malformed
// responses are data problems, not transient faults, and must surface
// immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Transient reports whether an error should be retried.
func Transient(err error) bool {
	var p *permanentError
	return !errors.As(err, &p)
}

// Do runs fn under the policy. The op name is only used for log context.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	err := retrygo.Do(
		fn,
		retrygo.Context(ctx),
		retrygo.Attempts(p.Attempts),
		retrygo.Delay(p.Delay),
		retrygo.MaxDelay(p.MaxDelay),
		retrygo.DelayType(retrygo.BackOffDelay),
		retrygo.LastErrorOnly(true),
		retrygo.RetryIf(Transient),
		retrygo.OnRetry(func(attempt uint, err error) {
			slog.Warn("retrying outbound call",
				"op", op,
				"attempt", attempt+1,
				"error", err,
			)
		}),
	)

	var p2 *permanentError
	if errors.As(err, &p2) {
		return p2.err
	}
	return err
}
