package errorx

import (
	"context"
	"errors"
	"time"
)

// Policy bounds how often an operation is retried.
type Policy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultPolicy is used when a zero Policy is supplied.
var DefaultPolicy = Policy{Attempts: 3, Backoff: 500 * time.Millisecond}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultPolicy.Attempts
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// Retryable reports whether another attempt could change the outcome.
// User-facing, permission, cache-miss and permanent failures are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if IsUserError(err) {
		return false
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrCacheMiss) || errors.Is(err, ErrResolutionEmpty) || errors.Is(err, ErrPermanent) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is exhausted. The wait before attempt n+1 is Backoff*n.
func Retry(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	return retry(ctx, p, fn, Retryable)
}

// RetryTransient is Retry that only repeats errors marked with Transient.
// It suits single platform calls, where an unclassified failure is more
// likely a bad request than a flaky network.
func RetryTransient(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	return retry(ctx, p, fn, func(err error) bool {
		return IsTransient(err) && Retryable(err)
	})
}

func retry(ctx context.Context, p Policy, fn func(ctx context.Context) error, again func(error) bool) error {
	p = p.normalized()

	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !again(err) || attempt == p.Attempts {
			return err
		}

		wait := p.Backoff * time.Duration(attempt)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
