package backoff

import (
	"context"
	"fmt"
	"time"
)

// Default policy values. These were chosen empirically against Gmail's
// per-user rate budget and are tunable per operation.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
)

// TokenInvalidator forces a token refresh after an authentication
// failure. Implemented by the token manager.
type TokenInvalidator interface {
	ForceRefresh(ctx context.Context) (string, error)
}

// Policy configures retry behavior for a single operation.
type Policy struct {
	// MaxAttempts is the total number of attempts for retryable errors,
	// including the first. Defaults to DefaultMaxAttempts.
	MaxAttempts int

	// BaseDelay is the delay before the first retry; attempt n waits
	// BaseDelay * 2^n. Defaults to DefaultBaseDelay.
	BaseDelay time.Duration

	// OnRetry, if set, is invoked before each retry with the attempt
	// number just completed (1-based) and the error that caused it.
	OnRetry func(attempt int, err error)

	// Invalidator handles 401 responses by forcing a token refresh. When
	// nil, 401 is fatal.
	Invalidator TokenInvalidator
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	return p
}

// delayFor returns the backoff delay before retrying after the given
// zero-based attempt.
func (p Policy) delayFor(attempt int) time.Duration {
	return p.BaseDelay * (1 << uint(attempt))
}

// Do executes op with the policy's retry behavior. It is the sole path
// for outbound Gmail calls so that every operation shares one retry
// contract.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	p = p.withDefaults()

	var lastErr error
	authRetried := false

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		switch Classify(err) {
		case ClassAuthInvalid:
			if p.Invalidator == nil {
				return zero, err
			}
			if !authRetried {
				// One uncounted retry after a forced refresh. A refresh
				// failure is terminal for the whole session.
				authRetried = true
				if _, refreshErr := p.Invalidator.ForceRefresh(ctx); refreshErr != nil {
					return zero, refreshErr
				}
				attempt--
				continue
			}
			// Token was refreshed and the call still 401s; fall through
			// to generic retryable handling so we do not loop forever.
			fallthrough

		case ClassRateLimited, ClassTransient:
			if attempt == p.MaxAttempts-1 {
				return zero, fmt.Errorf("giving up after %d attempts: %w", p.MaxAttempts, lastErr)
			}
			if p.OnRetry != nil {
				p.OnRetry(attempt+1, err)
			}
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(p.delayFor(attempt)):
			}

		default:
			return zero, err
		}
	}

	return zero, fmt.Errorf("giving up after %d attempts: %w", p.MaxAttempts, lastErr)
}
