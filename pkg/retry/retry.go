// Package retry implements the bounded exponential retry used on read paths.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/workeasy-api/pkg/errors"
)

// Policy bounds how reads are retried.
type Policy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Logger          *zap.Logger
}

// DefaultPolicy retries three times starting at one second, never waiting more than 30s per step.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, InitialInterval: time.Second, MaxInterval: 30 * time.Second}
}

// Do runs op until it succeeds, returns a permanent error, or the retry budget is spent.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	attempt := 0
	wrapped := func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if !Retryable(err) {
			return v, backoff.Permanent(err)
		}
		logger.Debug("read attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		return v, err
	}

	return backoff.RetryWithData(wrapped, p.backOff(ctx))
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	if exp.InitialInterval <= 0 {
		exp.InitialInterval = time.Second
	}
	exp.MaxInterval = p.MaxInterval
	if exp.MaxInterval <= 0 || exp.MaxInterval > 30*time.Second {
		exp.MaxInterval = 30 * time.Second
	}
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// Retryable reports whether err is worth another attempt. Authentication, authorization,
// validation and not-found outcomes will not change on retry.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case appErrors.Is(err, appErrors.ErrUnauthorized),
		appErrors.Is(err, appErrors.ErrForbidden),
		appErrors.Is(err, appErrors.ErrNoStore),
		appErrors.Is(err, appErrors.ErrValidation),
		appErrors.Is(err, appErrors.ErrNotFound),
		appErrors.Is(err, appErrors.ErrConflict):
		return false
	}
	return true
}
