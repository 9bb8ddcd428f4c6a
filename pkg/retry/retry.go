// Package retry runs collaborator calls under a bounded exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/mcpchecker/wfeval/pkg/failure"
)

// Policy bounds how an item-level call is retried.
type Policy struct {
	MaxRetries    int
	Delay         time.Duration
	BackoffFactor float64
	RetryUnknown  bool
}

// Outcome describes a finished retried call.
type Outcome struct {
	Attempts int
}

// Do calls fn until it succeeds, returns an error the policy does not retry, or
// MaxRetries retries are spent. The delay before retry n is Delay*BackoffFactor^(n-1).
// The last error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, logger *zap.Logger, op string, fn func(context.Context) (T, error)) (T, Outcome, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	out := Outcome{}
	operation := func() (T, error) {
		out.Attempts++
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !failure.IsRetryable(err, p.RetryUnknown) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	v, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(max(p.MaxRetries, 0)+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Debug("retrying call",
				zap.String("operation", op),
				zap.Int("attempt", out.Attempts),
				zap.Duration("backoff", next),
				zap.Error(err))
		}),
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}

	return v, out, err
}

func (p Policy) backOff() backoff.BackOff {
	if p.Delay <= 0 {
		return &backoff.ZeroBackOff{}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Delay
	b.Multiplier = p.BackoffFactor
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	b.RandomizationFactor = 0
	b.MaxInterval = time.Hour
	return b
}
