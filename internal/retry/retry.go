package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// Unlimited retries forever.
	Unlimited = 0

	DefaultDelay = 5 * time.Second

	// DefaultAttemptTimeout bounds a single attempt when Policy.AttemptTimeout is zero.
	DefaultAttemptTimeout = 30 * time.Second
)

// Policy configures a fixed-delay retry loop.
type Policy struct {
	Delay      time.Duration
	MaxRetries uint64
	// AttemptTimeout bounds each attempt. Zero uses DefaultAttemptTimeout, negative disables it.
	AttemptTimeout time.Duration
	Logger         *slog.Logger
	// OnRetry is called before each sleep with the failed attempt number, starting at 1.
	OnRetry func(err error, attempt int)
}

// Do runs op until it succeeds, the retry budget is spent or ctx is done.
// Each failure is logged as failMessage with the error and attempt number.
// op runs on a context detached from ctx cancellation so an attempt in flight
// completes; cancellation is observed between attempts and reported as ctx's
// error. Each attempt is bounded by the attempt timeout and retried when it expires.
func Do[T any](ctx context.Context, p Policy, failMessage string, op func(ctx context.Context) (T, error)) (T, error) {
	delay := p.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(delay)
	if p.MaxRetries != Unlimited {
		b = backoff.WithMaxRetries(b, p.MaxRetries)
	}
	b = backoff.WithContext(b, ctx)

	timeout := p.AttemptTimeout
	if timeout == 0 {
		timeout = DefaultAttemptTimeout
	}

	detached := context.WithoutCancel(ctx)
	attempt := 0

	operation := func() (T, error) {
		opCtx := detached
		if timeout > 0 {
			var cancel context.CancelFunc
			opCtx, cancel = context.WithTimeout(detached, timeout)
			defer cancel()
		}
		res, err := op(opCtx)
		if err != nil && ctx.Err() != nil {
			return res, backoff.Permanent(fmt.Errorf("%w: last attempt: %w", ctx.Err(), err))
		}
		return res, err
	}

	notify := func(err error, next time.Duration) {
		attempt++
		logger.Warn(failMessage, "err", err, "attempt", attempt, "retry_in", next)
		if p.OnRetry != nil {
			p.OnRetry(err, attempt)
		}
	}

	return backoff.RetryNotifyWithData(operation, b, notify)
}
