// Package retry wraps a fallible operation with bounded exponential backoff.
// Only transient fault categories are retried; anything else propagates to
// the caller on first occurrence.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"syscall"
	"time"

	"github.com/paygrid/intent-service/internal/domain"
)

var ErrNilOperation = errors.New("retry: nil operation")

type Options struct {
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
	Jitter            bool
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:        3,
		InitialDelay:      100 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          5 * time.Second,
		Jitter:            true,
	}
}

func (o Options) normalized() Options {
	if o.InitialDelay <= 0 {
		o.InitialDelay = 100 * time.Millisecond
	}
	if o.BackoffMultiplier < 1 {
		o.BackoffMultiplier = 2.0
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 5 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return o
}

type Operation[T any] func(ctx context.Context) (T, error)

// Execute runs op up to 1+MaxRetries times. Transient faults are retried
// after a backoff delay; non-transient faults propagate unchanged on the
// first occurrence, and the last transient fault propagates once attempts
// are exhausted. retryResult may be nil; when set, a true return on a
// successful value schedules another attempt (poll-until-settled), except
// on the final attempt, whose value is returned as-is.
//
// Both the in-flight operation and the backoff delay observe ctx: a
// cancelled caller gets ctx.Err() back promptly and no further attempts
// are made.
func Execute[T any](ctx context.Context, opts Options, op Operation[T], retryResult func(T) bool) (T, error) {
	var zero T
	if op == nil {
		return zero, ErrNilOperation
	}
	opts = opts.normalized()

	delay := opts.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, withJitter(delay, opts.Jitter)); err != nil {
				return zero, err
			}
			delay = nextDelay(delay, opts)
		}

		v, err := op(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			if !IsTransient(err) {
				return zero, err
			}
			lastErr = err
			continue
		}

		if retryResult != nil && retryResult(v) && attempt < opts.MaxRetries {
			lastErr = nil
			continue
		}
		return v, nil
	}

	return zero, fmt.Errorf("Execute: exhausted %d attempts: %w", opts.MaxRetries+1, lastErr)
}

func nextDelay(current time.Duration, opts Options) time.Duration {
	next := time.Duration(float64(current) * opts.BackoffMultiplier)
	if next > opts.MaxDelay {
		next = opts.MaxDelay
	}
	return next
}

// withJitter spreads the wait by up to ±25%, floored at one millisecond so
// a retry never turns into a busy loop.
func withJitter(d time.Duration, jitter bool) time.Duration {
	if !jitter {
		return d
	}
	factor := 0.75 + rand.Float64()*0.5
	jittered := time.Duration(float64(d) * factor)
	if jittered < time.Millisecond {
		jittered = time.Millisecond
	}
	return jittered
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsTransient reports whether err belongs to the designated retryable fault
// categories: timeouts, cancellation of the attempt, and network/connection
// faults, plus gateway unavailability surfaced by the gateway client.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, domain.ErrGatewayUnavailable) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	return false
}
