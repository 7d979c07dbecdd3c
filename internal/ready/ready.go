// Package ready probes whether a launched server accepts connections.
package ready

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultInitialInterval is the starting poll interval.
	DefaultInitialInterval = 10 * time.Millisecond

	// DefaultMaxInterval is the maximum poll interval after backoff.
	DefaultMaxInterval = 1 * time.Second

	// DefaultTimeout is the default maximum wait for readiness.
	DefaultTimeout = 60 * time.Second
)

// Checker performs a single readiness probe against an address.
type Checker interface {
	Check(ctx context.Context, addr string) error
}

// Options tunes Poll. Zero values select the defaults.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
}

// ForPath returns an HTTP checker when path is set, a TCP checker otherwise.
func ForPath(path string) Checker {
	if path != "" {
		return &HTTP{Path: path}
	}
	return &TCP{}
}

// Poll repeatedly calls checker.Check with exponential backoff until
// the check succeeds or the context is cancelled/timed out.
//
// If onFailure is non-nil it is called after each failed probe that will be
// retried, giving the caller an opportunity to log or to cancel ctx.
func Poll(ctx context.Context, addr string, checker Checker, opts Options, onFailure func(err error)) error {
	timeout := DefaultTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = DefaultInitialInterval
	if opts.Interval > 0 {
		b.InitialInterval = opts.Interval
	}
	b.MaxInterval = max(DefaultMaxInterval, opts.Interval)
	b.Multiplier = 2
	b.RandomizationFactor = 0
	// The timeout context bounds the wait.
	b.MaxElapsedTime = 0
	b.Reset()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	err := backoff.RetryNotify(func() error {
		err := checker.Check(ctx, addr)
		if err != nil {
			lastErr = err
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, _ time.Duration) {
		if onFailure != nil {
			onFailure(err)
		}
	})
	switch {
	case err == nil:
		return nil
	case lastErr != nil:
		return fmt.Errorf("readiness check failed after %s (last error: %v)", timeout, lastErr)
	}
	return fmt.Errorf("readiness check failed: %w", ctx.Err())
}
