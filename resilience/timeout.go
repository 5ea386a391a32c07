package resilience

import (
	"context"
	"time"
)

// DeadlineConfig configures the bounded-wait wrapper.
type DeadlineConfig struct {
	// Wait is the maximum duration to wait for the operation.
	// Default: 30 seconds
	Wait time.Duration
}

// Deadline runs operations on a worker goroutine and joins with a bound.
//
// The worker is not forcibly cancelled: an operation that ignores its
// context keeps running after the deadline fires. Leaked work is a known
// limitation of this wrapper.
type Deadline struct {
	config DeadlineConfig
}

// NewDeadline creates a bounded-wait wrapper.
func NewDeadline(config DeadlineConfig) *Deadline {
	if config.Wait <= 0 {
		config.Wait = 30 * time.Second
	}
	return &Deadline{config: config}
}

type opResult struct {
	value any
	err   error
}

// Do runs op with the configured bound. Returns ErrDeadline when the bound
// elapses first, or the context's error if it is cancelled earlier.
func (d *Deadline) Do(ctx context.Context, op Operation) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, d.config.Wait)
	defer cancel()

	done := make(chan opResult, 1)
	go func() {
		value, err := op(ctx)
		done <- opResult{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrDeadline
		}
		return nil, ctx.Err()
	}
}

// DoWithDeadline is a convenience function for a one-off bounded wait.
func DoWithDeadline(ctx context.Context, wait time.Duration, op Operation) (any, error) {
	return NewDeadline(DeadlineConfig{Wait: wait}).Do(ctx, op)
}
