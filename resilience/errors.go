package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when a circuit breaker is rejecting calls.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrDeadline is returned when a bounded-wait operation exceeds its deadline.
	ErrDeadline = errors.New("resilience: operation exceeded deadline")
)

// ConfigError reports an invalid retry or circuit parameter. It is raised
// synchronously before any attempt is made and is never retried.
type ConfigError struct {
	Param  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("resilience: invalid %s: %s", e.Param, e.Reason)
}

// PermanentError marks a failure that will recur identically on retry:
// bad input, logic defects, missing keys. Retry executors propagate it
// immediately and circuit breakers do not count it.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so classifiers treat it as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// TransientError marks a failure expected to resolve with time: timeouts,
// connection drops, brief resource contention.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so classifiers treat it as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// RateLimitError signals an upstream rate limit (HTTP 429 semantics).
// It is a transient failure and carries the advertised cooldown.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// CircuitOpenError is raised by the circuit breaker registry when a call is
// fast-failed. It carries the key that tripped and the remaining cooldown.
type CircuitOpenError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %q is open, retry after %s", e.Key, e.RetryAfter.Round(100*time.Millisecond))
}

func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }
