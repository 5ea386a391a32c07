package resilience

import (
	"context"
	"time"
)

// RetryConfig configures retry behavior for one call.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Zero means a single attempt. Must be >= 0.
	MaxRetries int

	// Backoff controls the delay sequence between attempts.
	Backoff BackoffConfig

	// Classifier, if set, overrides the built-in retryable decision for
	// this call.
	Classifier ClassifierFunc

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Validate checks the retry parameters.
func (c RetryConfig) Validate() error {
	if c.MaxRetries < 0 {
		return &ConfigError{Param: "max_retries", Reason: "must be >= 0"}
	}
	return c.Backoff.Validate()
}

// Retrier runs operations with exponential backoff, recording attempt
// outcomes into a shared metrics bundle.
type Retrier struct {
	metrics *RetryMetrics
}

// NewRetrier creates a retrier with its own metrics bundle.
func NewRetrier() *Retrier {
	return &Retrier{metrics: &RetryMetrics{}}
}

// Do runs op up to config.MaxRetries+1 times.
//
// A success returns immediately. A permanent failure propagates without
// further attempts or delay. A transient failure sleeps per the backoff
// sequence and retries; when attempts are exhausted the last error is
// returned. Sleeps occur only between attempts, never before the first or
// after the last, and honor ctx cancellation.
func (r *Retrier) Do(ctx context.Context, config RetryConfig, op Operation) (any, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		r.metrics.attempts.Inc()

		result, err := op(ctx)
		if err == nil {
			r.metrics.successes.Inc()
			return result, nil
		}
		lastErr = err

		if !Retryable(err, config.Classifier) {
			r.metrics.failures.Inc()
			return nil, err
		}
		if attempt == config.MaxRetries {
			r.metrics.failures.Inc()
			return nil, err
		}

		delay := config.Backoff.Delay(attempt)
		if config.OnRetry != nil {
			config.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			r.metrics.failures.Inc()
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	// Unreachable; the loop always returns.
	return nil, lastErr
}

// Metrics returns the shared retry counters.
func (r *Retrier) Metrics() *RetryMetrics {
	return r.metrics
}
