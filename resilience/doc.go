// Package resilience provides the building blocks for resilient execution
// of unreliable operations.
//
// The package implements failure classification, retry with exponential
// backoff, a keyed circuit breaker registry, bounded-wait execution, rate
// limiting, and bulkhead isolation. The blocks compose into a pipeline in
// the pipeline package.
//
// # Failure classification
//
// Every failure is either transient (may resolve with time: timeouts,
// connection drops, rate limits) or permanent (recurs identically on
// retry: bad input, logic defects). Classify applies built-in rules;
// operations can mark errors explicitly with Transient and Permanent, and
// callers can override classification per call with a ClassifierFunc.
// Unrecognized failures are permanent.
//
// # Circuit breakers
//
// CircuitRegistry owns one breaker per key. A breaker opens after a
// configured number of qualifying failures, rejects calls for a cooldown,
// then allows a single half-open probe: success closes it, failure reopens
// it. Keys are independent; a tripped circuit for one key never affects
// another.
//
// # Retry
//
// Retrier runs an operation up to MaxRetries+1 times, sleeping per the
// exponential backoff sequence between attempts. Permanent failures
// propagate immediately. Attempt outcomes are counted in a shared
// RetryMetrics bundle.
//
// # Composition
//
//	registry := resilience.NewCircuitRegistry()
//	retrier := resilience.NewRetrier()
//
//	result, err := retrier.Do(ctx, retryConfig, func(ctx context.Context) (any, error) {
//	    return registry.Do(ctx, "billing", circuitConfig, callBilling)
//	})
package resilience
