// Package pipeline composes the resilience building blocks into a single
// resilient call path.
//
// An Executor owns a set of registered operations, each with an agent key
// for circuit isolation and a mandatory fallback. Execute gates each
// attempt through the agent's circuit breaker, retries transient failures
// with exponential backoff, and degrades to the fallback value when the
// circuit is open or retries are exhausted:
//
//	exec := pipeline.NewExecutor()
//	err := exec.Register(pipeline.Registration{
//	    Name:     "add",
//	    Agent:    "calculator",
//	    Handler:  addHandler,
//	    Fallback: pipeline.FallbackNaN,
//	})
//
//	result, _ := exec.Execute(ctx, "add", 2.0, 3.0)
//
// Resilient callers always get a value: a real result tagged primary, or a
// recognizable sentinel tagged fallback or circuit_open. The outcome of
// every call lands in a bounded operation log, and retry/circuit counters
// are inspectable through Metrics.
//
// Fallback values are chosen to be distinguishable from valid results:
// NaN for numeric operations, -1 for counts, the input echoed for identity
// text operations, the epoch date and midnight for date and time values.
package pipeline
