package resilience

import "go.uber.org/atomic"

// RetryMetrics counts retry activity for the life of the process.
type RetryMetrics struct {
	attempts  atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
}

// RetrySnapshot is a point-in-time copy of retry counters.
type RetrySnapshot struct {
	Attempts  int64
	Successes int64
	Failures  int64
}

// Snapshot returns the current counter values.
func (m *RetryMetrics) Snapshot() RetrySnapshot {
	return RetrySnapshot{
		Attempts:  m.attempts.Load(),
		Successes: m.successes.Load(),
		Failures:  m.failures.Load(),
	}
}

// Reset zeroes all retry counters.
func (m *RetryMetrics) Reset() {
	m.attempts.Store(0)
	m.successes.Store(0)
	m.failures.Store(0)
}

// CircuitMetrics counts circuit state transitions across all keys.
type CircuitMetrics struct {
	opened     atomic.Int64
	closed     atomic.Int64
	halfOpened atomic.Int64
}

// CircuitSnapshot is a point-in-time copy of circuit transition counters.
type CircuitSnapshot struct {
	Opened     int64
	Closed     int64
	HalfOpened int64
}

// Snapshot returns the current counter values.
func (m *CircuitMetrics) Snapshot() CircuitSnapshot {
	return CircuitSnapshot{
		Opened:     m.opened.Load(),
		Closed:     m.closed.Load(),
		HalfOpened: m.halfOpened.Load(),
	}
}

// Reset zeroes all transition counters.
func (m *CircuitMetrics) Reset() {
	m.opened.Store(0)
	m.closed.Store(0)
	m.halfOpened.Store(0)
}
