package resilience

import (
	"context"
	"sync"
	"time"
)

// CircuitState represents a circuit breaker state.
type CircuitState int

const (
	// StateClosed means calls flow through normally.
	StateClosed CircuitState = iota
	// StateOpen means calls are rejected without invoking the operation.
	StateOpen
	// StateHalfOpen means a single probe call is testing recovery.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// StateNotInitialized is reported for keys that have never been used.
const StateNotInitialized = "not_initialized"

// CircuitConfig configures one circuit breaker key.
type CircuitConfig struct {
	// FailureThreshold is the number of qualifying failures before the
	// circuit opens. Must be > 0.
	FailureThreshold int

	// ResetTimeout is how long an open circuit waits before allowing a
	// half-open probe. Must be > 0.
	ResetTimeout time.Duration
}

// Validate checks the circuit parameters.
func (c CircuitConfig) Validate() error {
	if c.FailureThreshold <= 0 {
		return &ConfigError{Param: "failure_threshold", Reason: "must be positive"}
	}
	if c.ResetTimeout <= 0 {
		return &ConfigError{Param: "reset_timeout", Reason: "must be positive"}
	}
	return nil
}

// Operation is any zero-argument computation guarded by the resilience
// machinery. It either produces a value or fails with a classifiable error.
type Operation func(ctx context.Context) (any, error)

// breaker tracks the state machine for a single key. Thresholds are fixed
// at first use of the key.
type breaker struct {
	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time
	probing     bool
	config      CircuitConfig
}

// CircuitRegistry owns one circuit breaker per key. Keys are fully
// independent: a tripped circuit for one key never affects another.
//
// All state lives behind a single mutex; the guarded operation itself runs
// outside the lock.
type CircuitRegistry struct {
	mu       sync.Mutex
	breakers map[string]*breaker
	metrics  *CircuitMetrics

	// OnStateChange, if set, is called after a transition with the lock
	// released. Used by the observe layer.
	onStateChange func(key string, from, to CircuitState)
}

// CircuitRegistryOption configures a CircuitRegistry.
type CircuitRegistryOption func(*CircuitRegistry)

// WithStateChangeHook registers a callback invoked on every transition.
func WithStateChangeHook(fn func(key string, from, to CircuitState)) CircuitRegistryOption {
	return func(r *CircuitRegistry) { r.onStateChange = fn }
}

// NewCircuitRegistry creates an empty registry.
func NewCircuitRegistry(opts ...CircuitRegistryOption) *CircuitRegistry {
	r := &CircuitRegistry{
		breakers: make(map[string]*breaker),
		metrics:  &CircuitMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// transition is a state change recorded while the lock is held and
// announced after it is released.
type transition struct {
	key      string
	from, to CircuitState
}

// Do runs op under the circuit breaker for key.
//
// State machine:
//   - Closed: op runs; a qualifying failure increments the failure count
//     and opens the circuit at the threshold. Successes do not reset the
//     count, they only increment the success counter.
//   - Open: calls are rejected with CircuitOpenError until ResetTimeout has
//     elapsed since the last failure, then the next call becomes the
//     half-open probe.
//   - HalfOpen: exactly one in-flight probe is allowed; concurrent callers
//     are rejected as still open. A successful probe closes the circuit and
//     zeroes the failure count; a failed probe reopens it and refreshes the
//     failure time.
//
// Permanent failures propagate without any circuit bookkeeping.
func (r *CircuitRegistry) Do(ctx context.Context, key string, config CircuitConfig, op Operation) (any, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	b, trans, admitErr := r.admit(key, config)
	if trans != nil {
		r.announce(*trans)
	}
	if admitErr != nil {
		return nil, admitErr
	}

	result, err := op(ctx)

	if trans := r.settle(key, b, err); trans != nil {
		r.announce(*trans)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// admit decides whether the call may proceed, creating the breaker on first
// use and performing the lazy Open -> HalfOpen transition.
func (r *CircuitRegistry) admit(key string, config CircuitConfig) (*breaker, *transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[key]
	if !ok {
		b = &breaker{state: StateClosed, config: config}
		r.breakers[key] = b
	}

	switch b.state {
	case StateOpen:
		elapsed := time.Since(b.lastFailure)
		if elapsed < b.config.ResetTimeout {
			return nil, nil, &CircuitOpenError{Key: key, RetryAfter: b.config.ResetTimeout - elapsed}
		}
		b.state = StateHalfOpen
		b.probing = true
		r.metrics.halfOpened.Inc()
		return b, &transition{key: key, from: StateOpen, to: StateHalfOpen}, nil

	case StateHalfOpen:
		if b.probing {
			// Another caller owns the probe; treat this call as still open.
			return nil, nil, &CircuitOpenError{Key: key, RetryAfter: b.config.ResetTimeout}
		}
		b.probing = true
	}

	return b, nil, nil
}

// settle records the outcome of an admitted call.
func (r *CircuitRegistry) settle(key string, b *breaker, err error) *transition {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b.state == StateHalfOpen {
		b.probing = false
	}

	if err == nil {
		b.successes++
		if b.state == StateHalfOpen {
			b.state = StateClosed
			b.failures = 0
			r.metrics.closed.Inc()
			return &transition{key: key, from: StateHalfOpen, to: StateClosed}
		}
		return nil
	}

	if Classify(err) == ClassPermanent {
		// Caller defect, not a dependency failure. The circuit stays put.
		return nil
	}

	b.failures++
	b.lastFailure = time.Now()

	switch {
	case b.state == StateHalfOpen:
		b.state = StateOpen
		r.metrics.opened.Inc()
		return &transition{key: key, from: StateHalfOpen, to: StateOpen}
	case b.state == StateClosed && b.failures >= b.config.FailureThreshold:
		b.state = StateOpen
		r.metrics.opened.Inc()
		return &transition{key: key, from: StateClosed, to: StateOpen}
	}
	return nil
}

func (r *CircuitRegistry) announce(t transition) {
	if r.onStateChange != nil {
		r.onStateChange(t.key, t.from, t.to)
	}
}

// StateOf returns the stored state string for key, or StateNotInitialized
// if the key has never been used. The lazy open-to-half-open transition
// happens on calls, not on inspection.
func (r *CircuitRegistry) StateOf(key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[key]
	if !ok {
		return StateNotInitialized
	}
	return b.state.String()
}

// States returns the state string for every known key.
func (r *CircuitRegistry) States() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.breakers))
	for key, b := range r.breakers {
		out[key] = b.state.String()
	}
	return out
}

// Reset forces the breaker for key back to closed with a zero failure
// count, regardless of its current state. Unknown keys are a no-op.
func (r *CircuitRegistry) Reset(key string) {
	r.mu.Lock()
	b, ok := r.breakers[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.probing = false
	r.mu.Unlock()

	if from != StateClosed {
		r.announce(transition{key: key, from: from, to: StateClosed})
	}
}

// BreakerInfo is a point-in-time view of one key's breaker.
type BreakerInfo struct {
	State       CircuitState
	Failures    int
	Successes   int
	LastFailure time.Time
}

// Info returns counters for key. The second result is false for keys that
// have never been used.
func (r *CircuitRegistry) Info(key string) (BreakerInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[key]
	if !ok {
		return BreakerInfo{}, false
	}
	return BreakerInfo{
		State:       b.state,
		Failures:    b.failures,
		Successes:   b.successes,
		LastFailure: b.lastFailure,
	}, true
}

// Metrics returns the shared transition counters.
func (r *CircuitRegistry) Metrics() *CircuitMetrics {
	return r.metrics
}
