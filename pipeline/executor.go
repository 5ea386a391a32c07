package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/rescue/observe"
	"github.com/jonwraymond/rescue/resilience"
)

// Handler implements one operation. Arguments arrive as supplied to
// Execute; the handler validates its own inputs and fails with a
// classifiable error.
type Handler func(ctx context.Context, args ...any) (any, error)

// Registration describes one operation known to the executor.
type Registration struct {
	// Name is the operation identity, e.g. "add".
	Name string

	// Agent is the circuit breaker key. Operations sharing an agent share
	// one circuit; distinct agents are fully isolated.
	Agent string

	// Handler runs the operation.
	Handler Handler

	// Fallback supplies the substitute value when the operation cannot
	// succeed. Required.
	Fallback Fallback
}

// UnknownOperationError is the only error a resilient Execute surfaces: the
// requested operation was never registered. It is raised before the
// pipeline starts.
type UnknownOperationError struct {
	Name      string
	Available []string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("pipeline: unknown operation %q, available: %s",
		e.Name, strings.Join(e.Available, ", "))
}

// Options are the executor-wide defaults, overridable per call.
type Options struct {
	Retry   resilience.RetryConfig
	Circuit resilience.CircuitConfig

	// LogCapacity bounds the operation log. Default: 100 entries.
	LogCapacity int
}

// DefaultOptions returns the stock configuration: three retries on a fast
// jittered backoff, circuits tripping after five failures with a thirty
// second cooldown.
func DefaultOptions() Options {
	return Options{
		Retry: resilience.RetryConfig{
			MaxRetries: 3,
			Backoff: resilience.BackoffConfig{
				BaseDelay: 10 * time.Millisecond,
				MaxDelay:  time.Second,
				Jitter:    true,
			},
		},
		Circuit: resilience.CircuitConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		LogCapacity: DefaultLogCapacity,
	}
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithOptions replaces the executor-wide defaults.
func WithOptions(opts Options) ExecutorOption {
	return func(e *Executor) { e.defaults = opts }
}

// WithLogger attaches a structured logger for per-execution records.
func WithLogger(l observe.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithInstruments attaches OpenTelemetry instruments.
func WithInstruments(i *observe.Instruments) ExecutorOption {
	return func(e *Executor) { e.instruments = i }
}

// WithTracer attaches an execution tracer.
func WithTracer(t *observe.Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = t }
}

// Executor composes the circuit breaker registry, retry executor, and
// fallback registry into one resilient call path.
//
// In resilient mode every failure is absorbed: callers get either the real
// result or a recognizable fallback value, never an error, except for
// unknown-operation validation which fails before the pipeline starts.
//
// Register all operations before sharing the executor between goroutines;
// Register is not safe to call concurrently with Execute.
type Executor struct {
	ops       map[string]Registration
	fallbacks *FallbackRegistry
	circuits  *resilience.CircuitRegistry
	retrier   *resilience.Retrier
	oplog     *OperationLog
	injector  *Injector
	defaults  Options

	logger      observe.Logger
	instruments *observe.Instruments
	tracer      *observe.Tracer
}

// NewExecutor creates a resilient executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		ops:       make(map[string]Registration),
		fallbacks: NewFallbackRegistry(),
		retrier:   resilience.NewRetrier(),
		injector:  NewInjector(),
		defaults:  DefaultOptions(),
		logger:    observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.circuits = resilience.NewCircuitRegistry(
		resilience.WithStateChangeHook(func(key string, from, to resilience.CircuitState) {
			ctx := context.Background()
			e.instruments.RecordTransition(ctx, key, from.String(), to.String())
			e.logger.Warn(ctx, "circuit state change",
				observe.F("key", key),
				observe.F("from", from.String()),
				observe.F("to", to.String()),
			)
		}),
	)
	e.oplog = NewOperationLog(e.defaults.LogCapacity)
	return e
}

// Register adds an operation. Missing pieces are programming errors
// reported here, not at call time.
func (e *Executor) Register(reg Registration) error {
	if reg.Name == "" {
		return fmt.Errorf("pipeline: registration requires a name")
	}
	if reg.Agent == "" {
		return fmt.Errorf("pipeline: operation %q requires an agent key", reg.Name)
	}
	if reg.Handler == nil {
		return fmt.Errorf("pipeline: operation %q requires a handler", reg.Name)
	}
	if _, exists := e.ops[reg.Name]; exists {
		return fmt.Errorf("pipeline: operation %q already registered", reg.Name)
	}
	if err := e.fallbacks.Register(reg.Name, reg.Fallback); err != nil {
		return err
	}
	e.ops[reg.Name] = reg
	return nil
}

// MustRegister is Register that panics on programming errors, for
// registration at construction time.
func (e *Executor) MustRegister(reg Registration) {
	if err := e.Register(reg); err != nil {
		panic(err)
	}
}

// CallOptions override executor defaults for a single call.
type CallOptions struct {
	Retry      *resilience.RetryConfig
	Circuit    *resilience.CircuitConfig
	Classifier resilience.ClassifierFunc
}

// Execute runs an operation through the full resilience pipeline: circuit
// breaker gating each attempt, retry with backoff around it, and the
// fallback value on any failure path.
func (e *Executor) Execute(ctx context.Context, name string, args ...any) (any, error) {
	return e.ExecuteWith(ctx, name, CallOptions{}, args...)
}

// ExecuteWith is Execute with per-call overrides.
func (e *Executor) ExecuteWith(ctx context.Context, name string, call CallOptions, args ...any) (any, error) {
	reg, err := e.lookup(name)
	if err != nil {
		return nil, err
	}

	retryCfg := e.defaults.Retry
	if call.Retry != nil {
		retryCfg = *call.Retry
	}
	circuitCfg := e.defaults.Circuit
	if call.Circuit != nil {
		circuitCfg = *call.Circuit
	}
	retryCfg.Classifier = pipelineClassifier(call.Classifier)
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		e.instruments.RecordRetry(ctx, name)
		e.logger.Debug(ctx, "retrying operation",
			observe.F("op", name),
			observe.F("attempt", attempt),
			observe.F("delay", delay.String()),
			observe.F("error", err.Error()),
		)
	}

	ctx, span := e.tracer.StartExecution(ctx, name, reg.Agent)
	start := time.Now()

	gated := func(ctx context.Context) (any, error) {
		return e.circuits.Do(ctx, reg.Agent, circuitCfg, func(ctx context.Context) (any, error) {
			return e.invoke(ctx, reg, args)
		})
	}

	result, err := e.retrier.Do(ctx, retryCfg, gated)
	switch {
	case err == nil:
		e.finish(ctx, span, reg, args, result, SourcePrimary, nil, start)
		return result, nil

	case isValidation(err):
		// Bad retry/circuit parameters are caller defects, not failures
		// the pipeline should absorb.
		e.tracer.EndExecution(span, "", err)
		return nil, err

	case errors.Is(err, resilience.ErrCircuitOpen):
		value := e.fallbacks.Value(name, args)
		e.finish(ctx, span, reg, args, value, SourceCircuitOpen, err, start)
		return value, nil

	default:
		value := e.fallbacks.Value(name, args)
		e.finish(ctx, span, reg, args, value, SourceFallback, err, start)
		return value, nil
	}
}

// ExecuteRaw runs the operation directly, bypassing circuit, retry, and
// fallback. All errors propagate unchanged.
func (e *Executor) ExecuteRaw(ctx context.Context, name string, args ...any) (any, error) {
	reg, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.invoke(ctx, reg, args)
}

func (e *Executor) lookup(name string) (Registration, error) {
	reg, ok := e.ops[name]
	if !ok {
		return Registration{}, &UnknownOperationError{Name: name, Available: e.Operations()}
	}
	return reg, nil
}

// invoke runs the handler, honoring any injected failure first.
func (e *Executor) invoke(ctx context.Context, reg Registration, args []any) (any, error) {
	if err := e.injector.take(reg.Name); err != nil {
		return nil, err
	}
	return reg.Handler(ctx, args...)
}

// finish records the outcome of one resilient execution: operation log,
// instruments, span, and structured log line.
func (e *Executor) finish(ctx context.Context, span trace.Span, reg Registration, args []any, result any, source Source, cause error, start time.Time) {
	e.oplog.Record(reg.Name, reg.Agent, args, result, source)
	e.instruments.RecordExecution(ctx, reg.Name, reg.Agent, string(source), time.Since(start))
	e.tracer.EndExecution(span, string(source), cause)

	if source == SourcePrimary {
		e.logger.Debug(ctx, "operation succeeded",
			observe.F("op", reg.Name),
			observe.F("agent", reg.Agent),
		)
		return
	}
	e.logger.Warn(ctx, "operation degraded to fallback",
		observe.F("op", reg.Name),
		observe.F("agent", reg.Agent),
		observe.F("source", string(source)),
		observe.F("error", cause.Error()),
	)
}

func pipelineClassifier(custom resilience.ClassifierFunc) resilience.ClassifierFunc {
	return func(err error) bool {
		// A rejected call must skip retries entirely; the circuit already
		// decided to fail fast.
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return false
		}
		if custom != nil {
			return custom(err)
		}
		return resilience.Classify(err) == resilience.ClassTransient
	}
}

func isValidation(err error) bool {
	var ce *resilience.ConfigError
	return errors.As(err, &ce)
}

// Operations returns the sorted list of registered operation names.
func (e *Executor) Operations() []string {
	names := make([]string, 0, len(e.ops))
	for name := range e.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OperationsByAgent returns operation names grouped by agent key, each
// group sorted.
func (e *Executor) OperationsByAgent() map[string][]string {
	out := make(map[string][]string)
	for name, reg := range e.ops {
		out[reg.Agent] = append(out[reg.Agent], name)
	}
	for agent := range out {
		sort.Strings(out[agent])
	}
	return out
}

// CircuitStates returns the state string for every agent key seen so far.
func (e *Executor) CircuitStates() map[string]string {
	return e.circuits.States()
}

// CircuitState returns the state string for one agent key, or
// "not_initialized" if it has never been used.
func (e *Executor) CircuitState(agent string) string {
	return e.circuits.StateOf(agent)
}

// ResetCircuit forces an agent's circuit back to closed.
func (e *Executor) ResetCircuit(agent string) {
	e.circuits.Reset(agent)
}

// MetricsSnapshot bundles the retry and circuit counters.
type MetricsSnapshot struct {
	Retry   resilience.RetrySnapshot
	Circuit resilience.CircuitSnapshot
}

// Metrics returns current retry and circuit counters.
func (e *Executor) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		Retry:   e.retrier.Metrics().Snapshot(),
		Circuit: e.circuits.Metrics().Snapshot(),
	}
}

// ResetMetrics zeroes all counters.
func (e *Executor) ResetMetrics() {
	e.retrier.Metrics().Reset()
	e.circuits.Metrics().Reset()
}

// OperationLog returns retained execution records, oldest first.
func (e *Executor) OperationLog() []LogEntry {
	return e.oplog.Entries()
}

// ClearOperationLog discards all execution records.
func (e *Executor) ClearOperationLog() {
	e.oplog.Clear()
}

// InjectFailure schedules count failures of the given class for an
// operation. Test-only collaborator.
func (e *Executor) InjectFailure(op string, class resilience.Class, count int) {
	e.injector.Inject(op, class, count)
}

// ClearFailures removes all injected failures.
func (e *Executor) ClearFailures() {
	e.injector.Clear()
}
