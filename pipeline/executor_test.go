package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/rescue/resilience"
)

// testOptions keeps retries fast and deterministic.
func testOptions() Options {
	return Options{
		Retry: resilience.RetryConfig{
			MaxRetries: 3,
			Backoff: resilience.BackoffConfig{
				BaseDelay: time.Millisecond,
				MaxDelay:  10 * time.Millisecond,
				Jitter:    false,
			},
		},
		Circuit: resilience.CircuitConfig{
			FailureThreshold: 5,
			ResetTimeout:     25 * time.Millisecond,
		},
		LogCapacity: DefaultLogCapacity,
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, resilience.Permanent(fmt.Errorf("not a number: %v", v))
	}
}

func addHandler(ctx context.Context, args ...any) (any, error) {
	if len(args) != 2 {
		return nil, resilience.Permanent(errors.New("add requires two arguments"))
	}
	a, err := toFloat(args[0])
	if err != nil {
		return nil, err
	}
	b, err := toFloat(args[1])
	if err != nil {
		return nil, err
	}
	return a + b, nil
}

func reverseHandler(ctx context.Context, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, resilience.Permanent(errors.New("reverse requires one argument"))
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, resilience.Permanent(errors.New("reverse requires a string"))
	}
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes), nil
}

func countWordsHandler(ctx context.Context, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, resilience.Permanent(errors.New("count_words requires one argument"))
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, resilience.Permanent(errors.New("count_words requires a string"))
	}
	return len(strings.Fields(s)), nil
}

func currentDateHandler(ctx context.Context, args ...any) (any, error) {
	return time.Now().Format("2006-01-02"), nil
}

func newTestExecutor(t *testing.T, opts ...ExecutorOption) *Executor {
	t.Helper()

	e := NewExecutor(append([]ExecutorOption{WithOptions(testOptions())}, opts...)...)
	regs := []Registration{
		{Name: "add", Agent: "calculator", Handler: addHandler, Fallback: FallbackNaN},
		{Name: "reverse", Agent: "string", Handler: reverseHandler, Fallback: FallbackEchoFirst},
		{Name: "count_words", Agent: "string", Handler: countWordsHandler, Fallback: FallbackCount},
		{Name: "current_date", Agent: "datetime", Handler: currentDateHandler, Fallback: FallbackEpochDate},
	}
	for _, reg := range regs {
		if err := e.Register(reg); err != nil {
			t.Fatalf("Register(%s) error = %v", reg.Name, err)
		}
	}
	return e
}

func TestExecutor_PrimarySuccess(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	result, err := e.Execute(ctx, "add", 2.0, 3.0)
	if err != nil {
		t.Fatalf("Execute(add) error = %v", err)
	}
	if result != 5.0 {
		t.Errorf("Execute(add, 2, 3) = %v, want 5.0", result)
	}

	log := e.OperationLog()
	if len(log) != 1 {
		t.Fatalf("log entries = %d, want 1", len(log))
	}
	if log[0].Source != SourcePrimary {
		t.Errorf("log source = %q, want primary", log[0].Source)
	}
	if log[0].Operation != "add" || log[0].Agent != "calculator" {
		t.Errorf("log entry = %+v, want op add / agent calculator", log[0])
	}
}

func TestExecutor_RetriesTransientThenSucceeds(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	e.InjectFailure("add", resilience.ClassTransient, 2)

	result, err := e.Execute(ctx, "add", 5.0, 3.0)
	if err != nil {
		t.Fatalf("Execute(add) error = %v", err)
	}
	if result != 8.0 {
		t.Errorf("Execute(add, 5, 3) = %v, want 8.0", result)
	}

	m := e.Metrics()
	if m.Retry.Attempts != 3 {
		t.Errorf("retry attempts = %d, want 3 (two failures then success)", m.Retry.Attempts)
	}
	if m.Retry.Successes != 1 {
		t.Errorf("retry successes = %d, want 1", m.Retry.Successes)
	}
}

func TestExecutor_PermanentFallsBackWithoutRetry(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	e.InjectFailure("add", resilience.ClassPermanent, 1)

	result, err := e.Execute(ctx, "add", 2.0, 3.0)
	if err != nil {
		t.Fatalf("Execute(add) error = %v", err)
	}
	f, ok := result.(float64)
	if !ok || !math.IsNaN(f) {
		t.Errorf("Execute(add) with permanent failure = %v, want NaN", result)
	}

	m := e.Metrics()
	if m.Retry.Attempts != 1 {
		t.Errorf("retry attempts = %d, want 1 (permanent errors never retry)", m.Retry.Attempts)
	}

	log := e.OperationLog()
	if len(log) != 1 || log[0].Source != SourceFallback {
		t.Errorf("log = %+v, want single entry with source fallback", log)
	}

	// The circuit must not count a permanent error.
	if got := e.CircuitState("calculator"); got != "closed" {
		t.Errorf("CircuitState(calculator) = %q, want closed", got)
	}
}

func TestExecutor_CircuitOpensAndFastFails(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	invocations := 0
	if err := e.Register(Registration{
		Name:  "flaky",
		Agent: "flaky_agent",
		Handler: func(ctx context.Context, args ...any) (any, error) {
			invocations++
			return nil, resilience.Transient(errors.New("downstream down"))
		},
		Fallback: FallbackStatic("degraded"),
	}); err != nil {
		t.Fatal(err)
	}

	// First call: 4 attempts (1 + 3 retries), failure count reaches 4.
	result, err := e.Execute(ctx, "flaky")
	if err != nil {
		t.Fatalf("Execute(flaky) error = %v", err)
	}
	if result != "degraded" {
		t.Errorf("result = %v, want degraded", result)
	}
	if invocations != 4 {
		t.Fatalf("invocations = %d, want 4", invocations)
	}

	// Second call: fifth failure trips the circuit; the retry sees
	// CircuitOpenError and stops immediately.
	_, _ = e.Execute(ctx, "flaky")
	if got := e.CircuitState("flaky_agent"); got != "open" {
		t.Fatalf("CircuitState = %q, want open", got)
	}
	if invocations != 5 {
		t.Errorf("invocations = %d, want 5", invocations)
	}

	log := e.OperationLog()
	last := log[len(log)-1]
	if last.Source != SourceCircuitOpen {
		t.Errorf("second call source = %q, want circuit_open", last.Source)
	}

	// Third call: rejected without invoking the operation at all.
	result, err = e.Execute(ctx, "flaky")
	if err != nil {
		t.Fatalf("Execute(flaky) error = %v", err)
	}
	if result != "degraded" {
		t.Errorf("result = %v, want degraded", result)
	}
	if invocations != 5 {
		t.Errorf("invocations = %d, want 5 (open circuit must not invoke)", invocations)
	}

	log = e.OperationLog()
	last = log[len(log)-1]
	if last.Source != SourceCircuitOpen {
		t.Errorf("third call source = %q, want circuit_open", last.Source)
	}
}

func TestExecutor_CircuitRecovers(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	e.InjectFailure("add", resilience.ClassTransient, 20)
	zeroRetries := CallOptions{Retry: &resilience.RetryConfig{
		MaxRetries: 0,
		Backoff:    resilience.BackoffConfig{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}}

	for i := 0; i < 5; i++ {
		_, _ = e.ExecuteWith(ctx, "add", zeroRetries, 1.0, 1.0)
	}
	if got := e.CircuitState("calculator"); got != "open" {
		t.Fatalf("CircuitState = %q, want open", got)
	}

	// Heal the operation and wait out the cooldown.
	e.ClearFailures()
	time.Sleep(40 * time.Millisecond)

	result, err := e.ExecuteWith(ctx, "add", zeroRetries, 2.0, 2.0)
	if err != nil {
		t.Fatalf("Execute(add) after cooldown error = %v", err)
	}
	if result != 4.0 {
		t.Errorf("probe result = %v, want 4.0", result)
	}
	if got := e.CircuitState("calculator"); got != "closed" {
		t.Errorf("CircuitState after successful probe = %q, want closed", got)
	}
}

func TestExecutor_AgentIsolation(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	e.InjectFailure("add", resilience.ClassTransient, 20)
	zeroRetries := CallOptions{Retry: &resilience.RetryConfig{
		MaxRetries: 0,
		Backoff:    resilience.BackoffConfig{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}}
	for i := 0; i < 5; i++ {
		_, _ = e.ExecuteWith(ctx, "add", zeroRetries, 1.0, 1.0)
	}

	if got := e.CircuitState("calculator"); got != "open" {
		t.Fatalf("CircuitState(calculator) = %q, want open", got)
	}
	if got := e.CircuitState("string"); got != resilience.StateNotInitialized {
		t.Errorf("CircuitState(string) = %q, want not_initialized", got)
	}

	// String operations still flow while the calculator circuit is open.
	result, err := e.Execute(ctx, "reverse", "hello")
	if err != nil {
		t.Fatalf("Execute(reverse) error = %v", err)
	}
	if result != "olleh" {
		t.Errorf("Execute(reverse, hello) = %v, want olleh", result)
	}
	if got := e.CircuitState("string"); got != "closed" {
		t.Errorf("CircuitState(string) = %q, want closed", got)
	}
}

func TestExecutor_UnknownOperation(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	_, err := e.Execute(ctx, "no_such_op")
	var uoe *UnknownOperationError
	if !errors.As(err, &uoe) {
		t.Fatalf("Execute(unknown) error = %v, want UnknownOperationError", err)
	}
	if uoe.Name != "no_such_op" {
		t.Errorf("error Name = %q, want no_such_op", uoe.Name)
	}
	if len(uoe.Available) == 0 {
		t.Error("error should list available operations")
	}
	if len(e.OperationLog()) != 0 {
		t.Error("unknown operation must not be logged")
	}
}

func TestExecutor_RawModePropagatesErrors(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	e.InjectFailure("add", resilience.ClassTransient, 1)

	_, err := e.ExecuteRaw(ctx, "add", 2.0, 3.0)
	if err == nil {
		t.Fatal("ExecuteRaw with injected failure should propagate the error")
	}
	if resilience.Classify(err) != resilience.ClassTransient {
		t.Errorf("propagated error class = %v, want transient", resilience.Classify(err))
	}

	// The injection is consumed; the next raw call succeeds.
	result, err := e.ExecuteRaw(ctx, "add", 2.0, 3.0)
	if err != nil {
		t.Fatalf("ExecuteRaw error = %v", err)
	}
	if result != 5.0 {
		t.Errorf("ExecuteRaw(add, 2, 3) = %v, want 5.0", result)
	}
}

func TestExecutor_RegistrationValidation(t *testing.T) {
	e := NewExecutor()

	handler := func(ctx context.Context, args ...any) (any, error) { return nil, nil }

	cases := []struct {
		name string
		reg  Registration
	}{
		{"missing name", Registration{Agent: "a", Handler: handler, Fallback: FallbackNaN}},
		{"missing agent", Registration{Name: "x", Handler: handler, Fallback: FallbackNaN}},
		{"missing handler", Registration{Name: "x", Agent: "a", Fallback: FallbackNaN}},
		{"missing fallback", Registration{Name: "x", Agent: "a", Handler: handler}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := e.Register(tc.reg); err == nil {
				t.Error("Register() = nil, want error")
			}
		})
	}

	good := Registration{Name: "x", Agent: "a", Handler: handler, Fallback: FallbackNaN}
	if err := e.Register(good); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := e.Register(good); err == nil {
		t.Error("duplicate Register() = nil, want error")
	}
}

func TestExecutor_Discovery(t *testing.T) {
	e := newTestExecutor(t)

	ops := e.Operations()
	want := []string{"add", "count_words", "current_date", "reverse"}
	if len(ops) != len(want) {
		t.Fatalf("Operations() = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("Operations()[%d] = %q, want %q", i, ops[i], want[i])
		}
	}

	byAgent := e.OperationsByAgent()
	if len(byAgent["string"]) != 2 {
		t.Errorf("string agent ops = %v, want 2 entries", byAgent["string"])
	}
	if len(byAgent["calculator"]) != 1 || byAgent["calculator"][0] != "add" {
		t.Errorf("calculator agent ops = %v, want [add]", byAgent["calculator"])
	}
}

func TestExecutor_FallbackSentinels(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	// Force every operation to fail permanently.
	for _, op := range e.Operations() {
		e.InjectFailure(op, resilience.ClassPermanent, 1)
	}

	result, _ := e.Execute(ctx, "reverse", "hello")
	if result != "hello" {
		t.Errorf("reverse fallback = %v, want input echoed", result)
	}

	result, _ = e.Execute(ctx, "count_words", "one two three")
	if result != -1 {
		t.Errorf("count_words fallback = %v, want -1", result)
	}

	result, _ = e.Execute(ctx, "current_date")
	if result != "1970-01-01" {
		t.Errorf("current_date fallback = %v, want epoch date", result)
	}

	result, _ = e.Execute(ctx, "add", 1.0, 2.0)
	if f, ok := result.(float64); !ok || !math.IsNaN(f) {
		t.Errorf("add fallback = %v, want NaN", result)
	}
}

func TestExecutor_MetricsReset(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	_, _ = e.Execute(ctx, "add", 1.0, 1.0)
	if m := e.Metrics(); m.Retry.Attempts == 0 {
		t.Fatal("expected retry attempts after Execute")
	}

	e.ResetMetrics()
	m := e.Metrics()
	if m.Retry.Attempts != 0 || m.Circuit.Opened != 0 {
		t.Errorf("after ResetMetrics, metrics = %+v, want zeros", m)
	}
}

func TestExecutor_ResetCircuit(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	e.InjectFailure("add", resilience.ClassTransient, 20)
	zeroRetries := CallOptions{Retry: &resilience.RetryConfig{
		MaxRetries: 0,
		Backoff:    resilience.BackoffConfig{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}}
	for i := 0; i < 5; i++ {
		_, _ = e.ExecuteWith(ctx, "add", zeroRetries, 1.0, 1.0)
	}
	if got := e.CircuitState("calculator"); got != "open" {
		t.Fatalf("CircuitState = %q, want open", got)
	}

	e.ResetCircuit("calculator")
	if got := e.CircuitState("calculator"); got != "closed" {
		t.Errorf("CircuitState after reset = %q, want closed", got)
	}
}

func TestExecutor_PerCallClassifier(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	// Treat everything as non-retryable for this call.
	e.InjectFailure("add", resilience.ClassTransient, 1)
	_, _ = e.ExecuteWith(ctx, "add", CallOptions{
		Classifier: func(error) bool { return false },
	}, 1.0, 1.0)

	m := e.Metrics()
	if m.Retry.Attempts != 1 {
		t.Errorf("retry attempts = %d, want 1 with deny-all classifier", m.Retry.Attempts)
	}
}

func TestExecutor_InvalidPerCallConfigSurfaces(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	_, err := e.ExecuteWith(ctx, "add", CallOptions{
		Retry: &resilience.RetryConfig{
			MaxRetries: 3,
			Backoff:    resilience.BackoffConfig{BaseDelay: 0, MaxDelay: time.Second},
		},
	}, 1.0, 1.0)

	var ce *resilience.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("ExecuteWith(bad config) = %v, want ConfigError", err)
	}
}
