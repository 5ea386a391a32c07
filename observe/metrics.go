package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments records resilient-execution telemetry.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: recording must not panic.
type Instruments struct {
	execTotal    metric.Int64Counter
	retryTotal   metric.Int64Counter
	transitions  metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewInstruments creates the instrument set on the given meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	execTotal, err := meter.Int64Counter(
		"resilient.exec.total",
		metric.WithDescription("Resilient executions by outcome source"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	retryTotal, err := meter.Int64Counter(
		"resilient.retry.attempts",
		metric.WithDescription("Retry attempts across all operations"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		"resilient.circuit.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"resilient.exec.duration_ms",
		metric.WithDescription("Resilient execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Instruments{
		execTotal:    execTotal,
		retryTotal:   retryTotal,
		transitions:  transitions,
		durationHist: durationHist,
	}, nil
}

// RecordExecution records one resilient execution and its outcome source
// (primary, fallback, or circuit_open).
func (i *Instruments) RecordExecution(ctx context.Context, op, agent, source string, duration time.Duration) {
	if i == nil {
		return
	}
	opt := metric.WithAttributes(
		attribute.String("op.name", op),
		attribute.String("op.agent", agent),
		attribute.String("op.source", source),
	)
	i.execTotal.Add(ctx, 1, opt)
	i.durationHist.Record(ctx, float64(duration.Microseconds())/1000.0, opt)
}

// RecordRetry records a retry sleep for an operation.
func (i *Instruments) RecordRetry(ctx context.Context, op string) {
	if i == nil {
		return
	}
	i.retryTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op.name", op)))
}

// RecordTransition records a circuit breaker state change.
func (i *Instruments) RecordTransition(ctx context.Context, key, from, to string) {
	if i == nil {
		return
	}
	i.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("circuit.key", key),
		attribute.String("circuit.from", from),
		attribute.String("circuit.to", to),
	))
}
