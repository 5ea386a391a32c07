// Package observe provides telemetry for resilient execution: structured
// JSON logging, OpenTelemetry metrics for executions, retries, and circuit
// transitions, and spans around each resilient call.
//
// Build an Observer from configuration and hand its parts to the pipeline:
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "payments",
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	})
//
// All components degrade to no-ops when disabled, so callers can wire the
// Observer unconditionally.
package observe
