package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/rescue/resilience"
)

// circuitStates is the view of circuit health this package needs from the
// resilience registry.
type circuitStates interface {
	States() map[string]string
	StateOf(key string) string
}

// CircuitChecker reports the health of one circuit breaker key:
// closed is healthy, half_open is degraded (recovery probe in flight),
// open is unhealthy. A key that has never been used reports healthy.
type CircuitChecker struct {
	registry circuitStates
	key      string
}

// NewCircuitChecker creates a checker for one key of the registry.
func NewCircuitChecker(registry *resilience.CircuitRegistry, key string) *CircuitChecker {
	return &CircuitChecker{registry: registry, key: key}
}

// Check implements Checker.
func (c *CircuitChecker) Check(ctx context.Context) Result {
	state := c.registry.StateOf(c.key)
	result := statusFor(state)
	result.Message = fmt.Sprintf("circuit %q is %s", c.key, state)
	result.Details = map[string]any{"key": c.key, "state": state}
	return result
}

// RegistryChecker reports composite health across every key the registry
// has seen: unhealthy if any circuit is open, degraded if any is half-open,
// healthy otherwise.
type RegistryChecker struct {
	registry circuitStates
}

// NewRegistryChecker creates a composite checker over the registry.
func NewRegistryChecker(registry *resilience.CircuitRegistry) *RegistryChecker {
	return &RegistryChecker{registry: registry}
}

// Check implements Checker.
func (c *RegistryChecker) Check(ctx context.Context) Result {
	states := c.registry.States()

	worst := StatusHealthy
	details := make(map[string]any, len(states))
	for key, state := range states {
		details[key] = state
		if s := statusFor(state).Status; s > worst {
			worst = s
		}
	}

	return Result{
		Status:    worst,
		Message:   fmt.Sprintf("%d circuits tracked", len(states)),
		Details:   details,
		Timestamp: time.Now(),
	}
}

func statusFor(state string) Result {
	switch state {
	case "open":
		return Result{Status: StatusUnhealthy, Timestamp: time.Now()}
	case "half_open":
		return Result{Status: StatusDegraded, Timestamp: time.Now()}
	default:
		return Result{Status: StatusHealthy, Timestamp: time.Now()}
	}
}
