package pipeline

import (
	"fmt"
	"math"
	"sync"
)

// Fallback produces a substitute value from the original call arguments
// when the primary operation cannot succeed. It must not fail.
type Fallback func(args []any) any

// FallbackRegistry maps operation identity to a fallback. Every registered
// operation must have exactly one fallback; a missing or duplicate entry is
// a programming error surfaced at registration time.
type FallbackRegistry struct {
	mu        sync.RWMutex
	fallbacks map[string]Fallback
}

// NewFallbackRegistry creates an empty registry.
func NewFallbackRegistry() *FallbackRegistry {
	return &FallbackRegistry{fallbacks: make(map[string]Fallback)}
}

// Register binds a fallback to an operation name.
func (r *FallbackRegistry) Register(op string, fb Fallback) error {
	if op == "" {
		return fmt.Errorf("pipeline: fallback registration requires an operation name")
	}
	if fb == nil {
		return fmt.Errorf("pipeline: operation %q requires a fallback", op)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.fallbacks[op]; exists {
		return fmt.Errorf("pipeline: operation %q already has a fallback", op)
	}
	r.fallbacks[op] = fb
	return nil
}

// Value resolves the fallback value for op. The lookup is keyed on
// operation identity, never on the error that triggered it.
func (r *FallbackRegistry) Value(op string, args []any) any {
	r.mu.RLock()
	fb := r.fallbacks[op]
	r.mu.RUnlock()

	if fb == nil {
		return nil
	}
	return fb(args)
}

// Known reports whether op has a registered fallback.
func (r *FallbackRegistry) Known(op string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.fallbacks[op]
	return ok
}

// Recognizable fallback values. Each is deliberately distinguishable from
// any valid result of its operation family.

// FallbackNaN substitutes NaN for numeric operations.
func FallbackNaN(args []any) any {
	return math.NaN()
}

// FallbackCount substitutes -1 for counting operations, where 0 is a valid
// result.
func FallbackCount(args []any) any {
	return -1
}

// FallbackEchoFirst returns the first argument unchanged, the safe default
// for identity-like text operations. With no arguments it returns "".
func FallbackEchoFirst(args []any) any {
	if len(args) == 0 {
		return ""
	}
	if s, ok := args[0].(string); ok {
		return s
	}
	return fmt.Sprintf("%v", args[0])
}

// FallbackEpochDate substitutes the epoch date for date-valued operations.
func FallbackEpochDate(args []any) any {
	return "1970-01-01"
}

// FallbackMidnight substitutes midnight for time-valued operations.
func FallbackMidnight(args []any) any {
	return "00:00:00"
}

// FallbackStatic returns a fallback that always produces v.
func FallbackStatic(v any) Fallback {
	return func([]any) any { return v }
}
