package pipeline

import (
	"fmt"
	"sync"

	"github.com/jonwraymond/rescue/resilience"
)

// injection forces failures for one operation until it heals.
type injection struct {
	class     resilience.Class
	remaining int
}

// Injector is a test-only collaborator that forces a declared number of
// transient or permanent failures for an operation before it heals. It is
// not part of production behavior.
type Injector struct {
	mu       sync.Mutex
	injected map[string]*injection
}

// NewInjector creates an empty injector.
func NewInjector() *Injector {
	return &Injector{injected: make(map[string]*injection)}
}

// Inject schedules count failures of the given class for op.
func (i *Injector) Inject(op string, class resilience.Class, count int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.injected[op] = &injection{class: class, remaining: count}
}

// Clear removes all scheduled failures.
func (i *Injector) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.injected = make(map[string]*injection)
}

// take consumes one scheduled failure for op, returning the error to raise
// or nil when the operation should run normally.
func (i *Injector) take(op string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	inj, ok := i.injected[op]
	if !ok || inj.remaining <= 0 {
		return nil
	}
	inj.remaining--

	if inj.class == resilience.ClassPermanent {
		return resilience.Permanent(fmt.Errorf("injected permanent failure for %s", op))
	}
	return resilience.Transient(fmt.Errorf("injected transient failure for %s", op))
}
