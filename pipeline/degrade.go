package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BatchCall names an operation and its arguments for batch execution.
type BatchCall struct {
	Operation string
	Args      []any
}

// BatchResult holds the partial outcome of a batch: what succeeded, what
// failed, and the fraction that succeeded.
type BatchResult struct {
	Results     map[string]any
	Errors      map[string]string
	SuccessRate float64
}

// ExecuteBatch runs each call raw and concurrently, collecting partial
// results instead of failing the whole batch on one error. Unlike Execute,
// failures here surface in the Errors map rather than as fallback values.
func (e *Executor) ExecuteBatch(ctx context.Context, calls map[string]BatchCall) BatchResult {
	res := BatchResult{
		Results: make(map[string]any, len(calls)),
		Errors:  make(map[string]string),
	}
	if len(calls) == 0 {
		return res
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	for name, call := range calls {
		g.Go(func() error {
			value, err := e.ExecuteRaw(ctx, call.Operation, call.Args...)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Errors[name] = err.Error()
			} else {
				res.Results[name] = value
			}
			return nil
		})
	}
	_ = g.Wait()

	res.SuccessRate = float64(len(res.Results)) / float64(len(calls))
	return res
}
