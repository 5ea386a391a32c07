package resilience

import (
	"context"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the maximum number of concurrent operations.
	// Default: 10
	MaxConcurrent int

	// MaxWait is the maximum time to wait for a slot.
	// Default: 0 (no waiting, fail immediately)
	MaxWait time.Duration
}

// Bulkhead limits concurrent operations to prevent resource exhaustion.
type Bulkhead struct {
	config   BulkheadConfig
	sem      *semaphore.Weighted
	rejected atomic.Int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	return &Bulkhead{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrent)),
	}
}

// Do runs op inside the bulkhead, failing with ErrBulkheadFull when no slot
// becomes available within MaxWait.
func (b *Bulkhead) Do(ctx context.Context, op Operation) (any, error) {
	if b.config.MaxWait <= 0 {
		if !b.sem.TryAcquire(1) {
			b.rejected.Inc()
			return nil, ErrBulkheadFull
		}
	} else {
		waitCtx, cancel := context.WithTimeout(ctx, b.config.MaxWait)
		err := b.sem.Acquire(waitCtx, 1)
		cancel()
		if err != nil {
			b.rejected.Inc()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrBulkheadFull
		}
	}
	defer b.sem.Release(1)

	return op(ctx)
}

// Rejected returns the number of calls turned away at capacity.
func (b *Bulkhead) Rejected() int64 {
	return b.rejected.Load()
}
