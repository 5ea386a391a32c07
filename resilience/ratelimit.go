package resilience

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Rate is the number of operations allowed per second.
	// Default: 100
	Rate float64

	// Burst is the maximum burst size.
	// Default: 10
	Burst int

	// WaitOnLimit waits for a token instead of failing immediately.
	// Default: false
	WaitOnLimit bool

	// MaxWait bounds the wait for a token when WaitOnLimit is set.
	// Default: 1 second
	MaxWait time.Duration
}

// RateLimiter gates operations through a token bucket. Exceeding the limit
// fails with a RateLimitError, which classifies as transient so retry
// layers back off rather than give up.
type RateLimiter struct {
	config  RateLimiterConfig
	limiter *rate.Limiter
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 100
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if config.MaxWait <= 0 {
		config.MaxWait = time.Second
	}

	return &RateLimiter{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
	}
}

// Allow reports whether one operation may proceed now.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Do runs op if the rate limit permits.
func (rl *RateLimiter) Do(ctx context.Context, op Operation) (any, error) {
	if rl.config.WaitOnLimit {
		waitCtx, cancel := context.WithTimeout(ctx, rl.config.MaxWait)
		defer cancel()
		if err := rl.limiter.Wait(waitCtx); err != nil {
			return nil, &RateLimitError{RetryAfter: rl.retryAfter()}
		}
		return op(ctx)
	}

	if !rl.limiter.Allow() {
		return nil, &RateLimitError{RetryAfter: rl.retryAfter()}
	}
	return op(ctx)
}

// retryAfter estimates when the next token becomes available.
func (rl *RateLimiter) retryAfter() time.Duration {
	if rl.config.Rate <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / rl.config.Rate)
}
