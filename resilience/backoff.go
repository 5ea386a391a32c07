package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffConfig configures the exponential backoff sequence.
type BackoffConfig struct {
	// BaseDelay is the delay before the first retry. Must be > 0.
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries. Must be >= BaseDelay.
	MaxDelay time.Duration

	// Jitter multiplies each delay by a uniform factor in [0.5, 1.5) to
	// avoid synchronized retry storms across independent callers.
	Jitter bool
}

// Validate checks the backoff parameters.
func (c BackoffConfig) Validate() error {
	if c.BaseDelay <= 0 {
		return &ConfigError{Param: "base_delay", Reason: "must be positive"}
	}
	if c.MaxDelay < c.BaseDelay {
		return &ConfigError{Param: "max_delay", Reason: "must be >= base_delay"}
	}
	return nil
}

// Delay computes the backoff for a retry. Attempt 0 is the delay after the
// initial failed attempt.
//
// Formula: min(base * 2^attempt, max), optionally jittered.
func (c BackoffConfig) Delay(attempt int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(2, float64(attempt))
	if capped := float64(c.MaxDelay); d > capped {
		d = capped
	}

	if c.Jitter {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		d *= 0.5 + rand.Float64()
	}

	return time.Duration(d)
}
