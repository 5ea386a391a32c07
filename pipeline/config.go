package pipeline

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/rescue/resilience"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "10ms" or "30s", or from a bare number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("pipeline: invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var secs float64
	if err := node.Decode(&secs); err != nil {
		return fmt.Errorf("pipeline: invalid duration value")
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// FileConfig is the YAML shape of executor settings.
//
//	retry:
//	  max_retries: 3
//	  base_delay: 10ms
//	  max_delay: 1s
//	  jitter: true
//	circuit:
//	  failure_threshold: 5
//	  reset_timeout: 30s
//	log_capacity: 100
type FileConfig struct {
	Retry struct {
		MaxRetries int      `yaml:"max_retries"`
		BaseDelay  Duration `yaml:"base_delay"`
		MaxDelay   Duration `yaml:"max_delay"`
		Jitter     bool     `yaml:"jitter"`
	} `yaml:"retry"`
	Circuit struct {
		FailureThreshold int      `yaml:"failure_threshold"`
		ResetTimeout     Duration `yaml:"reset_timeout"`
	} `yaml:"circuit"`
	LogCapacity int `yaml:"log_capacity"`
}

// LoadConfig reads and validates executor options from a YAML file.
// Omitted sections keep the defaults.
func LoadConfig(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("pipeline: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses executor options from YAML bytes.
func ParseConfig(data []byte) (Options, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Options{}, fmt.Errorf("pipeline: parse config: %w", err)
	}

	opts := DefaultOptions()
	if fc.Retry.MaxRetries != 0 || fc.Retry.BaseDelay != 0 || fc.Retry.MaxDelay != 0 {
		opts.Retry = resilience.RetryConfig{
			MaxRetries: fc.Retry.MaxRetries,
			Backoff: resilience.BackoffConfig{
				BaseDelay: time.Duration(fc.Retry.BaseDelay),
				MaxDelay:  time.Duration(fc.Retry.MaxDelay),
				Jitter:    fc.Retry.Jitter,
			},
		}
	}
	if fc.Circuit.FailureThreshold != 0 || fc.Circuit.ResetTimeout != 0 {
		opts.Circuit = resilience.CircuitConfig{
			FailureThreshold: fc.Circuit.FailureThreshold,
			ResetTimeout:     time.Duration(fc.Circuit.ResetTimeout),
		}
	}
	if fc.LogCapacity != 0 {
		opts.LogCapacity = fc.LogCapacity
	}

	if err := opts.Retry.Validate(); err != nil {
		return Options{}, err
	}
	if err := opts.Circuit.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}
