package throttlego

import (
	"fmt"
	"time"
)

// Algorithm names an admission policy.
type Algorithm string

const (
	AlgorithmSlidingWindow Algorithm = "sliding_window"
	AlgorithmInterval      Algorithm = "interval"
)

// Config selects and parameterizes a policy. Only the fields of the chosen
// algorithm are read.
type Config struct {
	Algorithm Algorithm `mapstructure:"algorithm" yaml:"algorithm"`
	// sliding window
	WindowSize  time.Duration `mapstructure:"windowSize" yaml:"windowSize"`
	MaxRequests int           `mapstructure:"maxRequests" yaml:"maxRequests"`
	// interval
	MinInterval time.Duration `mapstructure:"minInterval" yaml:"minInterval"`
}

// DefaultConfig allows one message per user every ten seconds.
func DefaultConfig() Config {
	return Config{
		Algorithm:   AlgorithmSlidingWindow,
		WindowSize:  10 * time.Second,
		MaxRequests: 1,
		MinInterval: 10 * time.Second,
	}
}

// New builds the limiter described by config.
func New(config Config, opts ...Option) (MessageLimiter[string], error) {
	switch config.Algorithm {
	case AlgorithmSlidingWindow:
		limiter, err := NewSlidingWindowLimiter[string](SlidingWindowConfig{
			WindowSize:  config.WindowSize,
			MaxRequests: config.MaxRequests,
		}, opts...)
		if err != nil {
			return nil, err
		}
		return limiter, nil
	case AlgorithmInterval:
		limiter, err := NewIntervalLimiter[string](IntervalConfig{MinInterval: config.MinInterval}, opts...)
		if err != nil {
			return nil, err
		}
		return limiter, nil
	}
	return nil, fmt.Errorf("unknown algorithm %q: %w", config.Algorithm, ErrInvalidConfig)
}
