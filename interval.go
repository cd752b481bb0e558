package throttlego

import (
	"fmt"
	"sync"
	"time"
)

// The following code block implements throttling by minimum interval

type IntervalConfig struct {
	MinInterval time.Duration `mapstructure:"minInterval" yaml:"minInterval"`
}

// IntervalLimiter admits an action for a key only when at least MinInterval
// has passed since the key's last admitted action. A key that never acted
// is always admitted.
type IntervalLimiter[K comparable] struct {
	config     IntervalConfig
	clock      Clock
	lastAction map[K]time.Time
	mu         sync.Mutex
}

func NewIntervalLimiter[K comparable](config IntervalConfig, opts ...Option) (*IntervalLimiter[K], error) {
	if config.MinInterval <= 0 {
		return nil, fmt.Errorf("min interval must be positive, got %s: %w", config.MinInterval, ErrInvalidConfig)
	}
	o := buildOptions(opts)
	return &IntervalLimiter[K]{
		config:     config,
		clock:      o.clock,
		lastAction: make(map[K]time.Time),
	}, nil
}

func (il *IntervalLimiter[K]) Config() IntervalConfig {
	return il.config
}

func (il *IntervalLimiter[K]) CanSendMessage(key K) bool {
	return il.CanSendMessageAt(key, il.clock.Now())
}

func (il *IntervalLimiter[K]) CanSendMessageAt(key K, now time.Time) bool {
	il.mu.Lock()
	defer il.mu.Unlock()

	return il.allowedLocked(key, now)
}

// RecordMessage reads the clock again and stores it as the key's last
// action if the interval has passed.
func (il *IntervalLimiter[K]) RecordMessage(key K) bool {
	il.mu.Lock()
	defer il.mu.Unlock()

	now := il.clock.Now()
	if !il.allowedLocked(key, now) {
		return false
	}
	il.lastAction[key] = now
	return true
}

func (il *IntervalLimiter[K]) TimeUntilNextAllowed(key K) time.Duration {
	il.mu.Lock()
	defer il.mu.Unlock()

	last, ok := il.lastAction[key]
	if !ok {
		return 0
	}
	return positive(il.config.MinInterval - il.clock.Now().Sub(last))
}

// LastMessageAt returns the time of the key's last admitted action.
func (il *IntervalLimiter[K]) LastMessageAt(key K) (time.Time, bool) {
	il.mu.Lock()
	defer il.mu.Unlock()

	last, ok := il.lastAction[key]
	return last, ok
}

func (il *IntervalLimiter[K]) TrackedKeys() int {
	il.mu.Lock()
	defer il.mu.Unlock()

	return len(il.lastAction)
}

func (il *IntervalLimiter[K]) allowedLocked(key K, now time.Time) bool {
	last, ok := il.lastAction[key]
	return !ok || now.Sub(last) >= il.config.MinInterval
}
