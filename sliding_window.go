package throttlego

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// The following block implements the sliding window algorithm

type SlidingWindowConfig struct {
	WindowSize  time.Duration `mapstructure:"windowSize" yaml:"windowSize"`
	MaxRequests int           `mapstructure:"maxRequests" yaml:"maxRequests"`
}

// SlidingWindowLimiter admits at most MaxRequests actions per key within any
// trailing WindowSize. Rejected RecordMessage calls are counted.
type SlidingWindowLimiter[K comparable] struct {
	config  SlidingWindowConfig
	clock   Clock
	logs    map[K]*list.List // deque of time.Time per key, oldest at the front
	blocked atomic.Int64
	mutex   sync.Mutex
}

func NewSlidingWindowLimiter[K comparable](config SlidingWindowConfig, opts ...Option) (*SlidingWindowLimiter[K], error) {
	if config.WindowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %s: %w", config.WindowSize, ErrInvalidConfig)
	}
	if config.MaxRequests <= 0 {
		return nil, fmt.Errorf("max requests must be positive, got %d: %w", config.MaxRequests, ErrInvalidConfig)
	}
	o := buildOptions(opts)
	return &SlidingWindowLimiter[K]{
		config: config,
		clock:  o.clock,
		logs:   make(map[K]*list.List),
	}, nil
}

func (sw *SlidingWindowLimiter[K]) Config() SlidingWindowConfig {
	return sw.config
}

// CanSendMessage reports whether key may act at the clock's current time.
func (sw *SlidingWindowLimiter[K]) CanSendMessage(key K) bool {
	return sw.CanSendMessageAt(key, sw.clock.Now())
}

// CanSendMessageAt reports whether key may act at now. It drops expired
// entries for key but records nothing. now must not go backwards for a key.
func (sw *SlidingWindowLimiter[K]) CanSendMessageAt(key K, now time.Time) bool {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	return sw.allowedLocked(key, now)
}

// RecordMessage stores an action for key if the window has room and
// reports whether it was admitted.
func (sw *SlidingWindowLimiter[K]) RecordMessage(key K) bool {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	now := sw.clock.Now()
	if !sw.allowedLocked(key, now) {
		sw.blocked.Inc()
		return false
	}

	logs, ok := sw.logs[key]
	if !ok {
		logs = list.New()
		sw.logs[key] = logs
	}
	logs.PushBack(now)
	return true
}

// TimeUntilNextAllowed returns how long key has to wait until the oldest
// counted action leaves the window. Zero means key may act now.
func (sw *SlidingWindowLimiter[K]) TimeUntilNextAllowed(key K) time.Duration {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	now := sw.clock.Now()
	if sw.allowedLocked(key, now) {
		return 0
	}
	oldest := sw.logs[key].Front().Value.(time.Time)
	return positive(oldest.Add(sw.config.WindowSize).Sub(now))
}

// BlockedRequestCount returns the number of rejected RecordMessage calls
// since the limiter was created.
func (sw *SlidingWindowLimiter[K]) BlockedRequestCount() int64 {
	return sw.blocked.Load()
}

// Occupancy returns how many actions are currently held for key,
// without expiring anything.
func (sw *SlidingWindowLimiter[K]) Occupancy(key K) int {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	if logs, ok := sw.logs[key]; ok {
		return logs.Len()
	}
	return 0
}

// TrackedKeys returns the number of keys holding at least one action.
func (sw *SlidingWindowLimiter[K]) TrackedKeys() int {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	return len(sw.logs)
}

func (sw *SlidingWindowLimiter[K]) allowedLocked(key K, now time.Time) bool {
	sw.cleanupLocked(key, now)
	logs, ok := sw.logs[key]
	return !ok || logs.Len() < sw.config.MaxRequests
}

// cleanupLocked removes outdated logs. An entry at exactly now-WindowSize
// is already outside the window.
func (sw *SlidingWindowLimiter[K]) cleanupLocked(key K, now time.Time) {
	logs, ok := sw.logs[key]
	if !ok {
		return
	}
	edgeTime := now.Add(-sw.config.WindowSize)
	for logs.Len() > 0 {
		front := logs.Front()
		if front.Value.(time.Time).After(edgeTime) {
			break
		}
		logs.Remove(front)
	}
	if logs.Len() == 0 {
		delete(sw.logs, key)
	}
}
