package throttlego

import "time"

// MessageLimiter is the contract shared by every admission policy, so
// callers can swap a sliding window for an interval limiter.
type MessageLimiter[K comparable] interface {
	CanSendMessage(key K) bool
	RecordMessage(key K) bool
	TimeUntilNextAllowed(key K) time.Duration
}

var (
	_ MessageLimiter[string] = (*SlidingWindowLimiter[string])(nil)
	_ MessageLimiter[string] = (*IntervalLimiter[string])(nil)
)

// Option configures a limiter at construction time.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock replaces the system clock. A nil clock is ignored.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
