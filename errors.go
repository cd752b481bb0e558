package throttlego

import "errors"

// ErrInvalidConfig is returned by constructors when a window, interval or
// request limit is not positive, or when the algorithm name is unknown.
var ErrInvalidConfig = errors.New("invalid rate limiter configuration")
