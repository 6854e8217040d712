package rate

import "errors"

var (
	// ErrRateLimited is returned once a sign-in budget is used up.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis command failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
