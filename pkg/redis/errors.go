package redis

import "errors"

var (
	// ErrEmptyConnectionURL is returned by Connect when REDIS_URL is unset.
	ErrEmptyConnectionURL = errors.New("redis: connection url is empty")

	// ErrInvalidURL wraps the go-redis parse error for a malformed REDIS_URL.
	ErrInvalidURL = errors.New("redis: invalid connection url")

	// ErrNotReady is returned when every connection attempt failed.
	ErrNotReady = errors.New("redis: server unreachable after all attempts")

	ErrHealthcheckFailed = errors.New("redis: ping failed")
)
