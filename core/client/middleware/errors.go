package middleware

import "errors"

// ErrRetryExhausted is returned by the retry middleware when all attempts
// failed. It wraps the last provider error so callers can still match it with
// [errors.Is] / [errors.As].
var ErrRetryExhausted = errors.New("chatmux: all retry attempts exhausted")
