package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/leofalp/chatmux/core/client"
	"github.com/leofalp/chatmux/providers/chat"
)

// RetryConfig holds the tuning parameters for the retry middleware. Zero values
// are replaced with the defaults documented below when NewRetryMiddleware is called.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts after the first failure.
	// Default: 2.
	MaxRetries int

	// InitialBackoff is the wait duration before the first retry attempt.
	// Default: 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed backoff.
	// Default: 10s.
	MaxBackoff time.Duration

	// BackoffFactor is the exponential growth multiplier applied to InitialBackoff.
	// Default: 2.0.
	BackoffFactor float64

	// JitterFraction adds random noise in [0, JitterFraction * backoff].
	// Default: 0.1.
	JitterFraction float64

	// RetryableFunc returns true when an error should trigger a retry. The
	// default retries [chat.StatusError] values with status 429, 500, 502, 503
	// or 504.
	RetryableFunc func(error) bool
}

var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

func defaultRetryableFunc(err error) bool {
	var statusErr *chat.StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return retryableStatuses[statusErr.StatusCode]
}

func applyRetryDefaults(config *RetryConfig) {
	if config.MaxRetries == 0 {
		config.MaxRetries = 2
	}

	if config.InitialBackoff == 0 {
		config.InitialBackoff = 500 * time.Millisecond
	}

	if config.MaxBackoff == 0 {
		config.MaxBackoff = 10 * time.Second
	}

	if config.BackoffFactor == 0 {
		config.BackoffFactor = 2.0
	}

	if config.JitterFraction == 0 {
		config.JitterFraction = 0.1
	}

	if config.RetryableFunc == nil {
		config.RetryableFunc = defaultRetryableFunc
	}
}

// computeBackoff returns min(InitialBackoff * BackoffFactor^attempt, MaxBackoff) plus jitter.
func computeBackoff(config RetryConfig, attempt int) time.Duration {
	base := float64(config.InitialBackoff) * math.Pow(config.BackoffFactor, float64(attempt))
	if base > float64(config.MaxBackoff) {
		base = float64(config.MaxBackoff)
	}

	jitter := base * config.JitterFraction * rand.Float64() //nolint:gosec // non-cryptographic jitter
	return time.Duration(base + jitter)
}

// NewRetryMiddleware constructs a Middleware that retries failed idempotent
// calls according to config. Non-idempotent operations pass straight through.
//
// On exhaustion the returned error wraps both [ErrRetryExhausted] and the last
// provider error.
func NewRetryMiddleware(config RetryConfig) client.Middleware {
	applyRetryDefaults(&config)

	return func(next client.CallFunc) client.CallFunc {
		return func(ctx context.Context, call client.Call) error {
			if !call.Operation.Idempotent() {
				return next(ctx, call)
			}

			var lastErr error
			for attempt := 0; attempt <= config.MaxRetries; attempt++ {
				if attempt > 0 {
					timer := time.NewTimer(computeBackoff(config, attempt-1))
					select {
					case <-ctx.Done():
						timer.Stop()
						return chat.Interrupted(ctx, nil)
					case <-timer.C:
					}
				}

				err := next(ctx, call)
				if err == nil {
					return nil
				}

				lastErr = err
				if !config.RetryableFunc(err) {
					return err
				}
			}

			return fmt.Errorf("%w after %d retries: %w", ErrRetryExhausted, config.MaxRetries, lastErr)
		}
	}
}
