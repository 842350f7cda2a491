package middleware

import (
	"context"
	"slices"
	"time"

	"github.com/leofalp/chatmux/core/client"
)

// NewTimeoutMiddleware creates a Middleware that bounds provider calls with a
// deadline. When operations are given only those calls are bounded; a send
// bounded this way is cut off once the deadline passes even mid-stream.
//
// If the caller supplies a context that already has a shorter deadline, that
// shorter deadline wins as per normal context semantics.
func NewTimeoutMiddleware(timeout time.Duration, operations ...client.Operation) client.Middleware {
	return func(next client.CallFunc) client.CallFunc {
		return func(ctx context.Context, call client.Call) error {
			if len(operations) > 0 && !slices.Contains(operations, call.Operation) {
				return next(ctx, call)
			}

			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return next(ctx, call)
		}
	}
}
