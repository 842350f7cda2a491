// Package middleware provides built-in middleware implementations for the
// chatmux client. Each middleware is constructed via a New* function that
// returns a [client.Middleware] ready to be passed to [client.WithMiddleware].
//
// # Available Middleware
//
//   - [NewRetryMiddleware]: Retries failed listing and history calls with
//     exponential backoff and jitter. Sends, deletes and feedback are never
//     retried because repeating them changes backend state.
//
//   - [NewTimeoutMiddleware]: Adds a per-call deadline via context.WithTimeout,
//     optionally restricted to some operations.
//
//   - [NewLoggingMiddleware]: Emits structured slog log entries before and
//     after every provider call, with three verbosity levels.
//
// # Usage
//
//	c, err := client.New(registry,
//	    client.WithMiddleware(
//	        middleware.NewTimeoutMiddleware(30*time.Second, client.OpListConversations, client.OpGetMessages),
//	        middleware.NewRetryMiddleware(middleware.RetryConfig{MaxRetries: 2}),
//	        middleware.NewLoggingMiddleware(slog.Default(), middleware.LogLevelStandard),
//	    ),
//	)
//
// Middlewares execute outermost-first: a call travels
//
//	Timeout → Retry → Logging → Provider
//
// and the result travels back in reverse.
package middleware
