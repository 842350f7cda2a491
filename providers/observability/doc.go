// Package observability defines the interfaces and semantic conventions used
// for tracing, counting, and structured logging throughout chatmux.
//
// The central entry point is [Provider], which composes [Tracer], [Metrics],
// and [Logger] into a single injectable dependency. Callers propagate an active
// [Provider] and [Span] through a [context.Context] using [ContextWithObserver]
// and [ContextWithSpan]; adapters retrieve them with [ObserverFromContext] and
// [SpanFromContext] and skip all instrumentation when neither is present.
//
// The semconv.go file holds the attribute keys and event names shared by the
// chat adapters, the stream decoder, and the conversation store.
package observability
