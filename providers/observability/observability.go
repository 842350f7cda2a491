package observability

import (
	"context"
	"time"
)

// Provider is the observer threaded through chat calls: spans around each
// operation, counters for stream and upload health, and structured logs.
type Provider interface {
	Tracer
	Metrics
	Logger
}

// Tracer opens a span per chat operation.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Span covers one operation, from request to the last stream frame.
type Span interface {
	End()
	SetAttributes(attrs ...Attribute)
	SetStatus(code StatusCode, description string)
	RecordError(err error)
	// AddEvent marks a point inside the operation, such as a repaired frame
	// or a failed upload.
	AddEvent(name string, attrs ...Attribute)
}

// StatusCode is the span status. A cancelled send ends with StatusOK.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// Outcome values recorded under [AttrChatOutcome].
const (
	OutcomeSuccess   = "success"
	OutcomeCancelled = "cancelled"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
)

// Metrics hands out named counters.
type Metrics interface {
	Counter(name string) Counter
}

// Counter only grows.
type Counter interface {
	Add(ctx context.Context, value int64, attrs ...Attribute)
}

// Logger writes leveled, structured records. Trace sits below Debug and is
// used for raw stream payloads.
type Logger interface {
	Trace(ctx context.Context, msg string, attrs ...Attribute)
	Debug(ctx context.Context, msg string, attrs ...Attribute)
	Info(ctx context.Context, msg string, attrs ...Attribute)
	Warn(ctx context.Context, msg string, attrs ...Attribute)
	Error(ctx context.Context, msg string, attrs ...Attribute)
}

// Attribute is one key/value pair attached to spans, counters and logs.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 is used for backend ids such as knowledge base numbers.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value}
}

// Error records err under the "error" key; nil yields an empty value.
func Error(err error) Attribute {
	if err == nil {
		return Attribute{Key: "error", Value: ""}
	}
	return Attribute{Key: "error", Value: err.Error()}
}
