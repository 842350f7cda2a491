package observability

import (
	"context"
	"sync"
	"testing"
)

type stubSpan struct {
	name   string
	events []string
}

func (s *stubSpan) End()                                 {}
func (s *stubSpan) SetAttributes(...Attribute)           {}
func (s *stubSpan) SetStatus(StatusCode, string)         {}
func (s *stubSpan) RecordError(error)                    {}
func (s *stubSpan) AddEvent(name string, _ ...Attribute) { s.events = append(s.events, name) }

type stubObserver struct{ label string }

func (s *stubObserver) StartSpan(ctx context.Context, name string, _ ...Attribute) (context.Context, Span) {
	span := &stubSpan{name: name}
	return ContextWithSpan(ctx, span), span
}
func (s *stubObserver) Counter(string) Counter                      { return nil }
func (s *stubObserver) Trace(context.Context, string, ...Attribute) {}
func (s *stubObserver) Debug(context.Context, string, ...Attribute) {}
func (s *stubObserver) Info(context.Context, string, ...Attribute)  {}
func (s *stubObserver) Warn(context.Context, string, ...Attribute)  {}
func (s *stubObserver) Error(context.Context, string, ...Attribute) {}

// TestSpanFromContext_Empty_ReturnsNil verifies a bare context carries no span.
func TestSpanFromContext_Empty_ReturnsNil(t *testing.T) {
	if span := SpanFromContext(context.Background()); span != nil {
		t.Errorf("expected nil span, got %v", span)
	}
	//nolint:staticcheck // nil context is accepted on purpose
	if span := SpanFromContext(nil); span != nil {
		t.Errorf("expected nil span from nil context, got %v", span)
	}
}

// TestContextWithSpan_Overwrite_InnermostWins verifies nested attachment.
func TestContextWithSpan_Overwrite_InnermostWins(t *testing.T) {
	outer := &stubSpan{name: "outer"}
	inner := &stubSpan{name: "inner"}

	ctx := ContextWithSpan(context.Background(), outer)
	nested := ContextWithSpan(ctx, inner)

	if SpanFromContext(ctx) != outer {
		t.Error("parent context lost its span")
	}
	if SpanFromContext(nested) != inner {
		t.Error("nested context should return the inner span")
	}
}

// TestContextWithSpan_Concurrent_ReadsAreSafe verifies concurrent lookups.
func TestContextWithSpan_Concurrent_ReadsAreSafe(t *testing.T) {
	span := &stubSpan{name: "shared"}
	ctx := ContextWithSpan(context.Background(), span)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if SpanFromContext(ctx) != span {
				t.Error("unexpected span")
			}
		}()
	}
	wg.Wait()
}

// TestContextWithObserver_RoundTrip verifies the observer survives the context.
func TestContextWithObserver_RoundTrip(t *testing.T) {
	observer := &stubObserver{label: "cli"}
	ctx := ContextWithObserver(context.Background(), observer)

	got, ok := ObserverFromContext(ctx).(*stubObserver)
	if !ok {
		t.Fatalf("expected *stubObserver, got %T", ObserverFromContext(ctx))
	}
	if got.label != "cli" {
		t.Errorf("expected label cli, got %q", got.label)
	}
	if ObserverFromContext(context.Background()) != nil {
		t.Error("expected nil observer on bare context")
	}
}
