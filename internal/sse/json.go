package sse

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"

	"github.com/kaptinlin/jsonrepair"
	"github.com/leofalp/chatmux/internal/utils"
	"github.com/leofalp/chatmux/providers/observability"
)

// Event is a frame whose payload decoded into T.
type Event[T any] struct {
	Frame Frame
	// Kind is the discriminator resolved with the dialect passed to DecodeJSON.
	Kind  string
	Value T
}

// DecodeJSON decodes each frame's payload as JSON. Frames that fail to decode
// are dropped and decoding continues; the residual frame flushed at end of
// stream gets one repair attempt first. Transport errors from frames are
// passed through and end the sequence.
func DecodeJSON[T any](ctx context.Context, frames iter.Seq2[Frame, error], dialect Dialect) iter.Seq2[Event[T], error] {
	return func(yield func(Event[T], error) bool) {
		for frame, err := range frames {
			if err != nil {
				yield(Event[T]{}, err)
				return
			}

			value, ok := decodeFrame[T](ctx, &frame)
			if !ok {
				continue
			}
			if !yield(Event[T]{Frame: frame, Kind: frame.Kind(dialect), Value: value}, nil) {
				return
			}
		}
	}
}

func decodeFrame[T any](ctx context.Context, frame *Frame) (T, bool) {
	var value T
	err := json.Unmarshal([]byte(frame.Data), &value)
	if err == nil {
		return value, true
	}

	if frame.Residual {
		repaired, repairErr := jsonrepair.JSONRepair(frame.Data)
		if repairErr == nil {
			var repairedValue T
			if json.Unmarshal([]byte(repaired), &repairedValue) == nil {
				if span := observability.SpanFromContext(ctx); span != nil {
					span.AddEvent(observability.EventStreamFrameRepaired,
						observability.String(observability.AttrStreamPayload, utils.TruncateString(frame.Data, 200)),
					)
				}
				frame.Data = repaired
				return repairedValue, true
			}
		}
	}

	slog.Debug("dropping malformed stream frame",
		"error", err.Error(),
		"residual", frame.Residual,
		"payload", utils.TruncateString(frame.Data, 200),
	)
	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventStreamFrameDropped,
			observability.Error(err),
			observability.String(observability.AttrStreamPayload, utils.TruncateString(frame.Data, 200)),
		)
	}
	if observer := observability.ObserverFromContext(ctx); observer != nil {
		if counter := observer.Counter(observability.MetricStreamFramesDropped); counter != nil {
			counter.Add(ctx, 1)
		}
	}
	var zero T
	return zero, false
}
