package client

import (
	"context"
	"errors"
	"time"

	"github.com/leofalp/chatmux/providers/chat"
	"github.com/leofalp/chatmux/providers/observability"
)

// MetricClientRequestCount counts provider calls by operation and outcome.
const MetricClientRequestCount = "chatmux.client.requests"

var operationSpans = map[Operation]string{
	OpListConversations:  observability.SpanListConversations,
	OpGetMessages:        observability.SpanGetMessages,
	OpSendMessage:        observability.SpanSendMessage,
	OpDeleteConversation: observability.SpanDeleteConversation,
	OpFeedback:           observability.SpanFeedback,
}

// NewObservabilityMiddleware creates a Middleware that records a span, a
// request counter and a log entry for every provider call.
//
// Both the span and the observer are injected into the context before calling
// next, so that adapters can retrieve them via [observability.SpanFromContext]
// and [observability.ObserverFromContext].
//
// [New] prepends it to the chain when [WithObserver] is given, making it the
// outermost wrapper so it observes the final outcome after any retries.
func NewObservabilityMiddleware(observer observability.Provider) Middleware {
	return func(next CallFunc) CallFunc {
		return func(ctx context.Context, call Call) error {
			attrs := callAttributes(call)

			spanName, ok := operationSpans[call.Operation]
			if !ok {
				spanName = "chat." + string(call.Operation)
			}
			ctx, span := observer.StartSpan(ctx, spanName, attrs...)
			ctx = observability.ContextWithSpan(ctx, span)
			ctx = observability.ContextWithObserver(ctx, observer)

			observer.Debug(ctx, "chat call", attrs...)

			start := time.Now()
			err := next(ctx, call)
			elapsed := time.Since(start)

			outcome := observability.OutcomeSuccess
			switch {
			case err == nil:
				span.SetStatus(observability.StatusOK, "success")
				observer.Info(ctx, "chat call completed",
					append(attrs, observability.Duration("duration", elapsed))...,
				)
			case chat.IsCancelled(err):
				outcome = observability.OutcomeCancelled
				span.SetStatus(observability.StatusOK, "cancelled")
				observer.Info(ctx, "chat call cancelled",
					append(attrs, observability.Duration("duration", elapsed))...,
				)
			default:
				outcome = observability.OutcomeError
				if errors.Is(err, chat.ErrTimeout) {
					outcome = observability.OutcomeTimeout
				}
				span.RecordError(err)
				span.SetStatus(observability.StatusError, "chat call failed")
				observer.Error(ctx, "chat call failed",
					append(attrs,
						observability.Error(err),
						observability.String(observability.AttrChatOutcome, outcome),
						observability.Duration("duration", elapsed),
					)...,
				)
			}
			span.SetAttributes(observability.String(observability.AttrChatOutcome, outcome))
			span.End()

			observer.Counter(MetricClientRequestCount).Add(ctx, 1,
				observability.String("operation", string(call.Operation)),
				observability.String(observability.AttrStatus, outcome),
			)

			return err
		}
	}
}

func callAttributes(call Call) []observability.Attribute {
	attrs := []observability.Attribute{
		observability.String("operation", string(call.Operation)),
	}
	if call.Provider != nil {
		attrs = append(attrs, observability.String(observability.AttrChatProvider, string(call.Provider.ID())))
	}
	if call.ProviderConvID != "" {
		attrs = append(attrs, observability.String(observability.AttrChatConversationID, call.ProviderConvID))
	}
	if call.Scope.AgentID != "" {
		attrs = append(attrs, observability.String(observability.AttrChatAgentID, call.Scope.AgentID))
	}
	if call.Scope.KnowledgeBaseID != 0 {
		attrs = append(attrs, observability.Int64(observability.AttrChatKnowledgeBaseID, call.Scope.KnowledgeBaseID))
	}
	return attrs
}
