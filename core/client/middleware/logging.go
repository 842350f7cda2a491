package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/leofalp/chatmux/core/client"
	"github.com/leofalp/chatmux/providers/chat"
)

// LogLevel controls how much detail the logging middleware emits per call.
type LogLevel int

const (
	// LogLevelMinimal logs the operation, provider and duration.
	LogLevelMinimal LogLevel = iota

	// LogLevelStandard adds the backend conversation id and agent.
	LogLevelStandard

	// LogLevelVerbose adds the knowledge base and retrieval depth and logs the
	// call start as well as its end.
	LogLevelVerbose
)

// NewLoggingMiddleware creates a Middleware that emits structured slog entries
// around every provider call. Cancellations are logged at info level.
//
// The logger parameter must not be nil. Use slog.Default() if you have not
// configured a custom logger.
func NewLoggingMiddleware(logger *slog.Logger, level LogLevel) client.Middleware {
	return func(next client.CallFunc) client.CallFunc {
		return func(ctx context.Context, call client.Call) error {
			attrs := buildCallAttrs(call, level)
			if level >= LogLevelVerbose {
				logger.DebugContext(ctx, "chat call", attrs...)
			}

			start := time.Now()
			err := next(ctx, call)
			attrs = append(attrs, slog.Duration("duration", time.Since(start)))

			switch {
			case err == nil:
				logger.InfoContext(ctx, "chat call completed", attrs...)
			case chat.IsCancelled(err):
				logger.InfoContext(ctx, "chat call cancelled", attrs...)
			case errors.Is(err, chat.ErrTimeout):
				logger.ErrorContext(ctx, "chat call timed out", append(attrs, slog.String("error", err.Error()))...)
			default:
				logger.ErrorContext(ctx, "chat call failed", append(attrs, slog.String("error", err.Error()))...)
			}
			return err
		}
	}
}

// buildCallAttrs returns slog attributes for a call, expanding detail
// according to the requested verbosity level.
func buildCallAttrs(call client.Call, level LogLevel) []any {
	attrs := []any{
		slog.String("operation", string(call.Operation)),
	}
	if call.Provider != nil {
		attrs = append(attrs, slog.String("provider", string(call.Provider.ID())))
	}

	if level >= LogLevelStandard {
		if call.ProviderConvID != "" {
			attrs = append(attrs, slog.String("conversation_id", call.ProviderConvID))
		}
		if call.Scope.AgentID != "" {
			attrs = append(attrs, slog.String("agent_id", call.Scope.AgentID))
		}
	}

	if level >= LogLevelVerbose {
		attrs = append(attrs,
			slog.Int64("knowledge_base_id", call.Scope.KnowledgeBaseID),
			slog.Int("max_chunks", call.Scope.MaxChunks),
		)
	}

	return attrs
}
