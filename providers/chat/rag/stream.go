package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/leofalp/chatmux/internal/sse"
	"github.com/leofalp/chatmux/internal/utils"
	"github.com/leofalp/chatmux/providers/chat"
	"github.com/leofalp/chatmux/providers/observability"
)

const (
	frameStart   = "start"
	frameContent = "content"
	frameEnd     = "end"
	frameError   = "error"
)

// SendMessage implements [chat.Provider]. A missing knowledge base is
// rejected before any request is made. Content frames arrive as deltas and are
// emitted cumulatively; the end event prefers the answer and file-level
// sources reported by the service.
func (p *RAGProvider) SendMessage(ctx context.Context, request chat.SendRequest) (*chat.Reply, error) {
	if request.Scope.KnowledgeBaseID == 0 {
		return nil, chat.ErrMissingKnowledgeBase
	}
	if len(request.Files) > 0 {
		return nil, fmt.Errorf("%w: %s", chat.ErrFilesUnsupported, chat.ProviderRAG)
	}
	endpoint := p.snapshot(ctx, request.Scope)

	maxChunks := request.Scope.MaxChunks
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	payload := askRequest{
		KnowledgeBaseID: request.Scope.KnowledgeBaseID,
		Question:        request.Content,
		MaxChunks:       maxChunks,
		Stream:          true,
	}
	if request.ProviderConvID != "" {
		payload.ConversationID = &request.ProviderConvID
	}

	if observer := observability.ObserverFromContext(ctx); observer != nil {
		observer.Trace(ctx, "RAG provider preparing streaming request",
			observability.String(observability.AttrChatEndpoint, endpoint.BaseURL),
			observability.Int64(observability.AttrChatKnowledgeBaseID, payload.KnowledgeBaseID),
			observability.Int("rag.max_chunks", maxChunks),
		)
	}

	response, err := utils.DoPostStream(ctx, p.client, utils.JoinURL(endpoint.BaseURL, askEndpoint), endpoint.APIKey, payload)
	if err != nil {
		return nil, translateError(ctx, err)
	}
	defer utils.CloseWithLog(response.Body)

	return consumeStream(ctx, sse.NewDecoder(response.Body), request)
}

func consumeStream(ctx context.Context, decoder *sse.Decoder, request chat.SendRequest) (*chat.Reply, error) {
	reply := &chat.Reply{ConversationID: request.ProviderConvID}
	var answer strings.Builder
	events := 0

	for event, err := range sse.DecodeJSON[streamPayload](ctx, decoder.Frames(), sse.DialectTyped) {
		if ctx.Err() != nil {
			return nil, chat.Interrupted(ctx, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("read answer stream: %w", err)
		}

		payload := event.Value
		if id := stringify(payload.MessageID); id != "" {
			reply.MessageID = id
		}

		switch event.Kind {
		case frameStart:
			if id := stringify(payload.ConversationID); id != "" {
				reply.ConversationID = id
			}
			events++
			request.Emit(chat.StreamEvent{Type: chat.EventStart, ConversationID: reply.ConversationID})

		case frameContent:
			answer.WriteString(payload.Content)
			events++
			request.Emit(chat.StreamEvent{
				Type:           chat.EventContent,
				Content:        answer.String(),
				ConversationID: reply.ConversationID,
			})

		case frameEnd:
			reply.Content = payload.Answer
			if reply.Content == "" {
				reply.Content = answer.String()
			}
			reply.Sources = payload.SourcesFileDetail
			if len(reply.Sources) == 0 {
				reply.Sources = payload.Sources
			}
			reply.Sources = normalizeSources(reply.Sources)
			events++
			request.Emit(chat.StreamEvent{
				Type:           chat.EventEnd,
				Content:        reply.Content,
				MessageID:      reply.MessageID,
				ConversationID: reply.ConversationID,
				Sources:        reply.Sources,
			})
			recordStreamEnd(ctx, events, reply)
			return reply, nil

		case frameError:
			message := payload.Message
			if message == "" {
				message = "stream error occurred"
			}
			return nil, fmt.Errorf("%w: %s", chat.ErrStream, message)
		}
	}

	if ctx.Err() != nil {
		return nil, chat.Interrupted(ctx, nil)
	}

	reply.Content = answer.String()
	events++
	request.Emit(chat.StreamEvent{
		Type:           chat.EventEnd,
		Content:        reply.Content,
		MessageID:      reply.MessageID,
		ConversationID: reply.ConversationID,
	})
	recordStreamEnd(ctx, events, reply)
	return reply, nil
}

func recordStreamEnd(ctx context.Context, events int, reply *chat.Reply) {
	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventStreamEnded,
			observability.Int(observability.AttrStreamEvents, events),
			observability.Int(observability.AttrChatContentLength, len(reply.Content)),
			observability.Int("rag.sources", len(reply.Sources)),
		)
	}
}
