package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/leofalp/chatmux/internal/sse"
	"github.com/leofalp/chatmux/internal/utils"
	"github.com/leofalp/chatmux/providers/chat"
	"github.com/leofalp/chatmux/providers/observability"
)

// Stream event names of the workflow dialect.
const (
	eventMessage        = "message"
	eventAgentMessage   = "agent_message"
	eventMessageReplace = "message_replace"
	eventMessageEnd     = "message_end"
	eventError          = "error"
)

// SendMessage implements [chat.Provider]. Attachments are uploaded first; the
// answer then streams as cumulative content events followed by one end event.
// A stream that closes without message_end still yields an end event with the
// text accumulated so far.
func (p *WorkflowProvider) SendMessage(ctx context.Context, request chat.SendRequest) (*chat.Reply, error) {
	if len(request.Files) > maxFileCount {
		return nil, fmt.Errorf("%w: %d given, at most %d", chat.ErrTooManyFiles, len(request.Files), maxFileCount)
	}
	endpoint, err := p.snapshot(ctx, request.Scope)
	if err != nil {
		return nil, err
	}

	observer := observability.ObserverFromContext(ctx)
	if observer != nil {
		observer.Trace(ctx, "Workflow provider preparing streaming request",
			observability.String(observability.AttrChatEndpoint, endpoint.BaseURL),
			observability.String(observability.AttrChatConversationID, request.ProviderConvID),
			observability.Int(observability.AttrChatContentLength, len(request.Content)),
		)
	}

	references, failures := p.uploadFiles(ctx, endpoint, request.Files)
	if ctx.Err() != nil {
		return nil, chat.Interrupted(ctx, nil)
	}
	if references == nil {
		references = []fileReference{}
	}

	payload := chatRequest{
		Inputs:         map[string]any{},
		Query:          request.Content,
		ResponseMode:   "streaming",
		ConversationID: request.ProviderConvID,
		User:           p.user,
		Files:          references,
	}

	response, err := utils.DoPostStream(ctx, p.client, utils.JoinURL(endpoint.BaseURL, chatMessagesEndpoint), endpoint.APIKey, payload)
	if err != nil {
		if observer != nil {
			observer.Trace(ctx, "Streaming HTTP request failed", observability.Error(err))
		}
		return nil, translateError(ctx, err)
	}
	defer utils.CloseWithLog(response.Body)

	reply, err := consumeStream(ctx, sse.NewDecoder(response.Body), request)
	if err != nil {
		return nil, err
	}
	reply.UploadFailures = failures
	return reply, nil
}

// consumeStream normalizes the event-dialect stream into cumulative events.
func consumeStream(ctx context.Context, decoder *sse.Decoder, request chat.SendRequest) (*chat.Reply, error) {
	reply := &chat.Reply{ConversationID: request.ProviderConvID}
	var answer answerBuffer
	started := request.ProviderConvID != ""
	events := 0

	emit := func(event chat.StreamEvent) {
		events++
		request.Emit(event)
	}

	for event, err := range sse.DecodeJSON[streamPayload](ctx, decoder.Frames(), sse.DialectEvent) {
		if ctx.Err() != nil {
			return nil, chat.Interrupted(ctx, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("read answer stream: %w", err)
		}

		payload := event.Value
		if payload.MessageID != "" {
			reply.MessageID = payload.MessageID
		}
		if payload.ConversationID != "" {
			reply.ConversationID = payload.ConversationID
			if !started {
				started = true
				emit(chat.StreamEvent{Type: chat.EventStart, ConversationID: reply.ConversationID})
			}
		}

		switch event.Kind {
		case eventMessage, eventAgentMessage:
			answer.add(payload.Answer)
			emit(chat.StreamEvent{
				Type:           chat.EventContent,
				Content:        answer.String(),
				MessageID:      reply.MessageID,
				ConversationID: reply.ConversationID,
			})

		case eventMessageReplace:
			answer.replace(payload.Answer)
			emit(chat.StreamEvent{
				Type:           chat.EventContent,
				Content:        answer.String(),
				MessageID:      reply.MessageID,
				ConversationID: reply.ConversationID,
			})

		case eventMessageEnd:
			reply.Content = answer.String()
			reply.Metadata = payload.Metadata
			emit(chat.StreamEvent{
				Type:           chat.EventEnd,
				Content:        reply.Content,
				MessageID:      reply.MessageID,
				ConversationID: reply.ConversationID,
				Metadata:       reply.Metadata,
			})
			recordStreamEnd(ctx, events, reply)
			return reply, nil

		case eventError:
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
	emit(chat.StreamEvent{
		Type:           chat.EventEnd,
		Content:        reply.Content,
		MessageID:      reply.MessageID,
		ConversationID: reply.ConversationID,
	})
	recordStreamEnd(ctx, events, reply)
	return reply, nil
}

type answerMode int

const (
	modeUnknown answerMode = iota
	modeDelta
	modeCumulative
)

// answerBuffer folds answer fragments into the running answer. Fragments are
// deltas unless one extends the whole running answer, which marks the stream
// as cumulative. Once a stream has shown a plain delta it stays in delta mode,
// so a later fragment that happens to repeat the answer is appended.
//
// The first two fragments remain ambiguous: "1" followed by "12" reads as a
// snapshot and yields "12".
type answerBuffer struct {
	text strings.Builder
	mode answerMode
}

func (b *answerBuffer) add(fragment string) {
	if fragment == "" {
		return
	}
	current := b.text.String()
	if current == "" {
		b.text.WriteString(fragment)
		return
	}

	extends := strings.HasPrefix(fragment, current)
	switch {
	case b.mode == modeCumulative && extends:
		b.text.WriteString(fragment[len(current):])
	case b.mode == modeUnknown && extends && len(fragment) > len(current):
		b.mode = modeCumulative
		b.text.WriteString(fragment[len(current):])
	default:
		b.mode = modeDelta
		b.text.WriteString(fragment)
	}
}

func (b *answerBuffer) replace(text string) {
	b.text.Reset()
	b.text.WriteString(text)
}

func (b *answerBuffer) String() string {
	return b.text.String()
}

func recordStreamEnd(ctx context.Context, events int, reply *chat.Reply) {
	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventStreamEnded,
			observability.Int(observability.AttrStreamEvents, events),
			observability.Int(observability.AttrChatContentLength, len(reply.Content)),
			observability.String(observability.AttrChatMessageID, reply.MessageID),
		)
	}
}
