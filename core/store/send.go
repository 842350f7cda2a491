package store

import (
	"context"
	"errors"
	"time"

	"github.com/leofalp/chatmux/providers/chat"
)

// State is the lifecycle position of one send.
type State string

const (
	StateIdle      State = "idle"
	StateSending   State = "sending"
	StateStreaming State = "streaming"
	StateFinalized State = "finalized"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

func (state State) terminal() bool {
	return state == StateFinalized || state == StateCancelled || state == StateFailed
}

// Token identifies the live send. Zero is never live.
type Token uint64

// Send is the handle for one in-flight send. Its methods are safe to call
// from the goroutine consuming the stream while others read the store.
type Send struct {
	store          *Store
	token          uint64
	conversationID string
	userMessageID  string
	messageID      string
	state          State
}

// BeginSend appends the user message and a partial assistant placeholder to
// conversationID, revokes any previous send and returns the new live handle.
// Any partial message left in the conversation is finalised first.
func (s *Store) BeginSend(conversationID, content string, files []chat.File) (*Send, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversation := s.find(conversationID)
	if conversation == nil {
		return nil, ErrUnknownConversation
	}

	s.revoke()
	for _, message := range conversation.Messages {
		message.Status = chat.StatusFinal
	}

	now := time.Now()
	firstUserMessage := true
	for _, message := range conversation.Messages {
		if message.Role == chat.RoleUser {
			firstUserMessage = false
			break
		}
	}

	user := &chat.Message{
		ID:        chat.NewLocalID(),
		Role:      chat.RoleUser,
		Content:   content,
		Files:     files,
		Status:    chat.StatusFinal,
		Timestamp: now,
		Provider:  conversation.Provider,
	}
	assistant := &chat.Message{
		ID:        chat.NewLocalID(),
		Role:      chat.RoleAssistant,
		Status:    chat.StatusPartial,
		Timestamp: now,
		Provider:  conversation.Provider,
	}
	conversation.Messages = append(conversation.Messages, user, assistant)
	conversation.UpdatedAt = now
	conversation.IsEmpty = false
	if firstUserMessage && !conversation.IsHistoryImport {
		conversation.Title = deriveTitle(content)
	}

	s.nextToken++
	send := &Send{
		store:          s,
		token:          s.nextToken,
		conversationID: conversationID,
		userMessageID:  user.ID,
		messageID:      assistant.ID,
		state:          StateSending,
	}
	s.live = send
	s.liveToken = send.token
	return send, nil
}

// Token returns the handle's token.
func (send *Send) Token() Token { return Token(send.token) }

// ConversationID returns the local id of the conversation being answered.
func (send *Send) ConversationID() string { return send.conversationID }

// UserMessageID returns the local id of the user message.
func (send *Send) UserMessageID() string { return send.userMessageID }

// MessageID returns the local id of the assistant placeholder.
func (send *Send) MessageID() string { return send.messageID }

// State returns the send's lifecycle state.
func (send *Send) State() State {
	send.store.mu.RLock()
	defer send.store.mu.RUnlock()
	return send.state
}

// Apply folds one stream event into the placeholder. Content events replace
// the text; the end event finalises it. Events reaching a revoked or finished
// send are ignored and return ErrStaleToken.
func (send *Send) Apply(event chat.StreamEvent) error {
	s := send.store
	s.mu.Lock()
	defer s.mu.Unlock()

	conversation, message, err := send.target()
	if err != nil {
		return err
	}

	now := time.Now()
	if event.ConversationID != "" && conversation.ProviderConvID == "" {
		conversation.ProviderConvID = event.ConversationID
	}
	if event.MessageID != "" {
		message.MessageID = event.MessageID
	}

	switch event.Type {
	case chat.EventStart:
		send.state = StateStreaming

	case chat.EventContent:
		message.Content = event.Content
		send.state = StateStreaming

	case chat.EventEnd:
		if event.Content != "" || message.Content == "" {
			message.Content = event.Content
		}
		if len(event.Sources) > 0 {
			message.Sources = event.Sources
		}
		if len(event.Metadata) > 0 {
			message.Metadata = event.Metadata
		}
		message.Status = chat.StatusFinal
		send.state = StateFinalized
	}
	conversation.UpdatedAt = now
	return nil
}

// Finish settles the send with the adapter's outcome. A nil error finalises
// the placeholder even if no end event arrived; a cancellation keeps the
// partial content without flagging an error; any other error marks the
// message and the store as failed. Finishing a send that already reached a
// terminal state through an end event is a no-op.
func (send *Send) Finish(outcome error) error {
	s := send.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if send.state == StateFinalized && s.live == send {
		s.live = nil
		s.liveToken = 0
		return nil
	}

	conversation, message, err := send.target()
	if err != nil {
		return err
	}
	defer func() {
		s.live = nil
		s.liveToken = 0
	}()

	message.Status = chat.StatusFinal
	conversation.UpdatedAt = time.Now()

	switch {
	case outcome == nil:
		send.state = StateFinalized
	case chat.IsCancelled(outcome), errors.Is(outcome, context.Canceled):
		send.state = StateCancelled
	default:
		send.state = StateFailed
		message.Error = outcome.Error()
		s.lastError = outcome.Error()
	}
	return nil
}

// target resolves the conversation and placeholder. Callers hold store.mu.
func (send *Send) target() (*chat.Conversation, *chat.Message, error) {
	s := send.store
	if send.token != s.liveToken || send.state.terminal() {
		return nil, nil, ErrStaleToken
	}
	conversation := s.find(send.conversationID)
	if conversation == nil {
		return nil, nil, ErrUnknownConversation
	}
	message := findMessage(conversation, send.messageID)
	if message == nil {
		return nil, nil, ErrUnknownMessage
	}
	return conversation, message, nil
}
