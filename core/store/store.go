package store

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/leofalp/chatmux/internal/utils"
	"github.com/leofalp/chatmux/providers/chat"
)

const (
	// TitleMaxRunes is how much of the first user message becomes the title.
	TitleMaxRunes = 30
	titleEllipsis = "..."

	// DefaultTitle names conversations until their first message.
	DefaultTitle = "New conversation"

	// historyTitle names imported conversations the backend left untitled.
	historyTitle = "History conversation"
)

var (
	// ErrStaleToken is returned to a send whose token was revoked by a newer
	// send or an abort.
	ErrStaleToken = errors.New("send token is no longer live")

	// ErrUnknownConversation is returned for ids the store does not hold.
	ErrUnknownConversation = errors.New("unknown conversation")

	// ErrUnknownMessage is returned for message ids not found in a conversation.
	ErrUnknownMessage = errors.New("unknown message")
)

// Store is a concurrency-safe in-memory conversation store.
type Store struct {
	mu            sync.RWMutex
	conversations []*chat.Conversation // most recently created first
	currentID     string
	lastError     string
	liveToken     uint64
	nextToken     uint64
	live          *Send
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// NewConversation creates an empty conversation for provider, places it first
// and makes it current.
func (s *Store) NewConversation(provider chat.ID) chat.Conversation {
	now := time.Now()
	conversation := &chat.Conversation{
		ID:        chat.NewLocalID(),
		Provider:  provider,
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		IsEmpty:   true,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = slices.Insert(s.conversations, 0, conversation)
	s.currentID = conversation.ID
	return snapshot(conversation)
}

// ImportHistory adds a backend conversation and makes it current. A
// conversation already held for the same provider and native id is reused
// instead, and imported reports false.
func (s *Store) ImportHistory(record chat.Conversation) (conversation chat.Conversation, imported bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.conversations {
		if existing.Provider == record.Provider && existing.ProviderConvID != "" && existing.ProviderConvID == record.ProviderConvID {
			s.currentID = existing.ID
			return snapshot(existing), false
		}
	}

	stored := record
	if stored.ID == "" {
		stored.ID = chat.LocalID(record.Provider, record.ProviderConvID)
	}
	if stored.Title == "" {
		stored.Title = historyTitle
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	stored.Messages = nil
	stored.IsEmpty = false
	stored.IsHistoryImport = true

	s.conversations = slices.Insert(s.conversations, 0, &stored)
	s.currentID = stored.ID
	return snapshot(&stored), true
}

// LoadHistoryMessages replaces a conversation's messages with history fetched
// from its provider. Loaded messages are always final.
func (s *Store) LoadHistoryMessages(conversationID string, messages []chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversation := s.find(conversationID)
	if conversation == nil {
		return ErrUnknownConversation
	}
	if s.live != nil && s.live.conversationID == conversationID {
		s.revoke()
	}

	loaded := make([]*chat.Message, 0, len(messages))
	for _, message := range messages {
		if message.ID == "" {
			message.ID = chat.NewLocalID()
		}
		if message.Provider == "" {
			message.Provider = conversation.Provider
		}
		message.Status = chat.StatusFinal
		loaded = append(loaded, &message)
	}
	conversation.Messages = loaded
	conversation.UpdatedAt = time.Now()
	return nil
}

// Delete removes a conversation locally. When it was current, the first
// remaining conversation becomes current.
func (s *Store) Delete(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := slices.IndexFunc(s.conversations, func(c *chat.Conversation) bool { return c.ID == conversationID })
	if index < 0 {
		return false
	}
	if s.live != nil && s.live.conversationID == conversationID {
		s.revoke()
	}
	s.conversations = slices.Delete(s.conversations, index, index+1)

	if s.currentID == conversationID {
		s.currentID = ""
		if len(s.conversations) > 0 {
			s.currentID = s.conversations[0].ID
		}
	}
	return true
}

// SetCurrent selects the current conversation.
func (s *Store) SetCurrent(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.find(conversationID) == nil {
		return ErrUnknownConversation
	}
	s.currentID = conversationID
	return nil
}

// Current returns a snapshot of the current conversation.
func (s *Store) Current() (chat.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conversation := s.find(s.currentID)
	if conversation == nil {
		return chat.Conversation{}, false
	}
	return snapshot(conversation), true
}

// Conversation returns a snapshot of one conversation.
func (s *Store) Conversation(conversationID string) (chat.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conversation := s.find(conversationID)
	if conversation == nil {
		return chat.Conversation{}, false
	}
	return snapshot(conversation), true
}

// Conversations returns snapshots of every conversation, most recently
// created first.
func (s *Store) Conversations() []chat.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chat.Conversation, 0, len(s.conversations))
	for _, conversation := range s.conversations {
		out = append(out, snapshot(conversation))
	}
	return out
}

// Like marks a message as liked.
func (s *Store) Like(conversationID, messageID string) error {
	return s.setFeedback(conversationID, messageID, boolPtr(true), boolPtr(false))
}

// Dislike marks a message as disliked.
func (s *Store) Dislike(conversationID, messageID string) error {
	return s.setFeedback(conversationID, messageID, boolPtr(false), boolPtr(true))
}

// ResetFeedback returns a message's feedback to unset.
func (s *Store) ResetFeedback(conversationID, messageID string) error {
	return s.setFeedback(conversationID, messageID, nil, nil)
}

func (s *Store) setFeedback(conversationID, messageID string, liked, disliked *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversation := s.find(conversationID)
	if conversation == nil {
		return ErrUnknownConversation
	}
	message := findMessage(conversation, messageID)
	if message == nil {
		return ErrUnknownMessage
	}
	message.Liked = liked
	message.Disliked = disliked
	conversation.UpdatedAt = time.Now()
	return nil
}

// SetError records a failure for the caller to surface.
func (s *Store) SetError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = message
}

// Error returns the last recorded failure, empty when none.
func (s *Store) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// ClearError resets the recorded failure.
func (s *Store) ClearError() {
	s.SetError("")
}

// Abort revokes the live send and finalises its placeholder as cancelled,
// keeping whatever content arrived. It reports whether a send was live.
func (s *Store) Abort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live == nil {
		return false
	}
	s.revoke()
	return true
}

// Sending reports whether a send is in flight.
func (s *Store) Sending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live != nil
}

// revoke cancels the live send. Callers hold s.mu.
func (s *Store) revoke() {
	live := s.live
	s.live = nil
	s.liveToken = 0
	if live == nil || live.state.terminal() {
		return
	}
	live.state = StateCancelled
	if conversation := s.find(live.conversationID); conversation != nil {
		if message := findMessage(conversation, live.messageID); message != nil {
			message.Status = chat.StatusFinal
		}
	}
}

func (s *Store) find(conversationID string) *chat.Conversation {
	if conversationID == "" {
		return nil
	}
	for _, conversation := range s.conversations {
		if conversation.ID == conversationID {
			return conversation
		}
	}
	return nil
}

func findMessage(conversation *chat.Conversation, messageID string) *chat.Message {
	for _, message := range conversation.Messages {
		if message.ID == messageID {
			return message
		}
	}
	return nil
}

// deriveTitle builds a title from the first user message.
func deriveTitle(content string) string {
	return utils.TruncateRunes(content, TitleMaxRunes, titleEllipsis)
}

// snapshot deep-copies a conversation so callers cannot mutate store state.
func snapshot(conversation *chat.Conversation) chat.Conversation {
	out := *conversation
	out.Messages = make([]*chat.Message, 0, len(conversation.Messages))
	for _, message := range conversation.Messages {
		copied := *message
		copied.Files = slices.Clone(message.Files)
		copied.Sources = slices.Clone(message.Sources)
		if message.Liked != nil {
			copied.Liked = boolPtr(*message.Liked)
		}
		if message.Disliked != nil {
			copied.Disliked = boolPtr(*message.Disliked)
		}
		out.Messages = append(out.Messages, &copied)
	}
	return out
}

func boolPtr(value bool) *bool {
	return &value
}
