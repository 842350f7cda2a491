package demo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/leofalp/chatmux/providers/chat"
	"github.com/leofalp/chatmux/providers/observability"
)

// DefaultTypingRate emits one rune every 20ms.
const DefaultTypingRate = rate.Limit(50)

// Placeholders expanded in reply templates.
const (
	placeholderQuestion = "{question}"
	placeholderFiles    = "{files}"
)

var defaultReplies = []string{
	"<think>The user asked something and I should introduce myself.</think>\n\n" +
		"Hello! I am the demo assistant. You said: \"{question}\"{files}\n\nHappy to help!",
	"<think>This is demo mode, so I should explain how to enable the real backend.</think>\n\n" +
		"This is a demo reply. Configure DIFY_API_KEY in your .env file to talk to a real workflow.{files}",
	"<think>The user may want to know what I can do.</think>\n\n" +
		"I can answer questions, write code and summarise documents. Demo mode is active.{files}\n\n" +
		"**Main abilities:**\n- Conversation\n- Code writing and explanation\n- Document analysis",
}

var capabilities = chat.Capabilities{
	Streaming: true,
	Files: chat.FileCapabilities{
		Enabled:  true,
		Accept:   "image/*,.pdf,.doc,.docx,.txt,.md,.json,.csv,.xlsx,.xls",
		MaxCount: 10,
	},
	Feedback:   true,
	History:    true,
	Sources:    false,
	EditResend: true,
}

type conversation struct {
	record   chat.Conversation
	messages []chat.Message
}

// DemoProvider implements [chat.Provider] without any backend.
type DemoProvider struct {
	id         chat.ID
	replies    []string
	typingRate rate.Limit
	pick       func(n int) int

	mu            sync.Mutex
	conversations map[string]*conversation
	ratings       map[string]chat.Rating
}

var _ chat.Provider = (*DemoProvider)(nil)

// New returns a demo provider registered under the workflow provider id, with
// one canned welcome conversation in its history.
func New() *DemoProvider {
	provider := &DemoProvider{
		id:            chat.ProviderWorkflow,
		replies:       defaultReplies,
		typingRate:    DefaultTypingRate,
		pick:          rand.IntN,
		conversations: make(map[string]*conversation),
		ratings:       make(map[string]chat.Rating),
	}
	provider.seedHistory()
	return provider
}

// WithID registers the provider under a different id.
func (p *DemoProvider) WithID(id chat.ID) *DemoProvider {
	p.id = id
	return p
}

// WithReplies replaces the reply templates. "{question}" and "{files}" are
// expanded per send.
func (p *DemoProvider) WithReplies(replies ...string) *DemoProvider {
	p.replies = replies
	return p
}

// WithTypingRate sets how many runes are emitted per second; [rate.Inf]
// disables the delay.
func (p *DemoProvider) WithTypingRate(limit rate.Limit) *DemoProvider {
	p.typingRate = limit
	return p
}

// WithPicker replaces the random reply selection.
func (p *DemoProvider) WithPicker(pick func(n int) int) *DemoProvider {
	p.pick = pick
	return p
}

func (p *DemoProvider) ID() chat.ID { return p.id }

func (p *DemoProvider) Name() string { return "Demo assistant" }

func (p *DemoProvider) Capabilities() chat.Capabilities { return capabilities }

func (p *DemoProvider) seedHistory() {
	created := time.Now().Add(-time.Hour)
	welcome := &conversation{
		record: chat.Conversation{
			ID:              chat.LocalID(p.id, "welcome"),
			ProviderConvID:  "welcome",
			Provider:        p.id,
			Title:           "Welcome to demo mode",
			CreatedAt:       created,
			UpdatedAt:       created,
			IsHistoryImport: true,
		},
	}
	welcome.messages = exchange(p.id, "welcome_1", "What is this?",
		"A demo conversation. Configure an API key to reach a real backend.", created)
	p.conversations["welcome"] = welcome
}

func exchange(provider chat.ID, messageID, question, answer string, at time.Time) []chat.Message {
	return []chat.Message{
		{ID: chat.NewLocalID(), Role: chat.RoleUser, Content: question, MessageID: messageID + "_user", Status: chat.StatusFinal, Timestamp: at, Provider: provider},
		{ID: chat.NewLocalID(), Role: chat.RoleAssistant, Content: answer, MessageID: messageID, Status: chat.StatusFinal, Timestamp: at, Provider: provider},
	}
}

// ListConversations implements [chat.Provider].
func (p *DemoProvider) ListConversations(ctx context.Context, scope chat.Scope) ([]chat.Conversation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	conversations := make([]chat.Conversation, 0, len(p.conversations))
	for _, stored := range p.conversations {
		record := stored.record
		record.ID = chat.LocalID(p.id, record.ProviderConvID)
		record.Provider = p.id
		conversations = append(conversations, record)
	}
	return conversations, nil
}

// GetMessages implements [chat.Provider].
func (p *DemoProvider) GetMessages(ctx context.Context, providerConvID string, scope chat.Scope) ([]chat.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored, ok := p.conversations[providerConvID]
	if !ok {
		return nil, chat.ErrConversationNotFound
	}
	messages := slices.Clone(stored.messages)
	for index := range messages {
		if rating, rated := p.ratings[messages[index].MessageID]; rated {
			liked := rating == chat.RatingLike
			disliked := rating == chat.RatingDislike
			messages[index].Liked = &liked
			messages[index].Disliked = &disliked
		}
	}
	return messages, nil
}

// SendMessage implements [chat.Provider]. The reply is typed out through a
// rate limiter; cancelling ctx stops typing at the next rune.
func (p *DemoProvider) SendMessage(ctx context.Context, request chat.SendRequest) (*chat.Reply, error) {
	if len(p.replies) == 0 {
		return nil, fmt.Errorf("demo provider has no replies configured")
	}
	if observer := observability.ObserverFromContext(ctx); observer != nil {
		observer.Debug(ctx, "Demo provider answering without a backend",
			observability.String(observability.AttrChatProvider, string(p.id)),
		)
	}

	answer := p.render(request)
	conversationID := request.ProviderConvID
	if conversationID == "" {
		conversationID = "demo-" + chat.NewLocalID()
		request.Emit(chat.StreamEvent{Type: chat.EventStart, ConversationID: conversationID})
	}
	messageID := fmt.Sprintf("demo_%d", time.Now().UnixNano())

	limiter := rate.NewLimiter(p.typingRate, 1)
	var typed strings.Builder
	for _, character := range answer {
		if err := limiter.Wait(ctx); err != nil {
			return nil, chat.Interrupted(ctx, err)
		}
		typed.WriteRune(character)
		request.Emit(chat.StreamEvent{
			Type:           chat.EventContent,
			Content:        typed.String(),
			MessageID:      messageID,
			ConversationID: conversationID,
		})
	}
	if ctx.Err() != nil {
		return nil, chat.Interrupted(ctx, nil)
	}

	request.Emit(chat.StreamEvent{
		Type:           chat.EventEnd,
		Content:        answer,
		MessageID:      messageID,
		ConversationID: conversationID,
		Metadata:       map[string]any{"demo": true},
	})

	p.remember(conversationID, messageID, request.Content, answer)
	return &chat.Reply{
		Content:        answer,
		MessageID:      messageID,
		ConversationID: conversationID,
		Metadata:       map[string]any{"demo": true},
	}, nil
}

func (p *DemoProvider) render(request chat.SendRequest) string {
	template := p.replies[p.pick(len(p.replies))]

	files := ""
	if len(request.Files) > 0 {
		names := make([]string, 0, len(request.Files))
		for _, file := range request.Files {
			names = append(names, file.Name)
		}
		files = fmt.Sprintf("\n\nReceived %d file(s): %s", len(request.Files), strings.Join(names, ", "))
	}
	return strings.NewReplacer(placeholderQuestion, request.Content, placeholderFiles, files).Replace(template)
}

func (p *DemoProvider) remember(conversationID, messageID, question, answer string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	stored, ok := p.conversations[conversationID]
	if !ok {
		stored = &conversation{record: chat.Conversation{
			ProviderConvID: conversationID,
			Title:          question,
			CreatedAt:      now,
		}}
		p.conversations[conversationID] = stored
	}
	stored.record.UpdatedAt = now
	stored.messages = append(stored.messages, exchange(p.id, messageID, question, answer, now)...)
}

// DeleteConversation implements [chat.Provider]. Unknown conversations are
// not an error.
func (p *DemoProvider) DeleteConversation(ctx context.Context, providerConvID string, scope chat.Scope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.conversations, providerConvID)
	return nil
}

// Feedback implements [chat.Provider]. Ratings are kept in memory and
// reflected by [DemoProvider.GetMessages].
func (p *DemoProvider) Feedback(ctx context.Context, messageID string, rating chat.Rating, reason string, scope chat.Scope) error {
	if !rating.Valid() {
		return fmt.Errorf("%w: %q", chat.ErrInvalidRating, rating)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ratings[messageID] = rating
	return nil
}
