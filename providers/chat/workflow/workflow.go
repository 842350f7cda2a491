package workflow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/leofalp/chatmux/internal/utils"
	"github.com/leofalp/chatmux/providers/chat"
	"github.com/leofalp/chatmux/providers/observability"
)

const (
	defaultBaseURL = "https://api.dify.ai/v1"

	// defaultUser is the end-user identifier sent when none is configured.
	defaultUser = "user-test"

	chatMessagesEndpoint  = "/chat-messages"
	conversationsEndpoint = "/conversations"
	messagesEndpoint      = "/messages"
	filesUploadEndpoint   = "/files/upload"

	conversationsPageLimit = 20
	messagesPageLimit      = 100

	// maxPages bounds pagination so a backend that always reports has_more
	// cannot loop forever.
	maxPages = 50
)

// WorkflowProvider implements [chat.Provider] for workflow chat applications.
// Use [New] to construct a ready-to-use instance.
type WorkflowProvider struct {
	endpoints *chat.EndpointResolver
	user      string
	client    *http.Client
}

var _ chat.Provider = (*WorkflowProvider)(nil)
var _ chat.Retargetable = (*WorkflowProvider)(nil)

// New returns a [WorkflowProvider] initialized from environment variables.
// DIFY_API_URL defaults to https://api.dify.ai/v1 and CHATMUX_USER to
// "user-test".
func New() *WorkflowProvider {
	baseURL := os.Getenv("DIFY_API_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	user := os.Getenv("CHATMUX_USER")
	if user == "" {
		user = defaultUser
	}

	return &WorkflowProvider{
		endpoints: chat.NewEndpointResolver(chat.Endpoint{
			BaseURL:  baseURL,
			APIKey:   os.Getenv("DIFY_API_KEY"),
			AppToken: os.Getenv("DIFY_APP_TOKEN"),
		}),
		user:   user,
		client: &http.Client{},
	}
}

// WithAPIKey sets the default API key and returns the provider so calls can be chained.
func (p *WorkflowProvider) WithAPIKey(apiKey string) *WorkflowProvider {
	endpoint := p.endpoints.Resolve("")
	endpoint.APIKey = apiKey
	p.endpoints.Retarget(endpoint)
	return p
}

// WithBaseURL overrides the default base URL and returns the provider so calls can be chained.
func (p *WorkflowProvider) WithBaseURL(baseURL string) *WorkflowProvider {
	endpoint := p.endpoints.Resolve("")
	endpoint.BaseURL = baseURL
	p.endpoints.Retarget(endpoint)
	return p
}

// WithHttpClient replaces the [http.Client] used for API calls.
func (p *WorkflowProvider) WithHttpClient(httpClient *http.Client) *WorkflowProvider {
	p.client = httpClient
	return p
}

// WithUser sets the end-user identifier sent with every request.
func (p *WorkflowProvider) WithUser(user string) *WorkflowProvider {
	p.user = user
	return p
}

// WithAgents registers per-agent endpoints selected through [chat.Scope.AgentID].
func (p *WorkflowProvider) WithAgents(agents ...chat.Agent) *WorkflowProvider {
	p.endpoints.SetAgents(agents)
	return p
}

// Retarget implements [chat.Retargetable].
func (p *WorkflowProvider) Retarget(endpoint chat.Endpoint) {
	p.endpoints.Retarget(endpoint)
}

// Endpoint returns the snapshot a call scoped to agentID would use.
func (p *WorkflowProvider) Endpoint(agentID string) chat.Endpoint {
	return p.endpoints.Resolve(agentID)
}

func (p *WorkflowProvider) ID() chat.ID { return chat.ProviderWorkflow }

func (p *WorkflowProvider) Name() string { return "Dify workflow" }

func (p *WorkflowProvider) Capabilities() chat.Capabilities { return capabilities }

// snapshot captures the endpoint for one call and annotates the active span.
func (p *WorkflowProvider) snapshot(ctx context.Context, scope chat.Scope) (chat.Endpoint, error) {
	endpoint := p.endpoints.Resolve(scope.AgentID)

	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrChatProvider, string(chat.ProviderWorkflow)),
			observability.String(observability.AttrChatEndpoint, endpoint.BaseURL),
			observability.String(observability.AttrChatAgentID, scope.AgentID),
		)
	}

	if endpoint.APIKey == "" {
		return endpoint, fmt.Errorf("%w: set DIFY_API_KEY", chat.ErrMissingAPIKey)
	}
	return endpoint, nil
}

// ListConversations implements [chat.Provider]. It follows the backend's
// last_id pagination until has_more is false.
func (p *WorkflowProvider) ListConversations(ctx context.Context, scope chat.Scope) ([]chat.Conversation, error) {
	endpoint, err := p.snapshot(ctx, scope)
	if err != nil {
		return nil, err
	}

	var conversations []chat.Conversation
	lastID := ""
	for page := 0; page < maxPages; page++ {
		query := url.Values{}
		query.Set("user", p.user)
		query.Set("limit", fmt.Sprint(conversationsPageLimit))
		if lastID != "" {
			query.Set("last_id", lastID)
		}

		requestURL := utils.JoinURL(endpoint.BaseURL, conversationsEndpoint) + "?" + query.Encode()
		_, list, err := utils.DoJSON[conversationList](ctx, p.client, http.MethodGet, requestURL, endpoint.APIKey, nil)
		if err != nil {
			return nil, fmt.Errorf("list conversations: %w", translateError(ctx, err))
		}

		for _, record := range list.Data {
			conversations = append(conversations, conversationFromRecord(record))
		}
		if !list.HasMore || len(list.Data) == 0 {
			break
		}
		lastID = list.Data[len(list.Data)-1].ID
	}
	return conversations, nil
}

func conversationFromRecord(record conversationRecord) chat.Conversation {
	title := record.Name
	if title == "" {
		title = "Untitled conversation"
	}
	createdAt := chat.ParseTimestamp(record.CreatedAt)
	updated := record.UpdatedAt
	if updated == nil {
		updated = record.CreatedAt
	}
	return chat.Conversation{
		ID:              chat.LocalID(chat.ProviderWorkflow, record.ID),
		ProviderConvID:  record.ID,
		Provider:        chat.ProviderWorkflow,
		Title:           title,
		CreatedAt:       createdAt,
		UpdatedAt:       chat.ParseTimestamp(updated),
		IsHistoryImport: true,
	}
}

// GetMessages implements [chat.Provider]. Each backend record expands into a
// user message followed by an assistant message sharing one timestamp. Older
// pages are fetched with first_id and prepended.
func (p *WorkflowProvider) GetMessages(ctx context.Context, providerConvID string, scope chat.Scope) ([]chat.Message, error) {
	endpoint, err := p.snapshot(ctx, scope)
	if err != nil {
		return nil, err
	}

	var records []messageRecord
	firstID := ""
	for page := 0; page < maxPages; page++ {
		query := url.Values{}
		query.Set("conversation_id", providerConvID)
		query.Set("user", p.user)
		query.Set("limit", fmt.Sprint(messagesPageLimit))
		if firstID != "" {
			query.Set("first_id", firstID)
		}

		requestURL := utils.JoinURL(endpoint.BaseURL, messagesEndpoint) + "?" + query.Encode()
		_, list, err := utils.DoJSON[messageList](ctx, p.client, http.MethodGet, requestURL, endpoint.APIKey, nil)
		if err != nil {
			return nil, fmt.Errorf("get messages: %w", translateError(ctx, err))
		}

		records = append(list.Data, records...)
		if !list.HasMore || len(list.Data) == 0 {
			break
		}
		firstID = list.Data[0].ID
	}

	messages := make([]chat.Message, 0, len(records)*2)
	for _, record := range records {
		user, assistant := expandRecord(record)
		messages = append(messages, user, assistant)
	}
	return messages, nil
}

// expandRecord splits one question/answer record into its two messages.
func expandRecord(record messageRecord) (chat.Message, chat.Message) {
	timestamp := chat.ParseTimestamp(record.CreatedAt)

	user := chat.Message{
		ID:        chat.NewLocalID(),
		Role:      chat.RoleUser,
		Content:   record.Query,
		MessageID: record.ID + "_user",
		Status:    chat.StatusFinal,
		Timestamp: timestamp,
		Provider:  chat.ProviderWorkflow,
	}
	for _, file := range record.MessageFiles {
		if file.BelongsTo == "" || file.BelongsTo == "user" {
			user.Files = append(user.Files, chat.File{Name: file.URL, ContentType: file.Type})
		}
	}

	assistant := chat.Message{
		ID:        chat.NewLocalID(),
		Role:      chat.RoleAssistant,
		Content:   record.Answer,
		MessageID: record.ID,
		Status:    chat.StatusFinal,
		Timestamp: timestamp,
		Provider:  chat.ProviderWorkflow,
	}
	if record.Feedback != nil && record.Feedback.Rating != "" {
		liked := record.Feedback.Rating == string(chat.RatingLike)
		disliked := record.Feedback.Rating == string(chat.RatingDislike)
		assistant.Liked = &liked
		assistant.Disliked = &disliked
		assistant.Metadata = map[string]any{"feedback": record.Feedback.Rating}
	}
	return user, assistant
}

// DeleteConversation implements [chat.Provider].
func (p *WorkflowProvider) DeleteConversation(ctx context.Context, providerConvID string, scope chat.Scope) error {
	endpoint, err := p.snapshot(ctx, scope)
	if err != nil {
		return err
	}

	requestURL := utils.JoinURL(endpoint.BaseURL, conversationsEndpoint+"/"+url.PathEscape(providerConvID))
	_, _, err = utils.DoJSON[map[string]any](ctx, p.client, http.MethodDelete, requestURL, endpoint.APIKey, userRequest{User: p.user})
	if err != nil {
		return fmt.Errorf("delete conversation: %w", translateError(ctx, err))
	}
	return nil
}

// Feedback implements [chat.Provider].
func (p *WorkflowProvider) Feedback(ctx context.Context, messageID string, rating chat.Rating, reason string, scope chat.Scope) error {
	if !rating.Valid() {
		return fmt.Errorf("%w: %q", chat.ErrInvalidRating, rating)
	}
	endpoint, err := p.snapshot(ctx, scope)
	if err != nil {
		return err
	}

	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(observability.String(observability.AttrChatMessageID, messageID))
	}

	requestURL := utils.JoinURL(endpoint.BaseURL, messagesEndpoint+"/"+url.PathEscape(messageID)+"/feedbacks")
	body := feedbackRequest{Rating: string(rating), Content: reason, User: p.user}
	_, _, err = utils.DoJSON[map[string]any](ctx, p.client, http.MethodPost, requestURL, endpoint.APIKey, body)
	if err != nil {
		return fmt.Errorf("feedback: %w", translateError(ctx, err))
	}
	return nil
}
