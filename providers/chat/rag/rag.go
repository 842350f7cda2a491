package rag

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/leofalp/chatmux/internal/utils"
	"github.com/leofalp/chatmux/providers/chat"
	"github.com/leofalp/chatmux/providers/observability"
)

const (
	defaultBaseURL = "http://127.0.0.1:8080/api/v1"

	askEndpoint           = "/chat/ask"
	conversationsEndpoint = "/chat/conversations"
	filesEndpoint         = "/chat/files"

	// DefaultMaxChunks is the retrieval depth used when the scope leaves it unset.
	DefaultMaxChunks = 6
)

var capabilities = chat.Capabilities{
	Streaming:  true,
	Files:      chat.FileCapabilities{Enabled: false},
	Feedback:   false,
	History:    true,
	Sources:    true,
	EditResend: true,
}

// RAGProvider implements [chat.Provider] for the knowledge-base service.
type RAGProvider struct {
	endpoints *chat.EndpointResolver
	client    *http.Client
}

var (
	_ chat.Provider       = (*RAGProvider)(nil)
	_ chat.Retargetable   = (*RAGProvider)(nil)
	_ chat.SourceEnricher = (*RAGProvider)(nil)
)

// New returns a [RAGProvider] reading RAG_API_URL (default
// http://127.0.0.1:8080/api/v1) and the optional RAG_API_KEY bearer token.
func New() *RAGProvider {
	baseURL := os.Getenv("RAG_API_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &RAGProvider{
		endpoints: chat.NewEndpointResolver(chat.Endpoint{BaseURL: baseURL, APIKey: os.Getenv("RAG_API_KEY")}),
		client:    &http.Client{},
	}
}

// WithBaseURL overrides the base URL and returns the provider so calls can be chained.
func (p *RAGProvider) WithBaseURL(baseURL string) *RAGProvider {
	endpoint := p.endpoints.Resolve("")
	endpoint.BaseURL = baseURL
	p.endpoints.Retarget(endpoint)
	return p
}

// WithAPIKey sets an optional bearer token.
func (p *RAGProvider) WithAPIKey(apiKey string) *RAGProvider {
	endpoint := p.endpoints.Resolve("")
	endpoint.APIKey = apiKey
	p.endpoints.Retarget(endpoint)
	return p
}

// WithHttpClient replaces the [http.Client] used for API calls.
func (p *RAGProvider) WithHttpClient(httpClient *http.Client) *RAGProvider {
	p.client = httpClient
	return p
}

// Retarget implements [chat.Retargetable].
func (p *RAGProvider) Retarget(endpoint chat.Endpoint) {
	p.endpoints.Retarget(endpoint)
}

func (p *RAGProvider) ID() chat.ID { return chat.ProviderRAG }

func (p *RAGProvider) Name() string { return "Knowledge base (RAG)" }

func (p *RAGProvider) Capabilities() chat.Capabilities { return capabilities }

func (p *RAGProvider) snapshot(ctx context.Context, scope chat.Scope) chat.Endpoint {
	endpoint := p.endpoints.Resolve("")
	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrChatProvider, string(chat.ProviderRAG)),
			observability.String(observability.AttrChatEndpoint, endpoint.BaseURL),
			observability.Int64(observability.AttrChatKnowledgeBaseID, scope.KnowledgeBaseID),
		)
	}
	return endpoint
}

// ListConversations implements [chat.Provider]. Without a knowledge base in
// scope there is nothing to list and no request is made.
func (p *RAGProvider) ListConversations(ctx context.Context, scope chat.Scope) ([]chat.Conversation, error) {
	if scope.KnowledgeBaseID == 0 {
		return []chat.Conversation{}, nil
	}
	endpoint := p.snapshot(ctx, scope)

	requestURL := utils.JoinURL(endpoint.BaseURL, conversationsEndpoint+"/"+strconv.FormatInt(scope.KnowledgeBaseID, 10))
	_, records, err := utils.DoJSON[[]conversationRecord](ctx, p.client, http.MethodGet, requestURL, endpoint.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", translateError(ctx, err))
	}

	conversations := make([]chat.Conversation, 0, len(*records))
	for _, record := range *records {
		nativeID := record.SessionID
		if nativeID == "" {
			nativeID = stringify(record.ID)
		}
		if nativeID == "" {
			continue
		}
		conversations = append(conversations, conversationFromRecord(nativeID, record))
	}
	return conversations, nil
}

func conversationFromRecord(nativeID string, record conversationRecord) chat.Conversation {
	title := record.Title
	if title == "" {
		title = "Conversation " + utils.TruncateRunes(nativeID, 8, "")
	}
	created, updated := record.CreatedAt, record.UpdatedAt
	if created == nil {
		created = updated
	}
	if updated == nil {
		updated = created
	}
	return chat.Conversation{
		ID:              chat.LocalID(chat.ProviderRAG, nativeID),
		ProviderConvID:  nativeID,
		Provider:        chat.ProviderRAG,
		Title:           title,
		CreatedAt:       chat.ParseTimestamp(created),
		UpdatedAt:       chat.ParseTimestamp(updated),
		IsHistoryImport: true,
	}
}

// GetMessages implements [chat.Provider]. The backend stores user and
// assistant turns as separate records, so they map one to one.
func (p *RAGProvider) GetMessages(ctx context.Context, providerConvID string, scope chat.Scope) ([]chat.Message, error) {
	endpoint := p.snapshot(ctx, scope)

	requestURL := utils.JoinURL(endpoint.BaseURL, conversationsEndpoint+"/"+url.PathEscape(providerConvID)+"/messages")
	_, records, err := utils.DoJSON[[]messageRecord](ctx, p.client, http.MethodGet, requestURL, endpoint.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", translateError(ctx, err))
	}

	messages := make([]chat.Message, 0, len(*records))
	for _, record := range *records {
		role := chat.RoleAssistant
		if record.Role == string(chat.RoleUser) {
			role = chat.RoleUser
		}
		timestamp := record.CreatedAt
		if timestamp == nil {
			timestamp = record.UpdatedAt
		}
		messages = append(messages, chat.Message{
			ID:        chat.NewLocalID(),
			Role:      role,
			Content:   record.Content,
			Sources:   normalizeSources(record.SourceFiles),
			MessageID: stringify(record.ID),
			Status:    chat.StatusFinal,
			Metadata:  record.Metadata,
			Timestamp: chat.ParseTimestamp(timestamp),
			Provider:  chat.ProviderRAG,
		})
	}
	return messages, nil
}

// DeleteConversation implements [chat.Provider]. The service has no delete
// endpoint, so this succeeds without a request.
func (p *RAGProvider) DeleteConversation(context.Context, string, chat.Scope) error {
	return nil
}

// Feedback implements [chat.Provider]. The service has no feedback endpoint,
// so this succeeds without a request.
func (p *RAGProvider) Feedback(context.Context, string, chat.Rating, string, chat.Scope) error {
	return nil
}

// stringify renders JSON ids that may arrive as numbers or strings.
func stringify(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	}
	return fmt.Sprint(value)
}
