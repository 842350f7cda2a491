package chat

import "context"

// ID identifies a provider. IDs never contain an underscore, which separates
// the provider prefix from the native id in a [LocalID].
type ID string

const (
	// ProviderWorkflow is the Dify-style workflow backend.
	ProviderWorkflow ID = "dify"
	// ProviderRAG is the knowledge-base question answering backend.
	ProviderRAG ID = "rag"
)

// Provider is the uniform operation set every chat backend adapter satisfies.
// Capabilities are fixed per provider; callers gate features on them instead
// of probing at runtime.
type Provider interface {
	// ID returns the provider identifier used for registry lookup and id namespacing.
	ID() ID

	// Name returns a human readable provider name.
	Name() string

	// Capabilities returns the provider's fixed feature descriptor.
	Capabilities() Capabilities

	// ListConversations returns the backend's conversations with namespaced
	// local ids. Order is not guaranteed; use [SortConversations].
	ListConversations(ctx context.Context, scope Scope) ([]Conversation, error)

	// GetMessages returns the messages of one backend conversation in order.
	GetMessages(ctx context.Context, providerConvID string, scope Scope) ([]Message, error)

	// SendMessage sends content and streams the answer through request.OnEvent:
	// zero or more cumulative content events and exactly one end event on
	// success. Cancelling ctx stops emission and returns an error matching
	// [ErrCancelled].
	SendMessage(ctx context.Context, request SendRequest) (*Reply, error)

	// DeleteConversation deletes a backend conversation. Providers without
	// delete support succeed without any network call.
	DeleteConversation(ctx context.Context, providerConvID string, scope Scope) error

	// Feedback rates an assistant message. Providers without feedback support
	// succeed without any network call.
	Feedback(ctx context.Context, messageID string, rating Rating, reason string, scope Scope) error
}

// Retargetable is implemented by providers whose backend endpoint can be
// switched at runtime. Retarget replaces the default endpoint for calls that
// start afterwards; calls already in flight keep their snapshot.
type Retargetable interface {
	Retarget(endpoint Endpoint)
}

// Scope is the per-call provider context.
type Scope struct {
	// AgentID selects an agent-specific endpoint on workflow providers.
	AgentID string
	// KnowledgeBaseID scopes RAG calls; zero means none selected.
	KnowledgeBaseID int64
	// MaxChunks bounds retrieval on RAG providers; zero uses the provider default.
	MaxChunks int
}

// EventHandler receives normalized stream events in transport order.
type EventHandler func(StreamEvent)

// SendRequest is the input of [Provider.SendMessage].
type SendRequest struct {
	Content string
	Files   []File
	// ProviderConvID continues an existing backend conversation; empty starts a new one.
	ProviderConvID string
	Scope          Scope
	OnEvent        EventHandler
}

// Emit delivers event to the request's handler, if any.
func (request SendRequest) Emit(event StreamEvent) {
	if request.OnEvent != nil {
		request.OnEvent(event)
	}
}

// Reply is the settled result of a successful send.
type Reply struct {
	Content        string
	MessageID      string
	ConversationID string
	Sources        []Source
	Metadata       map[string]any
	// UploadFailures lists attachments that could not be uploaded. The send
	// still proceeds with the uploads that succeeded.
	UploadFailures []UploadFailure
}

// UploadFailure records one attachment that failed to upload.
type UploadFailure struct {
	Filename string
	Err      error
}

// Rating is the feedback verdict for an assistant message.
type Rating string

const (
	RatingLike    Rating = "like"
	RatingDislike Rating = "dislike"
)

// Valid reports whether rating is one of the known verdicts.
func (rating Rating) Valid() bool {
	return rating == RatingLike || rating == RatingDislike
}

// SourceEnricher is implemented by providers that can resolve preview links
// for the sources they return. Sources without a resolvable file keep an
// empty URL.
type SourceEnricher interface {
	EnrichSources(ctx context.Context, sources []Source) []Source
}
