package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/leofalp/chatmux/core/store"
	"github.com/leofalp/chatmux/providers/chat"
	"github.com/leofalp/chatmux/providers/observability"
)

// Client orchestrates providers and the conversation store.
type Client struct {
	registry    *chat.Registry
	store       *store.Store
	observer    observability.Provider
	middlewares []Middleware

	mu         sync.Mutex
	scope      chat.Scope
	cancelLive context.CancelFunc
	liveToken  store.Token
}

// Option configures a Client.
type Option func(*Client)

// WithObserver enables spans, metrics and logs for every provider call.
func WithObserver(observer observability.Provider) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// WithMiddleware appends middlewares to the provider call chain.
func WithMiddleware(middlewares ...Middleware) Option {
	return func(c *Client) {
		c.middlewares = append(c.middlewares, middlewares...)
	}
}

// WithStore uses an existing store instead of a fresh one.
func WithStore(s *store.Store) Option {
	return func(c *Client) {
		c.store = s
	}
}

// WithScope sets the initial provider scope (agent, knowledge base).
func WithScope(scope chat.Scope) Option {
	return func(c *Client) {
		c.scope = scope
	}
}

// New creates a client over registry.
func New(registry *chat.Registry, opts ...Option) (*Client, error) {
	if registry == nil || len(registry.Providers()) == 0 {
		return nil, errors.New("client: registry has no providers")
	}

	c := &Client{registry: registry}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = store.New()
	}
	if c.observer != nil {
		c.middlewares = append([]Middleware{NewObservabilityMiddleware(c.observer)}, c.middlewares...)
	}
	return c, nil
}

// Store returns the conversation store the client drives.
func (c *Client) Store() *store.Store {
	return c.store
}

// Registry returns the provider registry.
func (c *Client) Registry() *chat.Registry {
	return c.registry
}

// Scope returns the current provider scope.
func (c *Client) Scope() chat.Scope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}

// SetScope replaces the provider scope for calls that start afterwards.
func (c *Client) SetScope(scope chat.Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scope = scope
}

// Capabilities returns the feature descriptor of a provider.
func (c *Client) Capabilities(providerID chat.ID) (chat.Capabilities, error) {
	provider, err := c.registry.Get(providerID)
	if err != nil {
		return chat.Capabilities{}, err
	}
	return provider.Capabilities(), nil
}

// Retarget switches a provider's default endpoint at runtime.
func (c *Client) Retarget(providerID chat.ID, endpoint chat.Endpoint) error {
	provider, err := c.registry.Get(providerID)
	if err != nil {
		return err
	}
	retargetable, ok := provider.(chat.Retargetable)
	if !ok {
		return fmt.Errorf("provider %s cannot be retargeted", providerID)
	}
	retargetable.Retarget(endpoint)
	return nil
}

// NewConversation starts an empty local conversation on a provider.
func (c *Client) NewConversation(providerID chat.ID) (chat.Conversation, error) {
	if _, err := c.registry.Get(providerID); err != nil {
		return chat.Conversation{}, err
	}
	return c.store.NewConversation(providerID), nil
}

// ListConversations fetches a provider's backend conversations, newest first.
func (c *Client) ListConversations(ctx context.Context, providerID chat.ID) ([]chat.Conversation, error) {
	provider, err := c.registry.Get(providerID)
	if err != nil {
		return nil, c.fail(err)
	}

	scope := c.Scope()
	var conversations []chat.Conversation
	err = c.run(ctx, Call{Operation: OpListConversations, Provider: provider, Scope: scope}, func(ctx context.Context) error {
		var listErr error
		conversations, listErr = provider.ListConversations(ctx, scope)
		return listErr
	})
	if err != nil {
		return nil, c.fail(err)
	}

	chat.SortConversations(conversations)
	return conversations, nil
}

// OpenConversation imports a listed backend conversation into the store and
// loads its messages. Opening a conversation already in the store selects it
// and refreshes its messages.
func (c *Client) OpenConversation(ctx context.Context, record chat.Conversation) (chat.Conversation, error) {
	provider, err := c.registry.Get(record.Provider)
	if err != nil {
		return chat.Conversation{}, c.fail(err)
	}

	conversation, _ := c.store.ImportHistory(record)
	if conversation.ProviderConvID == "" || !provider.Capabilities().History {
		return conversation, nil
	}

	scope := c.Scope()
	var messages []chat.Message
	call := Call{Operation: OpGetMessages, Provider: provider, Scope: scope, ProviderConvID: conversation.ProviderConvID}
	err = c.run(ctx, call, func(ctx context.Context) error {
		var getErr error
		messages, getErr = provider.GetMessages(ctx, conversation.ProviderConvID, scope)
		return getErr
	})
	if err != nil {
		return conversation, c.fail(err)
	}

	if err := c.store.LoadHistoryMessages(conversation.ID, messages); err != nil {
		return conversation, c.fail(err)
	}
	loaded, _ := c.store.Conversation(conversation.ID)
	return loaded, nil
}

// SendMessage sends content in a stored conversation and streams the answer
// into the store. onEvent, when non-nil, observes every applied event.
//
// A send started while another is live supersedes it: the older stream is
// cancelled and its late events are ignored.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string, files []chat.File, onEvent chat.EventHandler) (*chat.Reply, error) {
	conversation, ok := c.store.Conversation(conversationID)
	if !ok {
		return nil, c.fail(fmt.Errorf("%w: %s", store.ErrUnknownConversation, conversationID))
	}
	provider, err := c.registry.Get(conversation.Provider)
	if err != nil {
		return nil, c.fail(err)
	}

	send, err := c.store.BeginSend(conversationID, content, files)
	if err != nil {
		return nil, c.fail(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.setLive(send.Token(), cancel)
	defer c.clearLive(send.Token())

	enricher, _ := provider.(chat.SourceEnricher)
	scope := c.Scope()
	request := chat.SendRequest{
		Content:        content,
		Files:          files,
		ProviderConvID: conversation.ProviderConvID,
		Scope:          scope,
		OnEvent: func(event chat.StreamEvent) {
			if event.Type == chat.EventEnd && enricher != nil && len(event.Sources) > 0 {
				event.Sources = enricher.EnrichSources(ctx, event.Sources)
			}
			if applyErr := send.Apply(event); applyErr != nil {
				cancel()
				return
			}
			if onEvent != nil {
				onEvent(event)
			}
		},
	}

	var reply *chat.Reply
	call := Call{Operation: OpSendMessage, Provider: provider, Scope: scope, ProviderConvID: conversation.ProviderConvID}
	err = c.run(ctx, call, func(ctx context.Context) error {
		var sendErr error
		reply, sendErr = provider.SendMessage(ctx, request)
		return sendErr
	})

	if err == nil && reply != nil && send.State() != store.StateFinalized {
		_ = send.Apply(chat.StreamEvent{
			Type:           chat.EventEnd,
			ConversationID: reply.ConversationID,
			Content:        reply.Content,
			MessageID:      reply.MessageID,
			Sources:        reply.Sources,
			Metadata:       reply.Metadata,
		})
	}

	if finishErr := send.Finish(err); errors.Is(finishErr, store.ErrStaleToken) {
		if err == nil || chat.IsCancelled(err) {
			err = chat.Cancelled(context.Canceled)
		}
		return reply, err
	}

	if err != nil {
		return reply, c.fail(err)
	}
	if reply != nil && len(reply.UploadFailures) > 0 {
		c.store.SetError(uploadFailureMessage(reply.UploadFailures))
	}
	return reply, nil
}

// Abort cancels the live send, keeping whatever content already arrived.
func (c *Client) Abort() bool {
	c.mu.Lock()
	cancel := c.cancelLive
	c.cancelLive = nil
	c.liveToken = 0
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return c.store.Abort()
}

// DeleteConversation deletes a conversation on its backend, when it has one,
// and then locally. Backends without delete support succeed without a call.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	conversation, ok := c.store.Conversation(conversationID)
	if !ok {
		return c.fail(fmt.Errorf("%w: %s", store.ErrUnknownConversation, conversationID))
	}

	if conversation.ProviderConvID != "" {
		provider, err := c.registry.Get(conversation.Provider)
		if err != nil {
			return c.fail(err)
		}
		scope := c.Scope()
		call := Call{Operation: OpDeleteConversation, Provider: provider, Scope: scope, ProviderConvID: conversation.ProviderConvID}
		err = c.run(ctx, call, func(ctx context.Context) error {
			return provider.DeleteConversation(ctx, conversation.ProviderConvID, scope)
		})
		if err != nil {
			return c.fail(err)
		}
	}

	c.store.Delete(conversationID)
	return nil
}

// Feedback rates an assistant message on its backend and records the verdict
// locally. An empty rating resets the local feedback only.
func (c *Client) Feedback(ctx context.Context, conversationID, messageID string, rating chat.Rating, reason string) error {
	if rating == "" {
		if err := c.store.ResetFeedback(conversationID, messageID); err != nil {
			return c.fail(err)
		}
		return nil
	}
	if !rating.Valid() {
		return c.fail(fmt.Errorf("%w: %q", chat.ErrInvalidRating, rating))
	}

	conversation, ok := c.store.Conversation(conversationID)
	if !ok {
		return c.fail(fmt.Errorf("%w: %s", store.ErrUnknownConversation, conversationID))
	}
	var message *chat.Message
	for _, candidate := range conversation.Messages {
		if candidate.ID == messageID {
			message = candidate
			break
		}
	}
	if message == nil {
		return c.fail(fmt.Errorf("%w: %s", store.ErrUnknownMessage, messageID))
	}

	provider, err := c.registry.Get(conversation.Provider)
	if err != nil {
		return c.fail(err)
	}

	if message.MessageID != "" {
		scope := c.Scope()
		call := Call{Operation: OpFeedback, Provider: provider, Scope: scope, ProviderConvID: conversation.ProviderConvID}
		err = c.run(ctx, call, func(ctx context.Context) error {
			return provider.Feedback(ctx, message.MessageID, rating, reason, scope)
		})
		if err != nil {
			return c.fail(err)
		}
	}

	if rating == chat.RatingLike {
		err = c.store.Like(conversationID, messageID)
	} else {
		err = c.store.Dislike(conversationID, messageID)
	}
	if err != nil {
		return c.fail(err)
	}
	return nil
}

// run threads one provider call through the middleware chain.
func (c *Client) run(ctx context.Context, call Call, invoke func(ctx context.Context) error) error {
	return buildChain(invoke, c.middlewares)(ctx, call)
}

// fail records err on the store unless it is a cancellation, then returns it.
func (c *Client) fail(err error) error {
	if err != nil && !chat.IsCancelled(err) && !errors.Is(err, context.Canceled) {
		c.store.SetError(err.Error())
	}
	return err
}

func (c *Client) setLive(token store.Token, cancel context.CancelFunc) {
	c.mu.Lock()
	previous := c.cancelLive
	c.cancelLive = cancel
	c.liveToken = token
	c.mu.Unlock()

	if previous != nil {
		previous()
	}
}

func (c *Client) clearLive(token store.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.liveToken == token {
		c.cancelLive = nil
		c.liveToken = 0
	}
}

func uploadFailureMessage(failures []chat.UploadFailure) string {
	names := make([]string, 0, len(failures))
	for _, failure := range failures {
		names = append(names, failure.Filename)
	}
	return fmt.Sprintf("%d attachment(s) failed to upload: %s", len(failures), strings.Join(names, ", "))
}
