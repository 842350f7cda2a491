package client

import (
	"context"

	"github.com/leofalp/chatmux/providers/chat"
)

// Operation names the provider call travelling through the middleware chain.
type Operation string

const (
	OpListConversations  Operation = "list_conversations"
	OpGetMessages        Operation = "get_messages"
	OpSendMessage        Operation = "send_message"
	OpDeleteConversation Operation = "delete_conversation"
	OpFeedback           Operation = "feedback"
)

// Idempotent reports whether repeating the operation cannot change backend
// state. Only idempotent operations may be retried.
func (op Operation) Idempotent() bool {
	return op == OpListConversations || op == OpGetMessages
}

// Call describes one provider call. Middlewares may read it but the provider
// invocation itself is fixed when the chain is built.
type Call struct {
	Operation Operation
	Provider  chat.Provider
	Scope     chat.Scope
	// ProviderConvID is the backend conversation the call targets, empty for
	// listings and new conversations.
	ProviderConvID string
}

// CallFunc performs a provider call. It is the base unit threaded through the
// middleware chain.
type CallFunc func(ctx context.Context, call Call) error

// Middleware intercepts provider calls. Each Middleware receives the next
// CallFunc in the chain and returns a new CallFunc that wraps it. The first
// middleware in a slice is the outermost wrapper.
type Middleware func(next CallFunc) CallFunc

// buildChain wraps invoke with middlewares so that middlewares[0] runs first.
func buildChain(invoke func(ctx context.Context) error, middlewares []Middleware) CallFunc {
	var chain CallFunc = func(ctx context.Context, _ Call) error {
		return invoke(ctx)
	}

	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			chain = middlewares[i](chain)
		}
	}

	return chain
}
