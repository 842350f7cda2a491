package chat

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCancelled marks a send stopped by the caller. It is a terminal
	// outcome, not a failure.
	ErrCancelled = errors.New("generation cancelled")

	// ErrTimeout marks an operation cut off by an expired deadline. Unlike
	// [ErrCancelled] it is a failure.
	ErrTimeout = errors.New("request timed out")

	// ErrMissingKnowledgeBase is returned before any network call when a RAG
	// send has no knowledge base selected.
	ErrMissingKnowledgeBase = errors.New("select a knowledge base first")

	// ErrMissingAPIKey is returned before any network call when the endpoint
	// has no credentials.
	ErrMissingAPIKey = errors.New("api key is not configured")

	// ErrUnknownProvider is returned by the registry for unregistered ids.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrConversationNotFound reports that the backend no longer knows the
	// conversation, typically because it was deleted.
	ErrConversationNotFound = errors.New("conversation does not exist, it may have been deleted; a new conversation will be created")

	// ErrInvalidRating is returned for feedback verdicts other than like or dislike.
	ErrInvalidRating = errors.New("invalid feedback rating")

	// ErrTooManyFiles is returned before any upload when a send carries more
	// attachments than the provider accepts.
	ErrTooManyFiles = errors.New("too many attachments")

	// ErrFilesUnsupported is returned when attachments are sent to a provider
	// without file support.
	ErrFilesUnsupported = errors.New("provider does not accept attachments")

	// ErrStream wraps an error event reported inside an answer stream.
	ErrStream = errors.New("stream reported an error")
)

// StatusError is a transport failure carrying the backend status and a
// descriptive message.
type StatusError struct {
	Provider   ID
	StatusCode int
	Message    string
	Body       string
	// Err is an optional sentinel the status was translated to.
	Err error
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsCancelled reports whether err represents a caller cancellation rather
// than a failure.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// Cancelled wraps cause so that it matches both [ErrCancelled] and cause.
func Cancelled(cause error) error {
	if cause == nil || errors.Is(cause, ErrCancelled) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// Interrupted classifies an operation stopped while ctx was ending. Explicit
// cancellation matches [ErrCancelled]; anything else, such as an expired
// deadline or a rate limiter refusing to wait past one, matches [ErrTimeout].
// A nil cause defaults to ctx.Err().
func Interrupted(ctx context.Context, cause error) error {
	if cause == nil {
		cause = ctx.Err()
	}
	if cause == nil {
		return nil
	}
	if errors.Is(cause, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return Cancelled(cause)
	}
	if errors.Is(cause, ErrTimeout) || errors.Is(cause, ErrCancelled) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrTimeout, cause)
}
