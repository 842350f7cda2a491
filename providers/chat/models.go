package chat

import (
	"bytes"
	"encoding/json"
	"io"
	"time"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status tracks whether a message is still being streamed.
type Status string

const (
	StatusPartial Status = "partial"
	StatusFinal   Status = "final"
)

// Conversation is an ordered exchange with one provider.
type Conversation struct {
	ID              string     `json:"id"`                         // Local id; "<provider>_<native>" for imported conversations
	ProviderConvID  string     `json:"provider_conv_id,omitempty"` // Backend-native id, empty until the first exchange
	Provider        ID         `json:"provider"`
	Title           string     `json:"title"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Messages        []*Message `json:"messages,omitempty"`
	IsEmpty         bool       `json:"is_empty"`          // No real exchange yet
	IsHistoryImport bool       `json:"is_history_import"` // Loaded from backend history
}

// Message is one user or assistant turn.
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Files     []File         `json:"files,omitempty"`
	Sources   []Source       `json:"sources,omitempty"`
	MessageID string         `json:"message_id,omitempty"` // Backend-native id, needed for feedback
	Status    Status         `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Liked     *bool          `json:"liked,omitempty"`    // nil means unset
	Disliked  *bool          `json:"disliked,omitempty"` // nil means unset
	Timestamp time.Time      `json:"timestamp"`
	Provider  ID             `json:"provider,omitempty"`
	Error     string         `json:"error,omitempty"` // Set when the send that produced this message failed
}

// File is an attachment. Open is called once per upload attempt.
type File struct {
	Name        string                        `json:"name"`
	ContentType string                        `json:"content_type,omitempty"`
	Size        int64                         `json:"size,omitempty"`
	Open        func() (io.ReadCloser, error) `json:"-"`
}

// NewFileFromBytes wraps in-memory content as an attachment.
func NewFileFromBytes(name, contentType string, data []byte) File {
	return File{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Source is a reference returned by retrieval-augmented providers.
type Source struct {
	FileID   *int64  `json:"file_id,omitempty"`
	Filename string  `json:"filename,omitempty"`
	Snippet  string  `json:"snippet,omitempty"`
	Score    float64 `json:"score,omitempty"`
	URL      string  `json:"url,omitempty"`
}

// UnmarshalJSON accepts both the object form and a bare string, which some
// backends send as a plain reference label.
func (source *Source) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err == nil {
		*source = Source{Filename: label}
		return nil
	}

	type plain Source
	var decoded struct {
		plain
		Content string `json:"content"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*source = Source(decoded.plain)
	if source.Snippet == "" {
		source.Snippet = decoded.Content
	}
	if source.Snippet == "" {
		source.Snippet = decoded.Text
	}
	return nil
}

// FileCapabilities describes attachment support.
type FileCapabilities struct {
	Enabled  bool   `json:"enabled"`
	Accept   string `json:"accept,omitempty"`    // Comma separated MIME patterns and extensions
	MaxCount int    `json:"max_count,omitempty"` // Zero means no limit when enabled
}

// Capabilities is a provider's fixed feature descriptor.
type Capabilities struct {
	Streaming  bool             `json:"streaming"`
	Files      FileCapabilities `json:"files"`
	Feedback   bool             `json:"feedback"`
	History    bool             `json:"history"`
	Sources    bool             `json:"sources"`
	EditResend bool             `json:"edit_resend"`
}

// EventType discriminates stream events.
type EventType string

const (
	// EventStart reports that the backend conversation id became known.
	EventStart EventType = "start"
	// EventContent carries the cumulative answer so far.
	EventContent EventType = "content"
	// EventEnd carries the final answer and closes the stream.
	EventEnd EventType = "end"
)

// StreamEvent is the normalized stream event. Content is always cumulative:
// a receiver replaces its text rather than appending.
type StreamEvent struct {
	Type           EventType      `json:"type"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Content        string         `json:"content,omitempty"`
	MessageID      string         `json:"message_id,omitempty"`
	Sources        []Source       `json:"sources,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}
