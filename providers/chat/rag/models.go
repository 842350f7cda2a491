package rag

import "github.com/leofalp/chatmux/providers/chat"

type askRequest struct {
	KnowledgeBaseID int64   `json:"knowledge_base_id"`
	Question        string  `json:"question"`
	ConversationID  *string `json:"conversation_id"`
	MaxChunks       int     `json:"max_chunks"`
	Stream          bool    `json:"stream"`
}

// streamPayload covers every frame type of the answer stream.
type streamPayload struct {
	Type              string        `json:"type"`
	ConversationID    any           `json:"conversation_id"`
	Content           string        `json:"content"`
	Answer            string        `json:"answer"`
	MessageID         any           `json:"message_id"`
	Sources           []chat.Source `json:"sources"`
	SourcesFileDetail []chat.Source `json:"sources_file_detail"`
	Message           string        `json:"message"`
}

type conversationRecord struct {
	ID        any    `json:"id"`
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	CreatedAt any    `json:"created_at"`
	UpdatedAt any    `json:"updated_at"`
}

type messageRecord struct {
	ID          any            `json:"id"`
	Role        string         `json:"role"`
	Content     string         `json:"content"`
	SourceFiles []chat.Source  `json:"source_files"`
	Metadata    map[string]any `json:"message_metadata"`
	CreatedAt   any            `json:"created_at"`
	UpdatedAt   any            `json:"updated_at"`
}

type openURLResponse struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}
