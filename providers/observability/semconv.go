package observability

// Semantic conventions for observability attributes.
// These constants define standard attribute names to ensure consistency
// across different components of the system.

// --- Chat Provider Attributes ---

const (
	// AttrChatProvider is the provider identifier (e.g., "workflow", "rag")
	AttrChatProvider = "chat.provider"

	// AttrChatEndpoint is the backend base URL captured for the call
	AttrChatEndpoint = "chat.endpoint"

	// AttrChatAgentID is the agent whose endpoint was selected
	AttrChatAgentID = "chat.agent_id"

	// AttrChatConversationID is the backend-native conversation identifier
	AttrChatConversationID = "chat.conversation_id"

	// AttrChatMessageID is the backend-native message identifier
	AttrChatMessageID = "chat.message_id"

	// AttrChatKnowledgeBaseID is the knowledge base a RAG call is scoped to
	AttrChatKnowledgeBaseID = "chat.knowledge_base_id"

	// AttrChatContentLength is the length of the cumulative answer text
	AttrChatContentLength = "chat.content_length"

	// AttrChatOutcome is the call outcome, one of the Outcome values
	AttrChatOutcome = "chat.outcome"
)

// --- Stream Attributes ---

const (
	// AttrStreamEvent is the resolved event discriminator of a frame
	AttrStreamEvent = "stream.event"

	// AttrStreamPayload is a truncated preview of a frame payload
	AttrStreamPayload = "stream.payload"

	// AttrStreamEvents is the number of normalized events emitted
	AttrStreamEvents = "stream.events"
)

// --- Upload Attributes ---

const (
	// AttrUploadFilename is the name of the file being uploaded
	AttrUploadFilename = "upload.filename"

	// AttrUploadSucceeded is the number of uploads that succeeded
	AttrUploadSucceeded = "upload.succeeded"

	// AttrUploadFailed is the number of uploads that failed
	AttrUploadFailed = "upload.failed"
)

// --- HTTP Attributes ---

const (
	// AttrHTTPMethod is the HTTP method
	AttrHTTPMethod = "http.method"

	// AttrHTTPURL is the request URL
	AttrHTTPURL = "http.url"

	// AttrHTTPStatusCode is the response status code
	AttrHTTPStatusCode = "http.status_code"

	// AttrHTTPRequestBodySize is the size of the request body in bytes
	AttrHTTPRequestBodySize = "http.request.body.size"

	// AttrHTTPResponseBodySize is the size of the response body in bytes
	AttrHTTPResponseBodySize = "http.response.body.size"
)

// --- Store Attributes ---

const (
	// AttrStoreConversationID is the local conversation identifier
	AttrStoreConversationID = "store.conversation_id"

	// AttrStoreMessageCount is the number of messages in a conversation
	AttrStoreMessageCount = "store.message_count"
)

// --- Status Attributes ---

const (
	// AttrStatus is the span status ("ok", "error", "unset")
	AttrStatus = "status"

	// AttrStatusDescription is the status description
	AttrStatusDescription = "status.description"
)

// --- Span Names ---

const (
	SpanListConversations  = "chat.list_conversations"
	SpanGetMessages        = "chat.get_messages"
	SpanSendMessage        = "chat.send_message"
	SpanDeleteConversation = "chat.delete_conversation"
	SpanFeedback           = "chat.feedback"
)

// --- Event Names ---

const (
	EventHTTPRequestPrepared  = "http.request.prepared"
	EventHTTPResponseReceived = "http.response.received"
	EventHTTPRequestError     = "http.request.error"
	EventStreamStarted        = "stream.started"
	EventStreamFrameDropped   = "stream.frame_dropped"
	EventStreamFrameRepaired  = "stream.frame_repaired"
	EventStreamEnded          = "stream.ended"
	EventUploadFailed         = "upload.failed"
)

// --- Metric Names ---

const (
	// MetricStreamFramesDropped counts frames discarded because their payload was not JSON
	MetricStreamFramesDropped = "chatmux.stream.frames_dropped"

	// MetricUploadFailures counts file uploads that failed during a send
	MetricUploadFailures = "chatmux.upload.failures"
)
