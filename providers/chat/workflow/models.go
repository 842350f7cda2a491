package workflow

/*
	##### REQUESTS #####
*/

type chatRequest struct {
	Inputs         map[string]any  `json:"inputs"`
	Query          string          `json:"query"`
	ResponseMode   string          `json:"response_mode"`
	ConversationID string          `json:"conversation_id"`
	User           string          `json:"user"`
	Files          []fileReference `json:"files"`
}

type fileReference struct {
	Type           string `json:"type"`
	TransferMethod string `json:"transfer_method"`
	UploadFileID   string `json:"upload_file_id"`
}

type feedbackRequest struct {
	Rating  string `json:"rating"`
	Content string `json:"content,omitempty"`
	User    string `json:"user"`
}

type userRequest struct {
	User string `json:"user"`
}

/*
	##### RESPONSES #####
*/

type conversationList struct {
	Data    []conversationRecord `json:"data"`
	HasMore bool                 `json:"has_more"`
	Limit   int                  `json:"limit"`
}

type conversationRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt any    `json:"created_at"`
	UpdatedAt any    `json:"updated_at"`
}

type messageList struct {
	Data    []messageRecord `json:"data"`
	HasMore bool            `json:"has_more"`
	Limit   int             `json:"limit"`
}

// messageRecord is one question/answer turn as stored by the backend.
type messageRecord struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Query          string          `json:"query"`
	Answer         string          `json:"answer"`
	CreatedAt      any             `json:"created_at"`
	Feedback       *feedbackRecord `json:"feedback"`
	MessageFiles   []messageFile   `json:"message_files"`
}

type feedbackRecord struct {
	Rating string `json:"rating"`
}

type messageFile struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	URL       string `json:"url"`
	BelongsTo string `json:"belongs_to"`
}

type uploadResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
	MimeType  string `json:"mime_type"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

/*
	##### STREAM #####
*/

// streamPayload covers the fields of every event this adapter reacts to.
type streamPayload struct {
	Event          string         `json:"event"`
	TaskID         string         `json:"task_id"`
	MessageID      string         `json:"message_id"`
	ConversationID string         `json:"conversation_id"`
	Answer         string         `json:"answer"`
	Metadata       map[string]any `json:"metadata"`
	Status         int            `json:"status"`
	Code           string         `json:"code"`
	Message        string         `json:"message"`
}
