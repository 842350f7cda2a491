package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leofalp/chatmux/providers/chat"
)

func newTestProvider(serverURL string) *WorkflowProvider {
	return New().WithBaseURL(serverURL).WithAPIKey("test-key").WithUser("tester").WithHttpClient(&http.Client{})
}

// streamHandler writes each chunk and flushes so the client sees separate reads.
func streamHandler(t *testing.T, chunks ...string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, chunk := range chunks {
			_, _ = io.WriteString(w, chunk)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []chat.StreamEvent
}

func (recorder *eventRecorder) handle(event chat.StreamEvent) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.events = append(recorder.events, event)
}

func (recorder *eventRecorder) snapshot() []chat.StreamEvent {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	return append([]chat.StreamEvent(nil), recorder.events...)
}

// TestSendMessage_ThreeChunks_CumulativeThenEnd covers the canonical three-frame stream.
func TestSendMessage_ThreeChunks_CumulativeThenEnd(t *testing.T) {
	server := httptest.NewServer(streamHandler(t,
		"data: {\"event\":\"message\",\"answer\":\"Hi\"}\n\n",
		"data: {\"event\":\"message\",\"answer\":\"Hi there\"}\n\n",
		"data: {\"event\":\"message_end\"}\n\n",
	))
	defer server.Close()

	recorder := &eventRecorder{}
	reply, err := newTestProvider(server.URL).SendMessage(context.Background(), chat.SendRequest{
		Content: "Hello",
		OnEvent: recorder.handle,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := recorder.snapshot()
	var got []string
	for _, event := range events {
		got = append(got, string(event.Type)+":"+event.Content)
	}
	want := []string{"content:Hi", "content:Hi there", "end:Hi there"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	if reply.Content != "Hi there" {
		t.Errorf("reply content = %q", reply.Content)
	}
}

// TestAnswerBuffer_DeltaAndSnapshotFragments pins how fragments are folded,
// including the ambiguous opening pair.
func TestAnswerBuffer_DeltaAndSnapshotFragments(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		want      string
	}{
		{name: "deltas", fragments: []string{"The ", "answer", "."}, want: "The answer."},
		{name: "snapshots", fragments: []string{"Hi", "Hi there", "Hi there!"}, want: "Hi there!"},
		{name: "repeated snapshot", fragments: []string{"Hi", "Hi there", "Hi there"}, want: "Hi there"},
		{name: "delta stream keeps appending", fragments: []string{"a", "b", "ab"}, want: "abab"},
		{name: "empty fragments ignored", fragments: []string{"", "x", "", "y"}, want: "xy"},
		{name: "ambiguous opening pair reads as snapshot", fragments: []string{"1", "12"}, want: "12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buffer answerBuffer
			for _, fragment := range tt.fragments {
				buffer.add(fragment)
			}
			if got := buffer.String(); got != tt.want {
				t.Errorf("answer = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestSendMessage_Deltas_AccumulatedMonotonically covers real delta streams.
func TestSendMessage_Deltas_AccumulatedMonotonically(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != chatMessagesEndpoint {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		streamHandler(t,
			"event: message\ndata: {\"event\":\"message\",\"conversation_id\":\"c1\",\"message_id\":\"m1\",\"answer\":\"The \"}\n\n",
			"data: {\"event\":\"ping\"}\n\n",
			"data: {\"event\":\"message\",\"conversation_id\":\"c1\",\"message_id\":\"m1\",\"answer\":\"answer \"}\n\n",
			"data: {\"event\":\"message\",\"conversation_id\":\"c1\",\"message_id\":\"m1\",\"answer\":\"is 42\"}\n\n",
			"data: {\"event\":\"message_end\",\"conversation_id\":\"c1\",\"message_id\":\"m1\",\"metadata\":{\"usage\":{\"total_tokens\":9}}}\n\n",
		)(w, r)
	}))
	defer server.Close()

	recorder := &eventRecorder{}
	reply, err := newTestProvider(server.URL).SendMessage(context.Background(), chat.SendRequest{
		Content: "question",
		OnEvent: recorder.handle,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.ResponseMode != "streaming" || captured.User != "tester" || captured.Query != "question" || captured.Inputs == nil {
		t.Errorf("request payload = %+v", captured)
	}

	events := recorder.snapshot()
	if events[0].Type != chat.EventStart || events[0].ConversationID != "c1" {
		t.Fatalf("first event = %+v", events[0])
	}
	previous := -1
	for _, event := range events[1 : len(events)-1] {
		if event.Type != chat.EventContent {
			t.Fatalf("unexpected event %+v", event)
		}
		if len(event.Content) < previous {
			t.Errorf("content shrank: %q", event.Content)
		}
		previous = len(event.Content)
	}
	last := events[len(events)-1]
	if last.Type != chat.EventEnd || last.Content != "The answer is 42" || last.MessageID != "m1" {
		t.Errorf("end event = %+v", last)
	}
	if reply.ConversationID != "c1" || reply.Metadata["usage"] == nil {
		t.Errorf("reply = %+v", reply)
	}
}

// TestSendMessage_MissingMessageEnd_StillEnds covers truncated streams.
func TestSendMessage_MissingMessageEnd_StillEnds(t *testing.T) {
	server := httptest.NewServer(streamHandler(t,
		"data: {\"event\":\"message\",\"answer\":\"partial\"}\n\n",
		"data: {broken\n\n",
		"data: {\"event\":\"message\",\"answer\":\" text\"}\n\n",
	))
	defer server.Close()

	recorder := &eventRecorder{}
	reply, err := newTestProvider(server.URL).SendMessage(context.Background(), chat.SendRequest{Content: "x", OnEvent: recorder.handle})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := recorder.snapshot()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %+v", events)
	}
	if events[2].Type != chat.EventEnd || reply.Content != "partial text" {
		t.Errorf("end = %+v reply = %q", events[2], reply.Content)
	}
}

// TestSendMessage_ErrorEvent_FailsStream covers in-stream errors.
func TestSendMessage_ErrorEvent_FailsStream(t *testing.T) {
	server := httptest.NewServer(streamHandler(t,
		"data: {\"event\":\"message\",\"answer\":\"a\"}\n\n",
		"event: error\ndata: {\"status\":400,\"code\":\"invalid_param\",\"message\":\"quota exceeded\"}\n\n",
	))
	defer server.Close()

	_, err := newTestProvider(server.URL).SendMessage(context.Background(), chat.SendRequest{Content: "x"})
	if !errors.Is(err, chat.ErrStream) || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("expected stream error, got %v", err)
	}
}

// TestSendMessage_Cancelled_StopsEmitting covers cancellation mid-stream.
func TestSendMessage_Cancelled_StopsEmitting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"event\":\"message\",\"answer\":\"Hel\"}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder := &eventRecorder{}
	_, err := newTestProvider(server.URL).SendMessage(ctx, chat.SendRequest{
		Content: "x",
		OnEvent: func(event chat.StreamEvent) {
			recorder.handle(event)
			cancel()
		},
	})
	if !chat.IsCancelled(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if events := recorder.snapshot(); len(events) != 1 || events[0].Content != "Hel" {
		t.Errorf("events after cancel = %+v", events)
	}
}

// TestSendMessage_DeadlineExceeded_IsFailure reports an expired deadline as a
// timeout, not a cancellation.
func TestSendMessage_DeadlineExceeded_IsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"event\":\"message\",\"answer\":\"Hi\"}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := newTestProvider(server.URL).SendMessage(ctx, chat.SendRequest{Content: "x"})
	if chat.IsCancelled(err) {
		t.Fatalf("deadline reported as cancellation: %v", err)
	}
	if !errors.Is(err, chat.ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

// TestSendMessage_MissingAPIKey_NoNetwork covers the credential guard.
func TestSendMessage_MissingAPIKey_NoNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	provider := New().WithBaseURL(server.URL).WithAPIKey("")
	_, err := provider.SendMessage(context.Background(), chat.SendRequest{Content: "x"})
	if !errors.Is(err, chat.ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no requests, got %d", calls.Load())
	}
}

// TestSendMessage_StatusCodes_Translated covers 401/403/404 mapping.
func TestSendMessage_StatusCodes_Translated(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		contains string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"code":"unauthorized"}`, nil, "invalid API key"},
		{"forbidden", http.StatusForbidden, `{}`, nil, "access denied"},
		{"conversation gone", http.StatusNotFound, `{"code":"not_found","message":"Conversation Not Exists."}`, chat.ErrConversationNotFound, "does not exist"},
		{"bad endpoint", http.StatusNotFound, `404 page not found`, nil, "endpoint not found"},
		{"server error", http.StatusInternalServerError, `{"message":"upstream down"}`, nil, "upstream down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := newTestProvider(server.URL).SendMessage(context.Background(), chat.SendRequest{Content: "x", ProviderConvID: "c1"})
			var statusErr *chat.StatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.status {
				t.Fatalf("expected StatusError %d, got %v", tt.status, err)
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Errorf("expected %v, got %v", tt.sentinel, err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q should contain %q", err.Error(), tt.contains)
			}
		})
	}
}

// TestSendMessage_PartialUploadFailure_SendsRemaining covers advisory upload failures.
func TestSendMessage_PartialUploadFailure_SendsRemaining(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case filesUploadEndpoint:
			_, header, err := r.FormFile("file")
			if err != nil {
				t.Errorf("form file: %v", err)
				return
			}
			if r.FormValue("user") != "tester" {
				t.Errorf("upload user = %q", r.FormValue("user"))
			}
			if header.Filename == "broken.pdf" {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_, _ = io.WriteString(w, `{"message":"file too large"}`)
				return
			}
			_ = json.NewEncoder(w).Encode(uploadResponse{ID: "up-" + header.Filename})
		case chatMessagesEndpoint:
			_ = json.NewDecoder(r.Body).Decode(&captured)
			streamHandler(t, "data: {\"event\":\"message_end\"}\n\n")(w, r)
		}
	}))
	defer server.Close()

	reply, err := newTestProvider(server.URL).SendMessage(context.Background(), chat.SendRequest{
		Content: "see attached",
		Files: []chat.File{
			chat.NewFileFromBytes("photo.png", "image/png", []byte("png")),
			chat.NewFileFromBytes("broken.pdf", "application/pdf", []byte("pdf")),
			chat.NewFileFromBytes("notes.txt", "text/plain", []byte("txt")),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(reply.UploadFailures) != 1 || reply.UploadFailures[0].Filename != "broken.pdf" {
		t.Errorf("upload failures = %+v", reply.UploadFailures)
	}
	want := []fileReference{
		{Type: FileTypeImage, TransferMethod: "local_file", UploadFileID: "up-photo.png"},
		{Type: FileTypeText, TransferMethod: "local_file", UploadFileID: "up-notes.txt"},
	}
	if !reflect.DeepEqual(captured.Files, want) {
		t.Errorf("file references = %+v, want %+v", captured.Files, want)
	}
}

// TestSendMessage_TooManyFiles_Rejected covers the attachment limit.
func TestSendMessage_TooManyFiles_Rejected(t *testing.T) {
	files := make([]chat.File, maxFileCount+1)
	_, err := New().WithAPIKey("k").SendMessage(context.Background(), chat.SendRequest{Content: "x", Files: files})
	if !errors.Is(err, chat.ErrTooManyFiles) {
		t.Errorf("expected ErrTooManyFiles, got %v", err)
	}
}

// TestClassifyFile_Types covers the file type table.
func TestClassifyFile_Types(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        string
	}{
		{"a.png", "image/png", FileTypeImage},
		{"a.mp3", "audio/mpeg", FileTypeAudio},
		{"a.mp4", "video/mp4", FileTypeVideo},
		{"a.pdf", "application/pdf", FileTypeDocument},
		{"a.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", FileTypeDocument},
		{"a.xlsx", "", FileTypeDocument},
		{"a.md", "text/markdown", FileTypeText},
		{"a.txt", "", FileTypeText},
		{"a.bin", "application/octet-stream", FileTypeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyFile(chat.File{Name: tt.name, ContentType: tt.contentType}); got != tt.want {
				t.Errorf("ClassifyFile = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestGetMessages_Records_ExpandToPairs covers record expansion and paging.
func TestGetMessages_Records_ExpandToPairs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("conversation_id") != "c1" || query.Get("user") != "tester" || query.Get("limit") != "100" {
			t.Errorf("query = %v", query)
		}
		switch query.Get("first_id") {
		case "":
			_, _ = io.WriteString(w, `{"has_more":true,"data":[
				{"id":"m2","query":"second?","answer":"second!","created_at":1714566660,"feedback":{"rating":"like"}}]}`)
		case "m2":
			_, _ = io.WriteString(w, `{"has_more":false,"data":[
				{"id":"m1","query":"first?","answer":"first!","created_at":1714566600,"feedback":null}]}`)
		}
	}))
	defer server.Close()

	messages, err := newTestProvider(server.URL).GetMessages(context.Background(), "c1", chat.Scope{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}

	user, assistant := messages[0], messages[1]
	if user.Role != chat.RoleUser || assistant.Role != chat.RoleAssistant {
		t.Errorf("roles = %s, %s", user.Role, assistant.Role)
	}
	if !user.Timestamp.Equal(assistant.Timestamp) || user.Timestamp.Unix() != 1714566600 {
		t.Errorf("timestamps = %v, %v", user.Timestamp, assistant.Timestamp)
	}
	if user.MessageID != "m1_user" || assistant.MessageID != "m1" || user.ID == assistant.ID {
		t.Errorf("ids = %+v %+v", user, assistant)
	}
	if assistant.Liked != nil {
		t.Errorf("unrated message should leave feedback unset")
	}

	rated := messages[3]
	if rated.Liked == nil || !*rated.Liked || rated.Disliked == nil || *rated.Disliked {
		t.Errorf("rated message feedback = %v %v", rated.Liked, rated.Disliked)
	}
}

// TestListConversations_Pages_Namespaced covers paging, ids and timestamps.
func TestListConversations_Pages_Namespaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "20" {
			t.Errorf("limit = %q", r.URL.Query().Get("limit"))
		}
		switch r.URL.Query().Get("last_id") {
		case "":
			_, _ = io.WriteString(w, `{"has_more":true,"data":[{"id":"a","name":"First","created_at":1714566600,"updated_at":1714566700}]}`)
		case "a":
			_, _ = io.WriteString(w, `{"has_more":false,"data":[{"id":"b","name":"","created_at":1714566600000}]}`)
		}
	}))
	defer server.Close()

	conversations, err := newTestProvider(server.URL).ListConversations(context.Background(), chat.Scope{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(conversations))
	}
	first, second := conversations[0], conversations[1]
	if first.ID != "dify_a" || first.ProviderConvID != "a" || first.Title != "First" || first.UpdatedAt.Unix() != 1714566700 {
		t.Errorf("first = %+v", first)
	}
	if second.Title == "" || second.CreatedAt.Unix() != 1714566600 || !second.UpdatedAt.Equal(second.CreatedAt) {
		t.Errorf("second = %+v", second)
	}
}

// TestScope_Agent_SelectsAgentEndpoint covers per-call endpoint snapshots.
func TestScope_Agent_SelectsAgentEndpoint(t *testing.T) {
	var defaultCalls, agentCalls atomic.Int32
	defaultServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defaultCalls.Add(1)
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer defaultServer.Close()
	agentServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agentCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer agent-key" {
			t.Errorf("agent authorization = %q", r.Header.Get("Authorization"))
		}
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer agentServer.Close()

	provider := newTestProvider(defaultServer.URL).WithAgents(chat.Agent{
		ID:       "excel-helper",
		Endpoint: chat.Endpoint{BaseURL: agentServer.URL, APIKey: "agent-key"},
	})

	if _, err := provider.ListConversations(context.Background(), chat.Scope{AgentID: "excel-helper"}); err != nil {
		t.Fatalf("agent call: %v", err)
	}
	if _, err := provider.ListConversations(context.Background(), chat.Scope{}); err != nil {
		t.Fatalf("default call: %v", err)
	}
	if agentCalls.Load() != 1 || defaultCalls.Load() != 1 {
		t.Errorf("agent=%d default=%d", agentCalls.Load(), defaultCalls.Load())
	}

	provider.Retarget(chat.Endpoint{BaseURL: agentServer.URL, APIKey: "agent-key"})
	if _, err := provider.ListConversations(context.Background(), chat.Scope{}); err != nil {
		t.Fatalf("retargeted call: %v", err)
	}
	if agentCalls.Load() != 2 {
		t.Errorf("retarget not applied, agent calls = %d", agentCalls.Load())
	}
}

// TestDeleteAndFeedback_RequestShapes covers the two write endpoints.
func TestDeleteAndFeedback_RequestShapes(t *testing.T) {
	var requests []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, r.Method+" "+r.URL.Path+" "+string(body))
		mu.Unlock()
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = io.WriteString(w, `{"result":"success"}`)
	}))
	defer server.Close()

	provider := newTestProvider(server.URL)
	if err := provider.DeleteConversation(context.Background(), "c1", chat.Scope{}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := provider.Feedback(context.Background(), "m1", chat.RatingDislike, "wrong", chat.Scope{}); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if err := provider.Feedback(context.Background(), "m1", "meh", "", chat.Scope{}); !errors.Is(err, chat.ErrInvalidRating) {
		t.Errorf("expected ErrInvalidRating, got %v", err)
	}

	want := []string{
		`DELETE /conversations/c1 {"user":"tester"}`,
		`POST /messages/m1/feedbacks {"rating":"dislike","content":"wrong","user":"tester"}`,
	}
	if !reflect.DeepEqual(requests, want) {
		t.Errorf("requests = %v, want %v", requests, want)
	}
}

// TestCapabilities_Fixed pins the workflow descriptor.
func TestCapabilities_Fixed(t *testing.T) {
	caps := New().Capabilities()
	if !caps.Streaming || !caps.Files.Enabled || caps.Files.MaxCount != 10 || !caps.Feedback || caps.Sources {
		t.Errorf("capabilities = %+v", caps)
	}
}
