package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leofalp/chatmux/providers/chat"
)

// isolateEnv clears every variable the CLI reads so tests start in demo mode.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DIFY_API_URL", "DIFY_API_KEY", "DIFY_APP_TOKEN", "CHATMUX_USER",
		"RAG_API_URL", "RAG_API_KEY", "RAG_KNOWLEDGE_BASE_ID", "RAG_MAX_CHUNKS",
		"CHATMUX_AGENTS_FILE", "CHATMUX_LOG_FORMAT", "CHATMUX_LOG_FILE",
		"DIFY_AGENT_1_ID",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("CHATMUX_LOG_LEVEL", "error")
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "absent.env")}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// ragServer fakes the knowledge-base service.
func ragServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/ask":
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, "data: {\"type\":\"start\",\"conversation_id\":\"s1\"}\n\n")
			_, _ = io.WriteString(w, "data: {\"type\":\"content\",\"content\":\"Hel\"}\n\n")
			_, _ = io.WriteString(w, "data: {\"type\":\"content\",\"content\":\"lo\"}\n\n")
			_, _ = io.WriteString(w, "data: {\"type\":\"end\",\"answer\":\"Hello\",\"sources_file_detail\":[{\"file_id\":1,\"filename\":\"a.docx\"}]}\n\n")
		case "/chat/files/1/open-url":
			_, _ = io.WriteString(w, `{"url": "/chat/files/1/raw", "filename": "a.docx"}`)
		case "/chat/conversations/7":
			_, _ = io.WriteString(w, `[{"session_id": "abcdef123456", "title": "Pricing", "updated_at": "2024-05-01T13:00:00Z"}]`)
		case "/chat/conversations/s1/messages":
			_, _ = io.WriteString(w, `[
				{"id": 1, "role": "user", "content": "What is X?", "created_at": "2024-05-01T12:30:00Z"},
				{"id": 2, "role": "assistant", "content": "X is Y.", "created_at": "2024-05-01T12:30:05Z"}
			]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// TestProviders_DemoMode lists the demo adapter in the workflow slot.
func TestProviders_DemoMode(t *testing.T) {
	isolateEnv(t)

	stdout, _, err := runCLI(t, "providers")
	require.NoError(t, err)
	require.Contains(t, stdout, "Demo assistant")
	require.Contains(t, stdout, string(chat.ProviderRAG))
}

// TestAgents_FromEnvironment prints configured agents.
func TestAgents_FromEnvironment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DIFY_AGENT_1_ID", "sales")
	t.Setenv("DIFY_AGENT_1_NAME", "Sales assistant")

	stdout, _, err := runCLI(t, "agents")
	require.NoError(t, err)
	require.Contains(t, stdout, "sales")
	require.Contains(t, stdout, "Sales assistant")
	require.Contains(t, stdout, "(default)")
}

// TestUnknownAgent_Rejected fails before any call.
func TestUnknownAgent_Rejected(t *testing.T) {
	isolateEnv(t)

	_, _, err := runCLI(t, "--agent", "ghost", "providers")
	require.ErrorContains(t, err, "unknown agent")
}

// TestSend_RAGStream prints the streamed answer, the new conversation id and
// resolved sources.
func TestSend_RAGStream(t *testing.T) {
	isolateEnv(t)
	server := ragServer(t)
	t.Setenv("RAG_API_URL", server.URL)

	stdout, _, err := runCLI(t, "send", "--provider", "rag", "--kb", "7", "hello", "there")
	require.NoError(t, err)
	require.Contains(t, stdout, "conversation rag_s1")
	require.Contains(t, stdout, "Hello\n")
	require.Contains(t, stdout, "1. a.docx <"+server.URL+"/chat/files/1/raw>")
}

// TestSend_RAGWithoutKnowledgeBase surfaces the domain error.
func TestSend_RAGWithoutKnowledgeBase(t *testing.T) {
	isolateEnv(t)
	t.Setenv("RAG_API_URL", ragServer(t).URL)

	_, _, err := runCLI(t, "send", "--provider", "rag", "hello")
	require.ErrorIs(t, err, chat.ErrMissingKnowledgeBase)
}

// TestConversationsAndMessages_RAG lists and opens backend conversations.
func TestConversationsAndMessages_RAG(t *testing.T) {
	isolateEnv(t)
	t.Setenv("RAG_API_URL", ragServer(t).URL)
	t.Setenv("RAG_KNOWLEDGE_BASE_ID", "7")

	stdout, _, err := runCLI(t, "conversations", "--provider", "rag")
	require.NoError(t, err)
	require.Contains(t, stdout, "rag_abcdef123456")
	require.Contains(t, stdout, "Pricing")

	stdout, _, err = runCLI(t, "messages", "rag_s1")
	require.NoError(t, err)
	require.Contains(t, stdout, "[user]")
	require.Contains(t, stdout, "X is Y.")
	require.Contains(t, stdout, "#2")
}

// TestFeedback_InvalidRating is rejected before any configuration is read.
func TestFeedback_InvalidRating(t *testing.T) {
	isolateEnv(t)

	_, _, err := runCLI(t, "feedback", "dify_abc", "m1", "meh")
	require.ErrorIs(t, err, chat.ErrInvalidRating)
}

// TestMessages_UnknownPrefix reports unregistered providers.
func TestMessages_UnknownPrefix(t *testing.T) {
	isolateEnv(t)

	_, _, err := runCLI(t, "messages", "nope_123")
	require.ErrorIs(t, err, chat.ErrUnknownProvider)
}

// TestStreamPrinter_ReplacedContent restarts the line when the answer is replaced.
func TestStreamPrinter_ReplacedContent(t *testing.T) {
	var out bytes.Buffer
	printer := &streamPrinter{out: &out, provider: chat.ProviderWorkflow}

	printer.handle(chat.StreamEvent{Type: chat.EventStart, ConversationID: "c1"})
	printer.handle(chat.StreamEvent{Type: chat.EventContent, Content: "Hi"})
	printer.handle(chat.StreamEvent{Type: chat.EventContent, Content: "Hi there"})
	printer.handle(chat.StreamEvent{Type: chat.EventContent, Content: "Moderated"})
	printer.handle(chat.StreamEvent{Type: chat.EventEnd, Content: "Moderated"})
	printer.finish()

	require.Equal(t, "conversation dify_c1\n\nHi there\nModerated\n", out.String())
}

// TestLoadFiles_DescribesAttachments opens files lazily and rejects directories.
func TestLoadFiles_DescribesAttachments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	files, err := loadFiles([]string{path})
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "notes.txt", files[0].Name)
	require.True(t, strings.HasPrefix(files[0].ContentType, "text/plain"))
	require.EqualValues(t, 5, files[0].Size)

	reader, err := files[0].Open()
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	require.Equal(t, "hello", string(data))

	_, err = loadFiles([]string{dir})
	require.Error(t, err)
	_, err = loadFiles([]string{filepath.Join(dir, "missing.pdf")})
	require.Error(t, err)
}
