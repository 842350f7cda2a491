package cost

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leofalp/chatmux/providers/chat"
)

// decodeMetadata decodes JSON the way the stream decoder does.
func decodeMetadata(t *testing.T, raw string) map[string]any {
	t.Helper()
	var metadata map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &metadata))
	return metadata
}

// TestFromMetadata_WorkflowUsage parses the usage block of a message_end event.
func TestFromMetadata_WorkflowUsage(t *testing.T) {
	metadata := decodeMetadata(t, `{"usage": {
		"prompt_tokens": 10, "completion_tokens": 32, "total_tokens": 42,
		"total_price": "0.000123", "currency": "USD", "latency": 1.5
	}}`)

	usage, ok := FromMetadata(metadata)
	require.True(t, ok)
	require.Equal(t, Usage{
		PromptTokens:     10,
		CompletionTokens: 32,
		TotalTokens:      42,
		TotalPrice:       0.000123,
		Currency:         "USD",
		Latency:          1500 * time.Millisecond,
	}, usage)
	require.Equal(t, "42 tokens (10 prompt, 32 completion), 0.000123 USD, 1.5s", usage.String())
}

// TestFromMetadata_Missing reports absent or malformed usage.
func TestFromMetadata_Missing(t *testing.T) {
	for _, metadata := range []map[string]any{nil, {}, {"usage": "n/a"}, {"demo": true}} {
		_, ok := FromMetadata(metadata)
		require.False(t, ok, "%v", metadata)
	}
}

// TestFromMetadata_DerivesTotal sums prompt and completion tokens when the
// total is missing, and ignores unparsable prices.
func TestFromMetadata_DerivesTotal(t *testing.T) {
	usage, ok := FromMetadata(map[string]any{"usage": map[string]any{
		"prompt_tokens":     json.Number("5"),
		"completion_tokens": 7,
		"total_price":       "free",
	}})
	require.True(t, ok)
	require.Equal(t, 12, usage.TotalTokens)
	require.Zero(t, usage.TotalPrice)
}

// TestUsage_StringEmpty names the absence of figures.
func TestUsage_StringEmpty(t *testing.T) {
	require.True(t, Usage{}.IsZero())
	require.Equal(t, "no usage reported", Usage{}.String())
}

// TestUsage_AddCurrency keeps agreeing currencies and clears mixed ones.
func TestUsage_AddCurrency(t *testing.T) {
	usd := Usage{TotalTokens: 1, TotalPrice: 0.5, Currency: "USD"}

	require.Equal(t, "USD", usd.Add(Usage{TotalTokens: 2}).Currency)
	require.Equal(t, "USD", Usage{}.Add(usd).Currency)
	mixed := usd.Add(Usage{TotalPrice: 1, Currency: "RMB"})
	require.Empty(t, mixed.Currency)
	require.InDelta(t, 1.5, mixed.TotalPrice, 1e-9)
}

// TestSummarize_AssistantMessagesOnly totals usage over a conversation.
func TestSummarize_AssistantMessagesOnly(t *testing.T) {
	withUsage := func(tokens int) map[string]any {
		return map[string]any{"usage": map[string]any{"total_tokens": float64(tokens), "total_price": "0.01", "currency": "USD"}}
	}
	messages := []*chat.Message{
		{Role: chat.RoleUser, Metadata: withUsage(999)},
		{Role: chat.RoleAssistant, Metadata: withUsage(10)},
		{Role: chat.RoleAssistant},
		nil,
		{Role: chat.RoleAssistant, Metadata: withUsage(5)},
	}

	summary := Summarize(messages)
	require.Equal(t, 2, summary.Answers)
	require.Equal(t, 15, summary.Usage.TotalTokens)
	require.InDelta(t, 0.02, summary.Usage.TotalPrice, 1e-9)
	require.Equal(t, "USD", summary.Usage.Currency)
}
