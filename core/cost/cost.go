package cost

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leofalp/chatmux/providers/chat"
)

// usageKey is the metadata entry holding usage figures.
const usageKey = "usage"

// Usage is the token and price accounting of one answer.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	// TotalPrice is the price charged by the backend, in Currency.
	TotalPrice float64
	Currency   string
	Latency    time.Duration
}

// IsZero reports whether no figure is set.
func (u Usage) IsZero() bool {
	return u == Usage{}
}

// String returns a one-line summary, e.g. "42 tokens (10 prompt, 32 completion), 0.000123 USD".
func (u Usage) String() string {
	var parts []string
	if u.TotalTokens > 0 || u.PromptTokens > 0 || u.CompletionTokens > 0 {
		parts = append(parts, fmt.Sprintf("%d tokens (%d prompt, %d completion)", u.TotalTokens, u.PromptTokens, u.CompletionTokens))
	}
	if u.TotalPrice > 0 {
		currency := u.Currency
		if currency == "" {
			currency = "USD"
		}
		parts = append(parts, fmt.Sprintf("%.6f %s", u.TotalPrice, currency))
	}
	if u.Latency > 0 {
		parts = append(parts, u.Latency.Round(time.Millisecond).String())
	}
	if len(parts) == 0 {
		return "no usage reported"
	}
	return strings.Join(parts, ", ")
}

// Add returns the sum of u and other. Latencies add up; the currency is kept
// when both agree and cleared otherwise.
func (u Usage) Add(other Usage) Usage {
	currency := u.Currency
	switch {
	case currency == "":
		currency = other.Currency
	case other.Currency != "" && other.Currency != currency:
		currency = ""
	}
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
		TotalPrice:       u.TotalPrice + other.TotalPrice,
		Currency:         currency,
		Latency:          u.Latency + other.Latency,
	}
}

// FromMetadata extracts usage from answer metadata. Numbers may arrive as
// JSON numbers or numeric strings; latency is in seconds. It reports false
// when the metadata carries no usage object.
func FromMetadata(metadata map[string]any) (Usage, bool) {
	raw, ok := metadata[usageKey].(map[string]any)
	if !ok {
		return Usage{}, false
	}

	usage := Usage{
		PromptTokens:     int(number(raw["prompt_tokens"])),
		CompletionTokens: int(number(raw["completion_tokens"])),
		TotalTokens:      int(number(raw["total_tokens"])),
		TotalPrice:       number(raw["total_price"]),
		Latency:          time.Duration(number(raw["latency"]) * float64(time.Second)),
	}
	if currency, ok := raw["currency"].(string); ok {
		usage.Currency = currency
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage, true
}

func number(value any) float64 {
	switch typed := value.(type) {
	case float64:
		return typed
	case int:
		return float64(typed)
	case int64:
		return float64(typed)
	case json.Number:
		parsed, _ := typed.Float64()
		return parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0
		}
		return parsed
	}
	return 0
}

// Summary totals the usage of a conversation.
type Summary struct {
	// Answers counts assistant messages that reported usage.
	Answers int
	Usage   Usage
}

// Summarize totals usage over the assistant messages of a conversation.
func Summarize(messages []*chat.Message) Summary {
	var summary Summary
	for _, message := range messages {
		if message == nil || message.Role != chat.RoleAssistant {
			continue
		}
		usage, ok := FromMetadata(message.Metadata)
		if !ok {
			continue
		}
		summary.Answers++
		summary.Usage = summary.Usage.Add(usage)
	}
	return summary
}
