package workflow

import "github.com/leofalp/chatmux/providers/chat"

const (
	// acceptedFiles mirrors the upload types the workflow app is configured for.
	acceptedFiles = "image/*,.pdf,.doc,.docx,.txt,.md,.json,.csv,.xlsx,.xls"

	maxFileCount = 10
)

var capabilities = chat.Capabilities{
	Streaming: true,
	Files: chat.FileCapabilities{
		Enabled:  true,
		Accept:   acceptedFiles,
		MaxCount: maxFileCount,
	},
	Feedback:   true,
	History:    true,
	Sources:    false,
	EditResend: true,
}
