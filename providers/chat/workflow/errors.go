package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/leofalp/chatmux/internal/utils"
	"github.com/leofalp/chatmux/providers/chat"
)

const conversationNotExists = "Conversation Not Exists."

// translateError maps transport failures onto actionable messages. Context
// An ended context takes precedence over whatever the transport reported.
func translateError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return chat.Interrupted(ctx, nil)
	}

	var httpErr *utils.HTTPError
	if !errors.As(err, &httpErr) {
		return err
	}

	statusErr := &chat.StatusError{
		Provider:   chat.ProviderWorkflow,
		StatusCode: httpErr.StatusCode,
		Body:       httpErr.Body,
	}

	switch httpErr.StatusCode {
	case http.StatusUnauthorized:
		statusErr.Message = "invalid API key, check DIFY_API_KEY"
	case http.StatusForbidden:
		statusErr.Message = "access denied, check the API key permissions"
	case http.StatusNotFound:
		var body errorResponse
		if json.Unmarshal([]byte(httpErr.Body), &body) == nil && body.Message == conversationNotExists {
			statusErr.Message = chat.ErrConversationNotFound.Error()
			statusErr.Err = chat.ErrConversationNotFound
		} else {
			statusErr.Message = "endpoint not found: check DIFY_API_URL, that the app is a chat app and not an agent app, and that the API key is valid"
		}
	default:
		var body errorResponse
		if json.Unmarshal([]byte(httpErr.Body), &body) == nil && body.Message != "" {
			statusErr.Message = body.Message
		}
	}
	return statusErr
}
