package rag

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/leofalp/chatmux/internal/utils"
	"github.com/leofalp/chatmux/providers/chat"
)

// translateError turns transport failures into [chat.StatusError], surfacing
// the service's "detail" message when present.
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
		Provider:   chat.ProviderRAG,
		StatusCode: httpErr.StatusCode,
		Body:       httpErr.Body,
	}
	var body struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal([]byte(httpErr.Body), &body) == nil {
		if detail, ok := body.Detail.(string); ok {
			statusErr.Message = detail
		}
	}
	return statusErr
}
