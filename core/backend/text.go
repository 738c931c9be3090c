package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type textRequest struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id"`
}

// SendText submits typed user input as a one-shot request. Only success or
// failure is reported; the actual reply arrives over the event stream.
func (c *Client) SendText(ctx context.Context, conversationID string, text string) error {
	ctx, span := tracer.Start(ctx, "send text")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	body, err := json.Marshal(textRequest{Text: text, ConversationID: conversationID})
	if err != nil {
		return fmt.Errorf("failed to encode text request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/stream", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build text request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to send text request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("text request rejected with status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
