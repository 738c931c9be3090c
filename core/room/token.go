// Package room holds the external room service collaborators: the token
// endpoint that issues short-lived join credentials and the microphone track
// provider. The room service itself is opaque to the session core.
package room

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultBaseURL is the room service endpoint used unless overridden.
const DefaultBaseURL = "https://rooms.assistant.bizjuned.dev"

// Credential is a short-lived room join credential. The token contents are
// opaque; only the room service can interpret them.
type Credential struct {
	Token    string `json:"token"`
	Identity string `json:"identity"`
}

type TokenClient struct {
	baseURL    string
	httpClient *http.Client
}

type TokenClientOption func(*TokenClient)

func WithBaseURL(baseURL string) TokenClientOption {
	return func(c *TokenClient) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(httpClient *http.Client) TokenClientOption {
	return func(c *TokenClient) { c.httpClient = httpClient }
}

func NewTokenClient(opts ...TokenClientOption) *TokenClient {
	client := &TokenClient{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// FetchToken requests a join credential for the given room.
func (c *TokenClient) FetchToken(ctx context.Context, roomName string) (Credential, error) {
	tokenURL := c.baseURL + "/api/livekit-token?" + url.Values{"room_name": {roomName}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL, nil)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to build token request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to fetch room token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Credential{}, fmt.Errorf("token request rejected with status %d", resp.StatusCode)
	}

	var payload struct {
		Credential
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Credential{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.Error != "" {
		return Credential{}, fmt.Errorf("token endpoint reported: %s", payload.Error)
	}
	if payload.Token == "" {
		return Credential{}, fmt.Errorf("token endpoint returned an empty credential")
	}

	return payload.Credential, nil
}
