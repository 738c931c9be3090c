// Package backend holds the concrete clients for the assistant backend: the
// binary audio uplink channel, the JSON event downlink stream and the
// one-shot text request. All traffic is keyed by a conversation id carried in
// the connection address, never in-band.
package backend

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultBaseURL is the assistant backend the clients talk to unless
// overridden. It is the only backend configuration the session core consumes.
const DefaultBaseURL = "https://api.assistant.bizjuned.dev"

type Client struct {
	baseURL    string
	dialer     *websocket.Dialer
	httpClient *http.Client
}

type Option func(*Client)

// WithBaseURL overrides the backend base URL. http/https schemes are accepted
// and translated for websocket endpoints.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithDialer overrides the websocket dialer, mainly for tests.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = dialer }
}

// WithHTTPClient overrides the client used for one-shot requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL: DefaultBaseURL,
		dialer:  websocket.DefaultDialer,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// websocketURL rewrites the configured base URL for a websocket endpoint.
func (c *Client) websocketURL(path string) (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid backend base url: %w", err)
	}

	switch parsed.Scheme {
	case "http", "ws":
		parsed.Scheme = "ws"
	case "https", "wss", "":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported backend url scheme %q", parsed.Scheme)
	}

	parsed.Path = strings.TrimRight(parsed.Path, "/") + path
	return parsed.String(), nil
}
