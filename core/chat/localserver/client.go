// Package localserver implements the chat.Service contract against the
// local companion gateway, a sidecar HTTP server that streams answers as
// newline-delimited JSON.
package localserver

import (
	"net/http"

	"github.com/tsubakihara/companion-core/core/chat"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultBaseURL   = "http://127.0.0.1:5000"
	conversationPath = "/conversation_stream"
	nextSpeakerPath  = "/next_speaker"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ chat.Service = (*Client)(nil)

type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client, used by tests and callers that
// need custom transport settings.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
					return operationName + " " + request.URL.Path
				}),
			),
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}
