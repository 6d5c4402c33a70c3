// Package socketserver implements the chat.Service contract over a
// websocket connection to the companion gateway, for deployments where
// the gateway keeps a persistent duplex channel instead of the NDJSON
// HTTP endpoint.
package socketserver

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/tsubakihara/companion-core/core/chat"
)

const defaultURL = "ws://127.0.0.1:5001/conversation"

type Client struct {
	url    string
	dialer *websocket.Dialer
}

var _ chat.Service = (*Client)(nil)

type ClientOption func(*Client)

// WithDialer replaces the websocket dialer, used by tests and callers
// that need custom handshake settings.
func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *Client) { c.dialer = dialer }
}

func NewClient(url string, opts ...ClientOption) *Client {
	if url == "" {
		url = defaultURL
	}

	c := &Client{
		url:    url,
		dialer: websocket.DefaultDialer,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// OpenStream dials the gateway and sends the opening frame. The streamed
// answer is consumed through the returned stream's Chunks iterator.
func (c *Client) OpenStream(ctx context.Context, req chat.Request) (chat.Stream, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to gateway: %w", err)
	}

	s := &stream{
		conn:    conn,
		speaker: req.TargetSpeaker,
	}
	if req.TargetSpeaker == chat.AutoSpeaker {
		s.speaker = chat.NoSpeaker
	}

	if err := s.sendWebsocketMessage(toOpenMsg(req)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to send opening frame: %w", err)
	}

	return s, nil
}
