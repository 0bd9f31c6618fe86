package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Client speaks the bridge protocol from the browser's side. It is used to
// drive a server from Go, for example by headless front-ends and tests.
type Client struct {
	url    string
	conn   *websocket.Conn
	logger *slog.Logger
}

// NewClient creates a client for the websocket endpoint at serverURL.
// http and https URLs are mapped to ws and wss.
func NewClient(serverURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{url: serverURL, logger: logger}
}

// Connect dials the server.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	c.logger.Debug("Connecting to bridge", slog.String("url", u.String()))

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn
	c.logger.Info("Bridge connected", slog.String("url", u.String()))
	return nil
}

// Read returns the next envelope. The context deadline, if any, bounds the
// wait; a connection that timed out cannot be read again.
func (c *Client) Read(ctx context.Context) (*Envelope, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("not connected")
	}
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	var env Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return nil, fmt.Errorf("failed to read envelope: %w", err)
	}
	c.logger.Debug("Received envelope", slog.String("type", string(env.Type)))
	return &env, nil
}

// ReadUntil reads envelopes until one of type t arrives, discarding others.
func (c *Client) ReadUntil(ctx context.Context, t MessageType) (*Envelope, error) {
	for {
		env, err := c.Read(ctx)
		if err != nil {
			return nil, err
		}
		if env.Type == t {
			return env, nil
		}
	}
}

// Write sends an envelope.
func (c *Client) Write(ctx context.Context, env *Envelope) error {
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	c.logger.Debug("Sending envelope", slog.String("type", string(env.Type)))
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to write envelope: %w", err)
	}
	return nil
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	c.logger.Info("Closing bridge connection")
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Ping sends a websocket ping.
func (c *Client) Ping(ctx context.Context) error {
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
}
