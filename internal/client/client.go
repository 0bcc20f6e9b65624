// Package client connects to a bridge over WebSocket and delivers its
// JSON-RPC notifications as decoded frames.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hay-kot/mqview/internal/core/jsonrpc"
)

// ErrClosed is returned by Send after the connection has been closed.
var ErrClosed = errors.New("client closed")

const (
	writeWait       = 10 * time.Second
	eventBufferSize = 256
)

// Client is a single connection to a bridge.
type Client struct {
	log    zerolog.Logger
	conn   *websocket.Conn
	events chan jsonrpc.Notification

	mu     sync.Mutex
	closed bool
	err    error
	stop   chan struct{}
	done   chan struct{}
}

// Dial connects to the bridge at url and starts reading frames.
func Dial(ctx context.Context, log zerolog.Logger, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		log:    log,
		conn:   conn,
		events: make(chan jsonrpc.Notification, eventBufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events returns the decoded notifications. The channel is closed when the
// connection ends; Err then reports why.
func (c *Client) Events() <-chan jsonrpc.Notification {
	return c.events
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, nil after Close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Send writes one raw frame, as built by the jsonrpc request helpers.
func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

// Close sends a close frame and shuts the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.stop)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.mu.Unlock()

	return c.conn.Close()
}

func (c *Client) readLoop() {
	defer func() {
		close(c.events)
		close(c.done)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if !c.closed && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.err = fmt.Errorf("read frame: %w", err)
			}
			c.closed = true
			c.mu.Unlock()
			return
		}

		n, err := jsonrpc.Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("ignoring malformed frame")
			continue
		}
		select {
		case c.events <- n:
		case <-c.stop:
			return
		}
	}
}
