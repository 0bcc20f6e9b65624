package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1 << 20

	// Per-peer outbound buffer.
	sendBufferSize = 256
)

// Peer is one WebSocket connection attached to the hub.
type Peer struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// set by the hub before ready is closed
	ready   chan struct{}
	initial [][]byte
	after   uint64

	closeOnce sync.Once
	closed    atomic.Bool
}

func newPeer(id string, hub *Hub, conn *websocket.Conn) *Peer {
	return &Peer{
		id:    id,
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		ready: make(chan struct{}),
	}
}

// SafeSend queues data without blocking. Returns false when the peer is
// closed or its buffer is full.
func (p *Peer) SafeSend(data []byte) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			sent = false
		}
	}()

	if p.closed.Load() {
		return false
	}
	select {
	case p.send <- data:
		return true
	default:
		return false
	}
}

// Close closes the send channel exactly once.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.send)
	})
}

// readPump reads frames from the connection and routes them until the
// connection fails.
func (p *Peer) readPump(ctx context.Context, handle func(context.Context, []byte)) {
	defer func() {
		select {
		case p.hub.unregister <- p:
		case <-p.hub.done:
		}
		_ = p.conn.Close()
	}()

	p.conn.SetReadLimit(maxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				p.hub.log.Error().Err(err).Str("peer", p.id).Msg("read error")
			}
			return
		}

		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
		handle(ctx, data)
	}
}

// writePump writes the replay frames, then live frames and pings.
func (p *Peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()

	select {
	case <-p.ready:
	case <-p.hub.done:
		return
	}

	for _, data := range p.initial {
		_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	p.initial = nil

	for {
		select {
		case message, ok := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := p.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
