package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opentalk/chatroom/internal/config"
	"github.com/opentalk/chatroom/pkg/log"
)

// Client is one websocket connection.
type Client struct {
	ID     string
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	config config.WebSocketConfig

	mu     sync.RWMutex
	roomID uint
	name   string
	bound  bool
	closed bool
}

// NewClient wraps an upgraded connection.
func NewClient(id string, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		ID:     id,
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		config: cfg,
	}
}

// Bind records the room and display name this connection was acknowledged
// under, for disconnect handling.
func (c *Client) Bind(roomID uint, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
	c.name = name
	c.bound = true
}

// Binding returns the acknowledged room and name, if any.
func (c *Client) Binding() (roomID uint, name string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID, c.name, c.bound
}

// Disconnect force-closes the underlying connection; the read pump then
// unwinds and unregisters the client.
func (c *Client) Disconnect() {
	c.Conn.Close()
}

// SendMessage marshals v and queues it for this connection. A full or
// closed buffer drops the frame rather than stalling the caller.
func (c *Client) SendMessage(v interface{}) {
	l := log.L()

	data, err := json.Marshal(v)
	if err != nil {
		l.Error().Err(err).Str(log.FieldConnID, c.ID).Msg("failed to marshal outbound message")
		return
	}

	if !c.enqueue(data) {
		l.Warn().Str(log.FieldConnID, c.ID).Msg("send buffer unavailable, dropping frame")
	}
}

// enqueue pushes onto the send buffer without blocking. It reports false
// when the buffer is full or already closed; the closed check and the
// push happen under the same lock as closeSend, so an enqueue can never
// hit a closed channel.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the send buffer exactly once; later enqueues are
// rejected instead of panicking.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// ReadPump reads inbound frames and hands them to the handler. It owns
// the connection teardown.
func (c *Client) ReadPump(handler func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		onClose(c)
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Debug().Err(err).Str(log.FieldConnID, c.ID).Msg("websocket read error")
			}
			break
		}

		handler(c, message)
	}
}

// WritePump drains the send buffer onto the wire and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
