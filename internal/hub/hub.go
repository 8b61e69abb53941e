package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/opentalk/chatroom/internal/config"
	"github.com/opentalk/chatroom/pkg/log"
)

// Hub tracks connections and their room membership and fans events out.
//
// ToRoom and ToConn push into the per-client send buffers synchronously,
// so events emitted by one handler invocation reach every recipient's
// buffer in emission order.
type Hub struct {
	clients    map[string]*Client          // connID -> client
	rooms      map[uint]map[string]*Client // roomID -> connID -> client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

// New creates a hub.
func New(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[uint]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		config:     cfg,
	}
}

// Run processes connection lifecycle events until the context is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	l := log.L()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l.Debug().Str(log.FieldConnID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for roomID, members := range h.rooms {
					delete(members, client.ID)
					if len(members) == 0 {
						delete(h.rooms, roomID)
					}
				}
				delete(h.clients, client.ID)
				client.closeSend()
			}
			h.mu.Unlock()
			l.Debug().Str(log.FieldConnID, client.ID).Msg("client unregistered")
		}
	}
}

// Register adds the client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes the client and closes its send buffer.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Join adds an existing connection to a room's broadcast set.
func (h *Hub) Join(connID string, roomID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][connID] = client
	l := log.L()
	l.Debug().Str(log.FieldConnID, connID).Uint(log.FieldRoomID, roomID).Msg("client joined room broadcast set")
}

// ToRoom delivers the event to every connection in the room.
func (h *Hub) ToRoom(roomID uint, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Uint(log.FieldRoomID, roomID).Msg("failed to marshal room event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.rooms[roomID] {
		h.send(client, data)
	}
}

// ToConn delivers the event to a single connection. Unknown connections
// are skipped.
func (h *Hub) ToConn(connID string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldConnID, connID).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[connID]
	if !ok {
		return
	}
	h.send(client, data)
}

// send pushes onto the client buffer; a stalled or already-closed client
// is evicted.
func (h *Hub) send(client *Client, data []byte) {
	if !client.enqueue(data) {
		go h.Unregister(client)
	}
}
