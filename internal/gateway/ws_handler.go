package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/opentalk/chatroom/internal/config"
	"github.com/opentalk/chatroom/internal/domain"
	"github.com/opentalk/chatroom/internal/hub"
	"github.com/opentalk/chatroom/internal/presence"
	"github.com/opentalk/chatroom/internal/repository"
	"github.com/opentalk/chatroom/internal/routing"
	"github.com/opentalk/chatroom/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// PresenceService is the presence surface the gateway dispatches to.
type PresenceService interface {
	Join(ctx context.Context, connID string, ev domain.JoinEvent) error
	Heartbeat(roomID uint, name string)
	Logout(ctx context.Context, roomID uint, name string) error
	Disconnect(ctx context.Context, connID string, roomID uint, name string)
	ToggleBlock(ctx context.Context, roomID uint, name, target string)
}

// MessageRouter is the routing surface the gateway dispatches to.
type MessageRouter interface {
	SendPublic(ctx context.Context, roomID uint, senderName, body, target string) error
	SendPrivate(ctx context.Context, roomID uint, senderName, recipientName, body string) error
	Delete(ctx context.Context, roomID, messageID uint, requesterName string) error
}

// Gateway is the connection-level boundary: it upgrades websockets,
// validates inbound payloads and dispatches them. Schema failures are
// answered with an error event and mutate nothing.
type Gateway struct {
	hub      *hub.Hub
	presence PresenceService
	router   MessageRouter
	validate *validator.Validate
	wsCfg    config.WebSocketConfig
}

// New creates a gateway.
func New(h *hub.Hub, p PresenceService, r MessageRouter, wsCfg config.WebSocketConfig) *Gateway {
	return &Gateway{
		hub:      h,
		presence: p,
		router:   r,
		validate: validator.New(),
		wsCfg:    wsCfg,
	}
}

// HandleWebSocket upgrades the request and starts the connection pumps.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), g.hub, conn, g.wsCfg)
	g.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(g.handleFrame, g.handleClose)
}

func (g *Gateway) handleFrame(client *hub.Client, frame []byte) {
	var base domain.BaseEvent
	if err := json.Unmarshal(frame, &base); err != nil {
		client.SendMessage(domain.NewErrorEvent(domain.ErrCodeInvalidInput, "Invalid input!"))
		return
	}

	ctx := log.WithLogger(context.Background(),
		log.L().With().Str(log.FieldConnID, client.ID).Str(log.FieldEvent, base.Type).Logger())

	switch base.Type {
	case domain.EventJoin:
		var ev domain.JoinEvent
		if !g.decode(client, frame, &ev) {
			return
		}
		ev.Name = strings.TrimSpace(ev.Name)
		if err := g.presence.Join(ctx, client.ID, ev); err != nil {
			g.reportError(ctx, client, err)
			return
		}
		client.Bind(ev.RoomID, ev.Name)

	case domain.EventHeartbeat:
		var ev domain.HeartbeatEvent
		if !g.decode(client, frame, &ev) {
			return
		}
		g.presence.Heartbeat(ev.RoomID, ev.Name)

	case domain.EventMessage:
		var ev domain.MessageEvent
		if !g.decode(client, frame, &ev) {
			return
		}
		var err error
		if ev.Private {
			err = g.router.SendPrivate(ctx, ev.RoomID, ev.Name, ev.Target, ev.Body)
		} else {
			err = g.router.SendPublic(ctx, ev.RoomID, ev.Name, ev.Body, ev.Target)
		}
		if err != nil {
			g.reportError(ctx, client, err)
		}

	case domain.EventBlock:
		var ev domain.BlockEvent
		if !g.decode(client, frame, &ev) {
			return
		}
		g.presence.ToggleBlock(ctx, ev.RoomID, ev.Name, ev.Target)

	case domain.EventDeleteMessage:
		var ev domain.DeleteMessageEvent
		if !g.decode(client, frame, &ev) {
			return
		}
		_, name, ok := client.Binding()
		if !ok {
			client.SendMessage(domain.NewErrorEvent(domain.ErrCodeInvalidInput, "Invalid input!"))
			return
		}
		if err := g.router.Delete(ctx, ev.RoomID, ev.MessageID, name); err != nil {
			g.reportError(ctx, client, err)
		}

	case domain.EventLogout:
		var ev domain.LogoutEvent
		if !g.decode(client, frame, &ev) {
			return
		}
		if err := g.presence.Logout(ctx, ev.RoomID, ev.Name); err != nil {
			g.reportError(ctx, client, err)
		}

	default:
		client.SendMessage(domain.NewErrorEvent(domain.ErrCodeInvalidInput, "Unknown event type"))
	}
}

// decode unmarshals and schema-validates an inbound payload. Failures
// answer the caller and stop the dispatch before any state changes.
func (g *Gateway) decode(client *hub.Client, frame []byte, ev interface{}) bool {
	if err := json.Unmarshal(frame, ev); err != nil {
		client.SendMessage(domain.NewErrorEvent(domain.ErrCodeInvalidInput, "Invalid input!"))
		return false
	}
	if err := g.validate.Struct(ev); err != nil {
		client.SendMessage(domain.NewErrorEvent(domain.ErrCodeInvalidInput, "Invalid input!"))
		return false
	}
	return true
}

// reportError maps core errors onto error events for the calling
// connection. A taken name also costs the caller its connection.
func (g *Gateway) reportError(ctx context.Context, client *hub.Client, err error) {
	l := log.Ctx(ctx)

	switch {
	case errors.Is(err, presence.ErrInvalidInput):
		client.SendMessage(domain.NewErrorEvent(domain.ErrCodeInvalidInput, "Invalid input!"))
	case errors.Is(err, repository.ErrRoomNotFound):
		client.SendMessage(domain.NewErrorEvent(domain.ErrCodeRoomNotFound, "Invalid room!"))
	case errors.Is(err, presence.ErrNameTaken):
		client.SendMessage(domain.NewErrorEvent(domain.ErrCodeNameTaken, "User already exists!"))
		client.Disconnect()
	case errors.Is(err, routing.ErrForbidden):
		client.SendMessage(domain.NewErrorEvent(domain.ErrCodeForbidden, "Only the sender may delete a message"))
	default:
		l.Error().Err(err).Msg("event handling failed")
		client.SendMessage(domain.NewErrorEvent(domain.ErrCodeInternalError, "Something went wrong"))
	}
}

// handleClose runs when a connection unwinds; an acknowledged join turns
// into a leave unless a reconnect already took over the identity.
func (g *Gateway) handleClose(client *hub.Client) {
	roomID, name, ok := client.Binding()
	if !ok {
		return
	}

	ctx := log.WithLogger(context.Background(),
		log.L().With().Str(log.FieldConnID, client.ID).Logger())
	g.presence.Disconnect(ctx, client.ID, roomID, name)
}
