package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opentalk/chatroom/internal/domain"
	"github.com/opentalk/chatroom/internal/service"
	"github.com/opentalk/chatroom/pkg/log"
	"github.com/opentalk/chatroom/pkg/response"
)

// Handler handles HTTP requests for the room resource.
type Handler struct {
	roomService service.RoomService
}

// NewHandler creates a new HTTP handler.
func NewHandler(roomService service.RoomService) *Handler {
	return &Handler{
		roomService: roomService,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	rooms := r.Group("/chatRooms")
	{
		rooms.GET("", h.ListRooms)
		rooms.GET("/:id", h.GetRoom)
		rooms.POST("", h.CreateRoom)
		rooms.PUT("/:id", h.RenameRoom)
		rooms.DELETE("/:id", h.DeleteRoom)
	}
}

// CreateRoom creates a new room.
func (h *Handler) CreateRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create room request")
		response.BadRequest(c, err.Error())
		return
	}

	room, err := h.roomService.CreateRoom(ctx, &req)
	if err != nil {
		l.Error().Err(err).Msg("failed to create room")
		response.InternalError(c, "failed to create room")
		return
	}

	response.Created(c, room)
}

// GetRoom retrieves a room by ID with its live user count.
func (h *Handler) GetRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomID, ok := parseID(c)
	if !ok {
		return
	}

	room, err := h.roomService.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			response.NotFound(c, "room not found")
			return
		}
		l.Error().Err(err).Uint(log.FieldRoomID, roomID).Msg("failed to get room")
		response.InternalError(c, "failed to get room")
		return
	}

	response.Success(c, room)
}

// ListRooms lists rooms, optionally filtered by exact name.
func (h *Handler) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.ListRoomsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	rooms, err := h.roomService.ListRooms(ctx, req.Name)
	if err != nil {
		l.Error().Err(err).Msg("failed to list rooms")
		response.InternalError(c, "failed to list rooms")
		return
	}

	response.Success(c, rooms)
}

// RenameRoom updates a room name.
func (h *Handler) RenameRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomID, ok := parseID(c)
	if !ok {
		return
	}

	var req domain.UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind rename room request")
		response.BadRequest(c, err.Error())
		return
	}

	room, err := h.roomService.RenameRoom(ctx, roomID, &req)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			response.NotFound(c, "room not found")
			return
		}
		l.Error().Err(err).Uint(log.FieldRoomID, roomID).Msg("failed to rename room")
		response.InternalError(c, "failed to rename room")
		return
	}

	response.Success(c, room)
}

// DeleteRoom removes a room and its messages.
func (h *Handler) DeleteRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomID, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.roomService.DeleteRoom(ctx, roomID); err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			response.NotFound(c, "room not found")
			return
		}
		l.Error().Err(err).Uint(log.FieldRoomID, roomID).Msg("failed to delete room")
		response.InternalError(c, "failed to delete room")
		return
	}

	response.NoContent(c)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid room id")
		return 0, false
	}
	return uint(id), true
}
