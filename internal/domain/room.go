package domain

import (
	"time"
)

// Room represents a persisted chat room.
type Room struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateRoomRequest represents a create room request.
type CreateRoomRequest struct {
	Name string `json:"name" binding:"required,min=1,max=50"`
}

// UpdateRoomRequest represents a rename room request.
type UpdateRoomRequest struct {
	Name string `json:"name" binding:"required,min=1,max=50"`
}

// ListRoomsRequest represents a list rooms request.
type ListRoomsRequest struct {
	Name string `form:"name" binding:"omitempty,max=50"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// RoomWithCount is a listing row carrying the number of users currently
// connected to the room.
type RoomWithCount struct {
	RoomResponse
	Count int `json:"count"`
}

// ToResponse converts Room to RoomResponse.
func (r *Room) ToResponse() RoomResponse {
	return RoomResponse{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
	}
}
