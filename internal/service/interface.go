package service

import (
	"context"

	"github.com/opentalk/chatroom/internal/domain"
)

// Presence is the live-connection view the service needs: listing rows
// carry a live user count, and deleting a room drops its users.
type Presence interface {
	Count(roomID uint) int
	RemoveRoom(roomID uint)
}

// RoomService defines the interface for room business logic.
type RoomService interface {
	CreateRoom(ctx context.Context, req *domain.CreateRoomRequest) (*domain.RoomResponse, error)
	GetRoom(ctx context.Context, roomID uint) (*domain.RoomWithCount, error)
	ListRooms(ctx context.Context, name string) ([]domain.RoomWithCount, error)
	RenameRoom(ctx context.Context, roomID uint, req *domain.UpdateRoomRequest) (*domain.RoomResponse, error)
	DeleteRoom(ctx context.Context, roomID uint) error
}
