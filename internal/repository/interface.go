package repository

import (
	"context"
	"errors"
	"time"

	"github.com/opentalk/chatroom/internal/domain"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")
)

// RoomRepository defines the interface for room persistence.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id uint) (*domain.Room, error)
	Update(ctx context.Context, room *domain.Room) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, name string) ([]domain.Room, error)
}

// MessageRepository defines the interface for chat message persistence.
type MessageRepository interface {
	Save(ctx context.Context, msg *domain.ChatMessage) error
	GetByID(ctx context.Context, id uint) (*domain.ChatMessage, error)
	MarkDeleted(ctx context.Context, id uint) error
	// FindSince returns the non-deleted messages of a room visible to the
	// named user since the given time: messages the user sent, system
	// messages, room-wide messages and messages addressed to the user.
	FindSince(ctx context.Context, roomID uint, name string, since time.Time) ([]domain.ChatMessage, error)
}
