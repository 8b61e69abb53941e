package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/opentalk/chatroom/internal/domain"
	"github.com/opentalk/chatroom/pkg/log"
)

// GormRoomRepository implements RoomRepository using GORM.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a new GORM-based room repository.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

// Create creates a new room.
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	l := log.Ctx(ctx)

	model := domain.RoomToModel(room)
	model.ID = 0
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		l.Error().Err(result.Error).Msg("failed to create room in db")
		return result.Error
	}

	room.ID = model.ID
	room.CreatedAt = model.CreatedAt
	l.Debug().Uint(log.FieldRoomID, room.ID).Msg("room created in db")
	return nil
}

// GetByID retrieves a room by ID.
func (r *GormRoomRepository) GetByID(ctx context.Context, id uint) (*domain.Room, error) {
	l := log.Ctx(ctx)

	var model domain.RoomModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		l.Error().Err(result.Error).Uint(log.FieldRoomID, id).Msg("failed to get room by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// Update renames a room.
func (r *GormRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Model(&domain.RoomModel{}).
		Where("id = ?", room.ID).
		Update("name", room.Name)
	if result.Error != nil {
		l.Error().Err(result.Error).Uint(log.FieldRoomID, room.ID).Msg("failed to update room in db")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// Delete removes a room and, through the FK constraint, its messages.
func (r *GormRoomRepository) Delete(ctx context.Context, id uint) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Delete(&domain.RoomModel{}, "id = ?", id)
	if result.Error != nil {
		l.Error().Err(result.Error).Uint(log.FieldRoomID, id).Msg("failed to delete room in db")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	l.Debug().Uint(log.FieldRoomID, id).Msg("room deleted in db")
	return nil
}

// List retrieves rooms, optionally filtered by exact name.
func (r *GormRoomRepository) List(ctx context.Context, name string) ([]domain.Room, error) {
	l := log.Ctx(ctx)

	query := r.db.WithContext(ctx).Model(&domain.RoomModel{})
	if name != "" {
		query = query.Where("name = ?", name)
	}

	var models []domain.RoomModel
	if err := query.Order("created_at DESC").Find(&models).Error; err != nil {
		l.Error().Err(err).Msg("failed to list rooms from db")
		return nil, err
	}

	rooms := make([]domain.Room, len(models))
	for i, model := range models {
		rooms[i] = *model.ToDomain()
	}
	return rooms, nil
}
