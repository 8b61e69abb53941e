package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/opentalk/chatroom/internal/domain"
	"github.com/opentalk/chatroom/pkg/log"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Save persists a new message and fills in its generated id.
func (r *GormMessageRepository) Save(ctx context.Context, msg *domain.ChatMessage) error {
	l := log.Ctx(ctx)

	model := domain.MessageToModel(msg)
	model.ID = 0
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		l.Error().Err(result.Error).Uint(log.FieldRoomID, msg.RoomID).Msg("failed to save message in db")
		return result.Error
	}

	msg.ID = model.ID
	return nil
}

// GetByID retrieves a message by ID.
func (r *GormMessageRepository) GetByID(ctx context.Context, id uint) (*domain.ChatMessage, error) {
	l := log.Ctx(ctx)

	var model domain.ChatMessageModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		l.Error().Err(result.Error).Uint("message_id", id).Msg("failed to get message by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// MarkDeleted flips the deleted flag. The body stays stored.
func (r *GormMessageRepository) MarkDeleted(ctx context.Context, id uint) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Model(&domain.ChatMessageModel{}).
		Where("id = ?", id).
		Update("deleted", true)
	if result.Error != nil {
		l.Error().Err(result.Error).Uint("message_id", id).Msg("failed to mark message deleted")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// FindSince returns the room's non-deleted messages visible to the named
// user since the given time, oldest first.
func (r *GormMessageRepository) FindSince(ctx context.Context, roomID uint, name string, since time.Time) ([]domain.ChatMessage, error) {
	l := log.Ctx(ctx)

	var models []domain.ChatMessageModel
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND date_time >= ? AND deleted = ?", roomID, since, false).
		Where("sender = ? OR sender = ? OR receiver IS NULL OR receiver = ?",
			domain.SenderSystem, name, name).
		Order("date_time ASC, id ASC").
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Uint(log.FieldRoomID, roomID).Msg("failed to load message history")
		return nil, err
	}

	msgs := make([]domain.ChatMessage, len(models))
	for i, model := range models {
		msgs[i] = *model.ToDomain()
	}
	return msgs, nil
}
