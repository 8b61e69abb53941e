package domain

import (
	"time"
)

// RoomModel is the GORM model for the chat_rooms table.
type RoomModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"type:varchar(50);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	Messages []ChatMessageModel `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "chat_rooms"
}

// ToDomain converts RoomModel to domain Room.
func (m *RoomModel) ToDomain() *Room {
	return &Room{
		ID:        m.ID,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
	}
}

// RoomToModel converts domain Room to RoomModel.
func RoomToModel(r *Room) *RoomModel {
	return &RoomModel{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
	}
}

// ChatMessageModel is the GORM model for the chat_messages table.
type ChatMessageModel struct {
	ID       uint      `gorm:"primaryKey;autoIncrement"`
	RoomID   uint      `gorm:"index;not null"`
	Sender   string    `gorm:"type:varchar(20);not null"`
	Receiver *string   `gorm:"type:varchar(20)"`
	Body     string    `gorm:"type:varchar(500);not null;column:message"`
	DateTime time.Time `gorm:"index;not null"`
	Private  bool      `gorm:"not null;default:false"`
	Deleted  bool      `gorm:"not null;default:false"`
}

// TableName specifies the table name for ChatMessageModel.
func (ChatMessageModel) TableName() string {
	return "chat_messages"
}

// ToDomain converts ChatMessageModel to domain ChatMessage.
func (m *ChatMessageModel) ToDomain() *ChatMessage {
	var receiver string
	if m.Receiver != nil {
		receiver = *m.Receiver
	}
	return &ChatMessage{
		ID:       m.ID,
		RoomID:   m.RoomID,
		Sender:   m.Sender,
		Receiver: receiver,
		Body:     m.Body,
		DateTime: m.DateTime,
		Private:  m.Private,
		Deleted:  m.Deleted,
	}
}

// MessageToModel converts domain ChatMessage to ChatMessageModel.
func MessageToModel(msg *ChatMessage) *ChatMessageModel {
	var receiver *string
	if msg.Receiver != "" {
		r := msg.Receiver
		receiver = &r
	}
	return &ChatMessageModel{
		ID:       msg.ID,
		RoomID:   msg.RoomID,
		Sender:   msg.Sender,
		Receiver: receiver,
		Body:     msg.Body,
		DateTime: msg.DateTime,
		Private:  msg.Private,
		Deleted:  msg.Deleted,
	}
}
