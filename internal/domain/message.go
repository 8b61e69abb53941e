package domain

import (
	"time"
)

// SenderSystem is the stored sender of join/leave announcements; it is
// rendered to clients as SenderSystemDisplay.
const (
	SenderSystem        = "CHAT"
	SenderSystemDisplay = "Chat"
)

// ChatMessage is a routed message. It is immutable once persisted apart
// from the Deleted flag.
type ChatMessage struct {
	ID       uint
	RoomID   uint
	Sender   string
	Receiver string // empty means addressed to the whole room
	Body     string
	DateTime time.Time
	Private  bool
	Deleted  bool
}

// ToEvent renders the message as an outbound wire event. The stored
// system sender is translated to its display form.
func (m *ChatMessage) ToEvent() *MessageEventOut {
	sender := m.Sender
	if sender == SenderSystem {
		sender = SenderSystemDisplay
	}
	return &MessageEventOut{
		Type:     EventMessage,
		ID:       m.ID,
		Sender:   sender,
		Body:     m.Body,
		DateTime: m.DateTime.Format(time.RFC3339),
		Receiver: m.Receiver,
		Private:  m.Private,
	}
}
