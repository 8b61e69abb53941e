package domain

// WebSocket event types from client.
const (
	EventJoin          = "join"
	EventHeartbeat     = "heartbeat"
	EventMessage       = "message"
	EventBlock         = "block"
	EventDeleteMessage = "deleteMessage"
	EventLogout        = "logout"
)

// WebSocket event types to client. EventMessage is used in both
// directions.
const (
	EventPeople         = "people"
	EventUpdateUser     = "updateUser"
	EventMessageDeleted = "messageDeleted"
	EventError          = "error"
)

// Error codes carried by error events.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeRoomNotFound  = "ROOM_NOT_FOUND"
	ErrCodeNameTaken     = "NAME_TAKEN"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// BaseEvent is the envelope shared by all inbound events.
type BaseEvent struct {
	Type string `json:"type"`
}

// Client -> Server events.

type JoinEvent struct {
	Type   string `json:"type"`
	RoomID uint   `json:"roomId" validate:"required,gt=0"`
	Name   string `json:"name" validate:"required,min=1,max=20"`
	Token  string `json:"uuid" validate:"omitempty,uuid"`
}

type HeartbeatEvent struct {
	Type   string `json:"type"`
	RoomID uint   `json:"roomId" validate:"required,gt=0"`
	Name   string `json:"name" validate:"required,min=1,max=20"`
}

type MessageEvent struct {
	Type    string `json:"type"`
	RoomID  uint   `json:"roomId" validate:"required,gt=0"`
	Name    string `json:"name" validate:"required,min=1,max=20"`
	Body    string `json:"message" validate:"required,min=1,max=500"`
	Private bool   `json:"privateMessage"`
	Target  string `json:"target" validate:"omitempty,min=1,max=20"`
}

type BlockEvent struct {
	Type   string `json:"type"`
	RoomID uint   `json:"roomId" validate:"required,gt=0"`
	Name   string `json:"name" validate:"required,min=1,max=20"`
	Target string `json:"target" validate:"required,min=1,max=20"`
}

type DeleteMessageEvent struct {
	Type      string `json:"type"`
	RoomID    uint   `json:"roomId" validate:"required,gt=0"`
	MessageID uint   `json:"messageId" validate:"required,gt=0"`
}

type LogoutEvent struct {
	Type   string `json:"type"`
	RoomID uint   `json:"roomId" validate:"required,gt=0"`
	Name   string `json:"name" validate:"required,min=1,max=20"`
}

// Server -> Client events.

// Person is one presence-list entry.
type Person struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Blocked []string `json:"blocked"`
}

type PeopleEventOut struct {
	Type  string   `json:"type"`
	Users []Person `json:"users"`
}

type MessageEventOut struct {
	Type     string `json:"type"`
	ID       uint   `json:"id"`
	Sender   string `json:"sender"`
	Body     string `json:"message"`
	DateTime string `json:"dateTime"`
	Receiver string `json:"receiver,omitempty"`
	Private  bool   `json:"private,omitempty"`
}

type UpdateUserEventOut struct {
	Type    string   `json:"type"`
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Blocked []string `json:"blocked"`
	Token   string   `json:"uuid"`
}

type MessageDeletedEventOut struct {
	Type string `json:"type"`
	ID   uint   `json:"id"`
}

type ErrorEventOut struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// NewErrorEvent builds an outbound error event.
func NewErrorEvent(code, message string) *ErrorEventOut {
	return &ErrorEventOut{
		Type:  EventError,
		Code:  code,
		Error: message,
	}
}
