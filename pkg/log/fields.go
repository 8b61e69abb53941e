package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Chat
	FieldRoomID = "room_id"
	FieldUser   = "user"
	FieldConnID = "conn_id"
	FieldEvent  = "event"

	// Service
	FieldService = "service"
)
