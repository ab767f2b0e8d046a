package server

// Room events are sent with their own room.EventType as the message type;
// the constants here cover client messages and the server's own replies.

// MessageType represents a WebSocket message type with type safety
type MessageType string

const (
	// Client to server messages
	MessageTypeFold          MessageType = "fold"
	MessageTypeCheck         MessageType = "check"
	MessageTypeCall          MessageType = "call"
	MessageTypeBet           MessageType = "bet"
	MessageTypeRunCount      MessageType = "run_count"
	MessageTypeAgreeRunCount MessageType = "agree_run_count"
	MessageTypeSocialAction  MessageType = "social_action"
	MessageTypeSetReady      MessageType = "set_ready"
	MessageTypeSitAtTable    MessageType = "sit_at_table"
	MessageTypeLeaveRoom     MessageType = "leave_room"

	// Server to client messages
	MessageTypeLobbyUpdate MessageType = "lobby_update"
	MessageTypeError       MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
