package ws

import (
	"time"

	"github.com/D371L/asmodeus/internal/domain"
)

// MessageType represents the type of WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgAddParticipant      MessageType = "add_participant"
	MsgRemoveParticipant   MessageType = "remove_participant"
	MsgReorderParticipants MessageType = "reorder_participants"
	MsgAddPreset           MessageType = "add_preset"
	MsgReset               MessageType = "reset"
	MsgUpdateSettings      MessageType = "update_settings"
	MsgSpin                MessageType = "spin"
	MsgAcknowledge         MessageType = "acknowledge"
	MsgTransformFinished   MessageType = "transform_finished"
	MsgSync                MessageType = "sync"
	MsgPing                MessageType = "ping"
)

// Server → Client message types. Wheel events are sent as they are, typed
// by their domain.EventType.
const (
	MsgConnected MessageType = "connected"
	MsgState     MessageType = "state"
	MsgError     MessageType = "error"
	MsgPong      MessageType = "pong"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(msgType MessageType, payload interface{}) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Server message payloads

// ConnectedPayload is the payload for connected message
type ConnectedPayload struct {
	ClientID string             `json:"clientId"`
	WheelID  string             `json:"wheelId"`
	State    *domain.WheelState `json:"state"`
}

// ErrorPayload is the payload for error message
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidMessage      = "INVALID_MESSAGE"
	ErrCodeDuplicateName       = "DUPLICATE_NAME"
	ErrCodeInvalidName         = "INVALID_NAME"
	ErrCodeWheelFull           = "WHEEL_FULL"
	ErrCodeParticipantNotFound = "PARTICIPANT_NOT_FOUND"
	ErrCodeSpinInProgress      = "SPIN_IN_PROGRESS"
	ErrCodeInvalidAction       = "INVALID_ACTION"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)
