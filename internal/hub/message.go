package hub

import (
	"time"
)

// Server to client message types.
const (
	TypeControlUpdate    = "control_update"
	TypeMappingUpdated   = "mapping_updated"
	TypeJoystickInfo     = "joystick_info"
	TypeVehicleState     = "vehicle_state"
	TypeConnectionStatus = "connection_status"
	TypeError            = "error"
)

// Client to server command types.
const (
	CmdSelectJoystick  = "select_joystick"
	CmdUpdateMapping   = "update_mapping"
	CmdCheckConnection = "check_connection"
)

// WSMessage represents a WebSocket message sent from server to client.
type WSMessage struct {
	Type      string   `json:"type"`
	Seq       int64    `json:"seq"`       // Sequence number for ordering
	Timestamp int64    `json:"timestamp"` // Unix timestamp in milliseconds
	Data      any      `json:"data,omitempty"`
	Error     string   `json:"error,omitempty"`
	Rejected  []string `json:"rejected,omitempty"`
}

// NewMessage creates a message of the given type carrying data.
func NewMessage(seq int64, typ string, data any) *WSMessage {
	return &WSMessage{
		Type:      typ,
		Seq:       seq,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorMessage reports a failed command back to the client that sent it.
func NewErrorMessage(seq int64, err error, rejected []error) *WSMessage {
	msg := &WSMessage{
		Type:      TypeError,
		Seq:       seq,
		Timestamp: time.Now().UnixMilli(),
	}
	if err != nil {
		msg.Error = err.Error()
	}
	for _, r := range rejected {
		msg.Rejected = append(msg.Rejected, r.Error())
	}
	return msg
}

// ClientMessage represents a message sent from the client to the server.
type ClientMessage struct {
	Type    string         `json:"type"`
	Index   *int           `json:"index,omitempty"`
	Mapping map[string]any `json:"mapping,omitempty"`
}
