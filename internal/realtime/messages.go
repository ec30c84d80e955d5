package realtime

import (
	"encoding/json"
	"time"

	"bustrack-backend/internal/gps"
)

// Inbound message types.
const (
	msgJoinRoom       = "join_room"
	msgLeaveRoom      = "leave_room"
	msgPositionReport = "position_report"
)

// Outbound message types.
const (
	msgPositionUpdate  = "position_update"
	msgRoomAck         = "room_ack"
	msgNewNotification = "new_notification"
)

// inboundMessage is the flat wire envelope read from a client. Which fields
// are meaningful depends on Type.
type inboundMessage struct {
	Type string `json:"type"`

	// join_room / leave_room
	Kind string `json:"kind,omitempty"`
	ID   string `json:"id,omitempty"`

	// position_report
	BusID     string     `json:"busId,omitempty"`
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	Speed     *float64   `json:"speed,omitempty"`
	Heading   *float64   `json:"heading,omitempty"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type positionUpdate struct {
	Type string `json:"type"`
	gps.Sample
}

type roomAck struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Room    string `json:"room,omitempty"`
	Error   string `json:"error,omitempty"`
}

type userNotification struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// locationEnvelope rides the relay's location channels. Origin identifies the
// publishing gateway so a process can skip its own messages.
type locationEnvelope struct {
	Origin string     `json:"origin"`
	Sample gps.Sample `json:"sample"`
}

// notificationEnvelope rides the relay's user notification channel.
type notificationEnvelope struct {
	Origin  string          `json:"origin"`
	UserID  string          `json:"userId"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
