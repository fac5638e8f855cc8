package models

import "time"

// Frame types exchanged over a live connection.
const (
	FrameJoin    = "join"
	FrameLeave   = "leave"
	FrameMessage = "message"

	EventJoined         = "joined"
	EventLeft           = "left"
	EventMessage        = "message"
	EventChatEnded      = "chat_ended"
	EventError          = "error"
	EventServerShutdown = "server_shutdown"
)

// ClientFrame is what a client sends over the socket.
type ClientFrame struct {
	Type    string `json:"type"`
	RoomID  string `json:"room"`
	Content string `json:"content,omitempty"`
}

// Event is what the server pushes to subscribed connections.
type Event struct {
	Type       string     `json:"type"`
	RoomID     string     `json:"room,omitempty"`
	Content    string     `json:"content,omitempty"`
	SenderRole Role       `json:"sender_role,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	Sentiment  string     `json:"sentiment,omitempty"`
	Language   string     `json:"language,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// MessageCreated builds the broadcast for a freshly persisted message.
func MessageCreated(msg Message) Event {
	ts := msg.SentAt
	return Event{
		Type:       EventMessage,
		RoomID:     msg.RoomID,
		Content:    msg.Content,
		SenderRole: msg.SenderRole,
		Timestamp:  &ts,
		Sentiment:  msg.Sentiment,
		Language:   msg.Language,
	}
}

// ChatEnded builds the notification fired once when a room is closed.
func ChatEnded(roomID string) Event {
	return Event{Type: EventChatEnded, RoomID: roomID}
}

// RoomEvent is a content-free lifecycle notification published to other
// processes (admin tooling, dashboards).
type RoomEvent struct {
	Type     string    `json:"type"`
	RoomID   string    `json:"room_id"`
	Sequence int64     `json:"sequence"`
	At       time.Time `json:"at"`
}

const (
	RoomEventCreated = "room_created"
	RoomEventEnded   = "room_ended"
)
