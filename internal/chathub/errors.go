package chathub

import "errors"

var (
	// ErrUnauthorized is the generic denial; it never says whether the room exists.
	ErrUnauthorized = errors.New("unauthorized")
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomNotActive is returned for operations on an ended room.
	ErrRoomNotActive = errors.New("room not active")
	// ErrRoleMismatch is returned when a room is requested with a non-helper target.
	ErrRoleMismatch = errors.New("role mismatch")
	// ErrAlreadyEnded marks a repeated end; callers treat it as success.
	ErrAlreadyEnded        = errors.New("room already ended")
	ErrNotAMember          = errors.New("not a member of the room")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrInvalidContent      = errors.New("invalid message content")
	ErrShuttingDown        = errors.New("hub is shutting down")

	// ErrSlowConsumer is returned by a connection whose send queue is full.
	ErrSlowConsumer     = errors.New("connection send queue is full")
	ErrConnectionClosed = errors.New("connection closed")
)

// ErrorCode maps an error to the short code sent to clients. Anything not in
// the taxonomy becomes internal_error so no detail leaks.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNotAMember), errors.Is(err, ErrRoomNotFound):
		return "unauthorized"
	case errors.Is(err, ErrRoomNotActive):
		return "room_not_active"
	case errors.Is(err, ErrRoleMismatch):
		return "role_mismatch"
	case errors.Is(err, ErrParticipantNotFound):
		return "participant_not_found"
	case errors.Is(err, ErrInvalidContent):
		return "invalid_content"
	case errors.Is(err, ErrShuttingDown):
		return "shutting_down"
	default:
		return "internal_error"
	}
}
