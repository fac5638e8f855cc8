package models

import "time"

// RoomStatus is the lifecycle state of a room. Ended is terminal.
type RoomStatus string

const (
	RoomActive RoomStatus = "active"
	RoomEnded  RoomStatus = "ended"
)

// Room is a private conversation between exactly one seeker and one helper.
// The partial unique index on (seeker_id, helper_id) keeps at most one
// active room per pair even when several writers race.
type Room struct {
	// RoomID is the opaque identifier (UUID).
	RoomID string `gorm:"primaryKey" json:"room_id"`
	// Sequence is the human-facing room number, 1 + the largest ever issued.
	Sequence int64      `gorm:"not null;uniqueIndex" json:"sequence"`
	SeekerID string     `gorm:"type:text;not null;uniqueIndex:idx_active_pair,where:status = 'active'" json:"seeker_id"`
	HelperID string     `gorm:"type:text;not null;uniqueIndex:idx_active_pair,where:status = 'active'" json:"helper_id"`
	Status   RoomStatus `gorm:"type:text;not null;index" json:"status"`
	// CreatedAt is the timestamp when the room was opened.
	CreatedAt time.Time `json:"created_at"`
	// EndedAt stays nil while the room is active.
	EndedAt *time.Time `json:"ended_at,omitempty"`
}

// IsActive reports whether messages may still be exchanged in the room.
func (r *Room) IsActive() bool {
	return r.Status == RoomActive
}

// HasMember reports whether participantID is one of the two room members.
func (r *Room) HasMember(participantID string) bool {
	return participantID != "" && (r.SeekerID == participantID || r.HelperID == participantID)
}

// Counterpart returns the other member of the room.
func (r *Room) Counterpart(participantID string) string {
	if r.SeekerID == participantID {
		return r.HelperID
	}
	return r.SeekerID
}

// RoomMember is the participant-to-room relation. Membership lookups go
// through this table instead of references between rows.
type RoomMember struct {
	RoomID        string `gorm:"primaryKey"`
	ParticipantID string `gorm:"primaryKey;index"`
	Role          Role   `gorm:"type:text;not null"`
}
