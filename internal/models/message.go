package models

import "time"

// Message is a single chat line persisted for a room.
// Only the sender's role is stored, never the sender's identity.
type Message struct {
	// ID is the insertion order inside the store and breaks timestamp ties.
	ID uint `gorm:"primaryKey" json:"-"`
	// UID is generated before the first write so a retried insert is a no-op.
	UID        string    `gorm:"type:uuid;not null;uniqueIndex" json:"id"`
	RoomID     string    `gorm:"type:uuid;not null;index:idx_room_msg" json:"room_id"`
	SenderRole Role      `gorm:"type:text;not null" json:"sender_role"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Sentiment  string    `gorm:"type:text" json:"sentiment,omitempty"`
	Language   string    `gorm:"type:text" json:"language,omitempty"`
	SentAt     time.Time `gorm:"not null;index:idx_room_msg" json:"timestamp"`
}
