package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Role tags a participant as the side asking for help or the side giving it.
type Role string

const (
	RoleSeeker Role = "seeker"
	RoleHelper Role = "helper"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleSeeker || r == RoleHelper
}

// Participant is a registered identity known to the messaging core.
// The core only reads ID and Role; the rest are display attributes.
type Participant struct {
	ID     string `gorm:"primaryKey" json:"id"`
	Role   Role   `gorm:"type:text;not null;index" json:"role"`
	Name   string `gorm:"type:text;not null" json:"name"`
	Goal   string `gorm:"type:text" json:"goal,omitempty"`
	Degree string `gorm:"type:text" json:"degree,omitempty"`
	// Expertise lists the topics a helper covers.
	Expertise pq.StringArray `gorm:"type:text[]" json:"expertise,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// BeforeCreate is a GORM hook that assigns a UUID when the ID is not set yet.
func (p *Participant) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}
