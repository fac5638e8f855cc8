package storage

import (
	"context"
	"errors"
	"time"

	"peerline/backend/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrActivePairExists is returned by CreateRoom when another writer
	// already opened an active room for the same seeker/helper pair.
	ErrActivePairExists = errors.New("storage: active room already exists for pair")
	// ErrRoomEnded is returned by EndRoom when the room is already ended.
	ErrRoomEnded = errors.New("storage: room already ended")
)

// Storage is the persistence boundary of the messaging core.
type Storage interface {
	SaveParticipant(ctx context.Context, p *models.Participant) error
	GetParticipant(ctx context.Context, id string) (*models.Participant, error)
	ListParticipantsByRole(ctx context.Context, role models.Role) ([]models.Participant, error)

	NextRoomSequence(ctx context.Context) (int64, error)
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	FindActiveRoom(ctx context.Context, seekerID, helperID string) (*models.Room, error)
	ListActiveRoomsFor(ctx context.Context, participantID string) ([]models.Room, error)
	// EndRoom deletes every message of the room and marks it ended. A room never
	// reads as ended while any of its messages remain.
	EndRoom(ctx context.Context, roomID string, endedAt time.Time) error

	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, roomID string) ([]models.Message, error)
}

// EventPublisher fans lifecycle notifications out to other processes.
type EventPublisher interface {
	PublishRoomEvent(ctx context.Context, evt models.RoomEvent) error
}

// NopPublisher drops every event. Used with the in-memory backend.
type NopPublisher struct{}

func (NopPublisher) PublishRoomEvent(context.Context, models.RoomEvent) error { return nil }

var (
	_ Storage        = (*MemoryStore)(nil)
	_ Storage        = (*BadgerStore)(nil)
	_ Storage        = (*Service)(nil)
	_ EventPublisher = (*Service)(nil)
)
