package chathub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"peerline/backend/internal/analysis"
	"peerline/backend/internal/config"
	"peerline/backend/internal/models"
	"peerline/backend/internal/storage"
)

// MessageLog persists room messages. Writes for one room are serialized by
// the shared room guard, which is also what the end of a room takes, so no
// message can land after a purge.
type MessageLog struct {
	store      storage.Storage
	rooms      *keyedMutex
	classifier analysis.Classifier
	now        func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewMessageLog(store storage.Storage, rooms *keyedMutex, classifier analysis.Classifier) *MessageLog {
	return &MessageLog{
		store:      store,
		rooms:      rooms,
		classifier: classifier,
		now:        time.Now,
		lastSent:   make(map[string]time.Time),
	}
}

// ValidateContent rejects empty and oversized messages.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidContent)
	}
	if utf8.RuneCountInString(content) > config.MaxContentLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidContent, config.MaxContentLength)
	}
	return nil
}

// Append stores a message in an active room and returns it with its
// server-assigned timestamp.
func (l *MessageLog) Append(ctx context.Context, roomID string, role models.Role, content string) (models.Message, error) {
	unlock := l.rooms.Lock(roomID)
	defer unlock()

	room, err := retryOnceValue(ctx, func(ctx context.Context) (*models.Room, error) {
		return l.store.GetRoom(ctx, roomID)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return models.Message{}, ErrRoomNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	return l.appendLocked(ctx, room, role, content)
}

// appendLocked expects the caller to hold the room guard.
func (l *MessageLog) appendLocked(ctx context.Context, room *models.Room, role models.Role, content string) (models.Message, error) {
	if !room.IsActive() {
		return models.Message{}, ErrRoomNotActive
	}
	if err := ValidateContent(content); err != nil {
		return models.Message{}, err
	}

	msg := models.Message{
		UID:        uuid.NewString(),
		RoomID:     room.RoomID,
		SenderRole: role,
		Content:    content,
		SentAt:     l.stamp(room.RoomID),
	}
	if l.classifier != nil {
		msg.Sentiment = string(l.classifier.Classify(content))
		msg.Language = analysis.DetectLanguage(content)
	}

	err := retryOnce(ctx, func(ctx context.Context) error {
		return l.store.AppendMessage(ctx, &msg)
	})
	if errors.Is(err, storage.ErrRoomEnded) {
		return models.Message{}, ErrRoomNotActive
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// stamp returns a timestamp that never goes backwards within a room, even if
// the wall clock does.
func (l *MessageLog) stamp(roomID string) time.Time {
	t := l.now().UTC().Truncate(time.Microsecond)
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.lastSent[roomID]; ok && t.Before(last) {
		t = last
	}
	l.lastSent[roomID] = t
	return t
}

// ListByRoom returns the room's messages oldest first.
func (l *MessageLog) ListByRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	msgs, err := retryOnceValue(ctx, func(ctx context.Context) ([]models.Message, error) {
		return l.store.ListMessages(ctx, roomID)
	})
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// Purge ends the room and drops its history. Only the lifecycle manager
// calls it.
func (l *MessageLog) Purge(ctx context.Context, roomID string, endedAt time.Time) error {
	unlock := l.rooms.Lock(roomID)
	defer unlock()
	return l.purgeLocked(ctx, roomID, endedAt)
}

// purgeLocked deletes every message of the room and marks it ended in one
// store transaction. The caller holds the room guard.
func (l *MessageLog) purgeLocked(ctx context.Context, roomID string, endedAt time.Time) error {
	err := retryOnce(ctx, func(ctx context.Context) error {
		return l.store.EndRoom(ctx, roomID, endedAt)
	})
	l.mu.Lock()
	delete(l.lastSent, roomID)
	l.mu.Unlock()
	return err
}
