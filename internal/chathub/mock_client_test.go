package chathub_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"peerline/backend/internal/chathub"
	"peerline/backend/internal/models"
	"peerline/backend/internal/storage"
)

// MockConnection records every event pushed to it.
type MockConnection struct {
	id            string
	participantID string
	RecvChannel   chan models.Event

	mu      sync.Mutex
	failing bool
	closed  bool
}

func newMockConnection(participantID string) *MockConnection {
	return &MockConnection{
		id:            uuid.NewString(),
		participantID: participantID,
		RecvChannel:   make(chan models.Event, 64),
	}
}

func (c *MockConnection) ID() string            { return c.id }
func (c *MockConnection) ParticipantID() string { return c.participantID }

func (c *MockConnection) Send(evt models.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing || c.closed {
		return chathub.ErrSlowConsumer
	}
	select {
	case c.RecvChannel <- evt:
		return nil
	default:
		return chathub.ErrSlowConsumer
	}
}

func (c *MockConnection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockConnection) SetFailing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing = true
}

func (c *MockConnection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// next waits briefly for the next event.
func (c *MockConnection) next(t *testing.T) models.Event {
	t.Helper()
	select {
	case evt := <-c.RecvChannel:
		return evt
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return models.Event{}
	}
}

func (c *MockConnection) pending() int {
	return len(c.RecvChannel)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub(t *testing.T) (*chathub.Hub, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	hub := chathub.NewHub(chathub.Options{Store: store, Logger: discardLogger()})
	return hub, store
}

func register(t *testing.T, store storage.Storage, role models.Role, name string) *models.Participant {
	t.Helper()
	p := &models.Participant{Role: role, Name: name}
	require.NoError(t, store.SaveParticipant(context.Background(), p))
	return p
}
