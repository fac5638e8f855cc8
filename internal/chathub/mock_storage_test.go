package chathub_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"peerline/backend/internal/models"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) SaveParticipant(ctx context.Context, p *models.Participant) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockStorage) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Participant), args.Error(1)
}

func (m *MockStorage) ListParticipantsByRole(ctx context.Context, role models.Role) ([]models.Participant, error) {
	args := m.Called(ctx, role)
	return args.Get(0).([]models.Participant), args.Error(1)
}

func (m *MockStorage) NextRoomSequence(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) CreateRoom(ctx context.Context, room *models.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockStorage) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *MockStorage) FindActiveRoom(ctx context.Context, seekerID, helperID string) (*models.Room, error) {
	args := m.Called(ctx, seekerID, helperID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *MockStorage) ListActiveRoomsFor(ctx context.Context, participantID string) ([]models.Room, error) {
	args := m.Called(ctx, participantID)
	return args.Get(0).([]models.Room), args.Error(1)
}

func (m *MockStorage) EndRoom(ctx context.Context, roomID string, endedAt time.Time) error {
	args := m.Called(ctx, roomID, endedAt)
	return args.Error(0)
}

func (m *MockStorage) AppendMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStorage) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).([]models.Message), args.Error(1)
}
