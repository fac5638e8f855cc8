package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"peerline/backend/internal/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MemoryStore keeps everything in process memory. It backs local runs
// and tests; state is lost on restart.
type MemoryStore struct {
	mu           sync.RWMutex
	participants map[string]models.Participant
	rooms        map[string]models.Room
	memberships  map[string][]string // participantID -> roomIDs
	messages     map[string][]models.Message
	messageUIDs  map[string]struct{}
	sequence     int64
	nextMsgID    uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		participants: make(map[string]models.Participant),
		rooms:        make(map[string]models.Room),
		memberships:  make(map[string][]string),
		messages:     make(map[string][]models.Message),
		messageUIDs:  make(map[string]struct{}),
	}
}

func (s *MemoryStore) SaveParticipant(_ context.Context, p *models.Participant) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[p.ID] = *p
	return nil
}

func (s *MemoryStore) GetParticipant(_ context.Context, id string) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListParticipantsByRole(_ context.Context, role models.Role) ([]models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := lo.Filter(lo.Values(s.participants), func(p models.Participant, _ int) bool {
		return p.Role == role
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) NextRoomSequence(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence++
	return s.sequence, nil
}

func (s *MemoryStore) CreateRoom(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, roomID := range s.memberships[room.SeekerID] {
		existing := s.rooms[roomID]
		if existing.HelperID == room.HelperID && existing.IsActive() {
			return ErrActivePairExists
		}
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}
	s.rooms[room.RoomID] = *room
	s.memberships[room.SeekerID] = append(s.memberships[room.SeekerID], room.RoomID)
	s.memberships[room.HelperID] = append(s.memberships[room.HelperID], room.RoomID)
	return nil
}

func (s *MemoryStore) GetRoom(_ context.Context, roomID string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return &room, nil
}

func (s *MemoryStore) FindActiveRoom(_ context.Context, seekerID, helperID string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, roomID := range s.memberships[seekerID] {
		room := s.rooms[roomID]
		if room.SeekerID == seekerID && room.HelperID == helperID && room.IsActive() {
			return &room, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListActiveRoomsFor(_ context.Context, participantID string) ([]models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := lo.Map(s.memberships[participantID], func(roomID string, _ int) models.Room {
		return s.rooms[roomID]
	})
	return lo.Filter(rooms, func(r models.Room, _ int) bool { return r.IsActive() }), nil
}

func (s *MemoryStore) EndRoom(_ context.Context, roomID string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	if !room.IsActive() {
		return ErrRoomEnded
	}
	for _, msg := range s.messages[roomID] {
		delete(s.messageUIDs, msg.UID)
	}
	delete(s.messages, roomID)
	room.Status = models.RoomEnded
	room.EndedAt = &endedAt
	s.rooms[roomID] = room
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.messageUIDs[msg.UID]; dup {
		return nil
	}
	s.nextMsgID++
	msg.ID = s.nextMsgID
	s.messageUIDs[msg.UID] = struct{}{}
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], *msg)
	return nil
}

// ListMessages returns a copy in insertion order, which the message log
// keeps non-decreasing in time.
func (s *MemoryStore) ListMessages(_ context.Context, roomID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.messages[roomID]))
	copy(out, s.messages[roomID])
	return out, nil
}
