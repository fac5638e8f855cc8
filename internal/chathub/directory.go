package chathub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"peerline/backend/internal/models"
	"peerline/backend/internal/storage"
)

// Directory owns room creation and lookup. At most one active room exists
// per seeker/helper pair; the pair lock serializes callers in this process
// and the store's unique constraint settles races between processes.
type Directory struct {
	store     storage.Storage
	publisher storage.EventPublisher
	pairs     *keyedMutex
	log       *slog.Logger
	now       func() time.Time
}

func NewDirectory(store storage.Storage, publisher storage.EventPublisher, log *slog.Logger) *Directory {
	if publisher == nil {
		publisher = storage.NopPublisher{}
	}
	return &Directory{
		store:     store,
		publisher: publisher,
		pairs:     newKeyedMutex(),
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// FindOrCreateRoom returns the active room for the pair, creating it when
// none exists. Concurrent callers for the same pair all get the same room.
func (d *Directory) FindOrCreateRoom(ctx context.Context, seeker, helper *models.Participant) (*models.Room, error) {
	if seeker.Role != models.RoleSeeker || helper.Role != models.RoleHelper {
		return nil, ErrRoleMismatch
	}

	unlock := d.pairs.Lock(seeker.ID + "|" + helper.ID)
	defer unlock()

	room, err := d.findActive(ctx, seeker.ID, helper.ID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	// A counter bump that committed but lost its reply is not rolled back, so
	// a retry can skip a number. Sequences stay increasing, not gap free.
	seq, err := retryOnceValue(ctx, d.store.NextRoomSequence)
	if err != nil {
		return nil, fmt.Errorf("allocate room sequence: %w", err)
	}

	room = &models.Room{
		RoomID:    uuid.NewString(),
		Sequence:  seq,
		SeekerID:  seeker.ID,
		HelperID:  helper.ID,
		Status:    models.RoomActive,
		CreatedAt: d.now(),
	}
	err = retryOnce(ctx, func(ctx context.Context) error {
		return d.store.CreateRoom(ctx, room)
	})
	if errors.Is(err, storage.ErrActivePairExists) {
		// another process (or our own first attempt) got there first
		existing, findErr := d.findActive(ctx, seeker.ID, helper.ID)
		if findErr != nil {
			return nil, fmt.Errorf("reload active room: %w", findErr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	d.log.Info("room created", "room_id", room.RoomID, "sequence", room.Sequence)
	d.publish(ctx, models.RoomEvent{Type: models.RoomEventCreated, RoomID: room.RoomID, Sequence: room.Sequence, At: room.CreatedAt})
	return room, nil
}

func (d *Directory) findActive(ctx context.Context, seekerID, helperID string) (*models.Room, error) {
	return retryOnceValue(ctx, func(ctx context.Context) (*models.Room, error) {
		return d.store.FindActiveRoom(ctx, seekerID, helperID)
	})
}

// ListActiveRoomsFor returns the participant's active rooms ordered by
// sequence.
func (d *Directory) ListActiveRoomsFor(ctx context.Context, participantID string) ([]models.Room, error) {
	rooms, err := retryOnceValue(ctx, func(ctx context.Context) ([]models.Room, error) {
		return d.store.ListActiveRoomsFor(ctx, participantID)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Sequence < rooms[j].Sequence })
	return rooms, nil
}

// GetRoom returns a room in any state.
func (d *Directory) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := retryOnceValue(ctx, func(ctx context.Context) (*models.Room, error) {
		return d.store.GetRoom(ctx, roomID)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

// Authorize loads the room and checks the participant is one of its two
// members. The room may be ended.
func (d *Directory) Authorize(ctx context.Context, roomID, participantID string) (*models.Room, error) {
	room, err := d.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !d.IsMember(room, participantID) {
		return nil, ErrNotAMember
	}
	return room, nil
}

// IsMember reports whether participantID is the room's seeker or helper.
func (d *Directory) IsMember(room *models.Room, participantID string) bool {
	return room != nil && room.HasMember(participantID)
}

func (d *Directory) publish(ctx context.Context, evt models.RoomEvent) {
	if err := d.publisher.PublishRoomEvent(ctx, evt); err != nil {
		d.log.Warn("publish room event", "type", evt.Type, "room_id", evt.RoomID, "error", err)
	}
}
