package chathub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"peerline/backend/internal/models"
	"peerline/backend/internal/storage"
)

// Lifecycle ends rooms. Ending is irreversible: history is purged, the
// room turns terminal and local subscribers get one chat_ended event.
type Lifecycle struct {
	dir   *Directory
	msgs  *MessageLog
	bus   *Bus
	rooms *keyedMutex
	log   *slog.Logger
	now   func() time.Time
}

func NewLifecycle(dir *Directory, msgs *MessageLog, bus *Bus, rooms *keyedMutex, log *slog.Logger) *Lifecycle {
	return &Lifecycle{
		dir:   dir,
		msgs:  msgs,
		bus:   bus,
		rooms: rooms,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// End closes the room on behalf of one of its members. It returns
// ErrAlreadyEnded when the room was ended before.
func (lc *Lifecycle) End(ctx context.Context, roomID, requesterID string) error {
	unlock := lc.rooms.Lock(roomID)
	defer unlock()

	room, err := lc.dir.Authorize(ctx, roomID, requesterID)
	if err != nil {
		return err
	}
	if !room.IsActive() {
		return ErrAlreadyEnded
	}

	endedAt := lc.now()
	// ErrRoomEnded here means our first attempt committed or another
	// process ended it after we read; either way local subscribers still need
	// the notice.
	if err := lc.msgs.purgeLocked(ctx, roomID, endedAt); err != nil && !errors.Is(err, storage.ErrRoomEnded) {
		return fmt.Errorf("end room %s: %w", roomID, err)
	}

	notified := lc.bus.evict(roomID, models.ChatEnded(roomID))
	lc.log.Info("room ended", "room_id", roomID, "sequence", room.Sequence, "notified", notified)
	lc.dir.publish(ctx, models.RoomEvent{Type: models.RoomEventEnded, RoomID: roomID, Sequence: room.Sequence, At: endedAt})
	return nil
}
