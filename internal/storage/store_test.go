package storage_test

import (
	"context"
	"testing"
	"time"

	"peerline/backend/internal/models"
	"peerline/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoom(id string, seq int64, seeker, helper string) *models.Room {
	return &models.Room{RoomID: id, Sequence: seq, SeekerID: seeker, HelperID: helper, Status: models.RoomActive}
}

// forEachBackend runs fn against every embedded Storage implementation.
func forEachBackend(t *testing.T, fn func(t *testing.T, s storage.Storage)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, storage.NewMemoryStore())
	})
	t.Run("badger", func(t *testing.T) {
		s, err := storage.OpenBadger("")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func TestStore_Participants(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s storage.Storage) {
		ctx := context.Background()

		helper := &models.Participant{Name: "Zoe", Role: models.RoleHelper}
		other := &models.Participant{Name: "Amir", Role: models.RoleHelper}
		seeker := &models.Participant{Name: "Sam", Role: models.RoleSeeker}
		for _, p := range []*models.Participant{helper, other, seeker} {
			require.NoError(t, s.SaveParticipant(ctx, p))
			assert.NotEmpty(t, p.ID)
		}

		got, err := s.GetParticipant(ctx, helper.ID)
		require.NoError(t, err)
		assert.Equal(t, "Zoe", got.Name)

		_, err = s.GetParticipant(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		helpers, err := s.ListParticipantsByRole(ctx, models.RoleHelper)
		require.NoError(t, err)
		require.Len(t, helpers, 2)
		assert.Equal(t, "Amir", helpers[0].Name)
		assert.Equal(t, "Zoe", helpers[1].Name)
	})
}

func TestStore_Sequence(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s storage.Storage) {
		ctx := context.Background()

		first, _ := s.NextRoomSequence(ctx)
		second, _ := s.NextRoomSequence(ctx)
		assert.Equal(t, int64(1), first)
		assert.Equal(t, int64(2), second)
	})
}

func TestStore_CreateRoomRejectsSecondActivePair(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s storage.Storage) {
		ctx := context.Background()

		require.NoError(t, s.CreateRoom(ctx, newRoom("r1", 1, "s", "h")))
		err := s.CreateRoom(ctx, newRoom("r2", 2, "s", "h"))
		assert.ErrorIs(t, err, storage.ErrActivePairExists)

		// another helper is a different pair
		assert.NoError(t, s.CreateRoom(ctx, newRoom("r3", 3, "s", "h2")))

		found, err := s.FindActiveRoom(ctx, "s", "h")
		require.NoError(t, err)
		assert.Equal(t, "r1", found.RoomID)

		rooms, err := s.ListActiveRoomsFor(ctx, "s")
		require.NoError(t, err)
		assert.Len(t, rooms, 2)
	})
}

func TestStore_EndRoomPurgesAndIsTerminal(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s storage.Storage) {
		ctx := context.Background()
		require.NoError(t, s.CreateRoom(ctx, newRoom("r1", 1, "s", "h")))

		require.NoError(t, s.AppendMessage(ctx, &models.Message{UID: "m1", RoomID: "r1", Content: "a", SentAt: time.Now()}))
		require.NoError(t, s.AppendMessage(ctx, &models.Message{UID: "m2", RoomID: "r1", Content: "b", SentAt: time.Now()}))

		require.NoError(t, s.EndRoom(ctx, "r1", time.Now()))

		history, err := s.ListMessages(ctx, "r1")
		require.NoError(t, err)
		assert.Empty(t, history)

		room, err := s.GetRoom(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, models.RoomEnded, room.Status)
		assert.NotNil(t, room.EndedAt)

		assert.ErrorIs(t, s.EndRoom(ctx, "r1", time.Now()), storage.ErrRoomEnded)
		assert.ErrorIs(t, s.EndRoom(ctx, "nope", time.Now()), storage.ErrNotFound)

		_, err = s.FindActiveRoom(ctx, "s", "h")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		active, _ := s.ListActiveRoomsFor(ctx, "h")
		assert.Empty(t, active)

		// the pair may open a fresh room once the old one has ended
		assert.NoError(t, s.CreateRoom(ctx, newRoom("r2", 2, "s", "h")))
	})
}

func TestStore_AppendIsIdempotentOnUID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s storage.Storage) {
		ctx := context.Background()
		require.NoError(t, s.CreateRoom(ctx, newRoom("r1", 1, "s", "h")))

		msg := &models.Message{UID: "same", RoomID: "r1", Content: "once", SentAt: time.Now()}
		require.NoError(t, s.AppendMessage(ctx, msg))
		require.NoError(t, s.AppendMessage(ctx, &models.Message{UID: "same", RoomID: "r1", Content: "once", SentAt: time.Now()}))

		history, err := s.ListMessages(ctx, "r1")
		require.NoError(t, err)
		assert.Len(t, history, 1)
		assert.Equal(t, uint(1), history[0].ID)
	})
}
