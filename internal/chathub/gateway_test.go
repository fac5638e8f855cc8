package chathub_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerline/backend/internal/chathub"
	"peerline/backend/internal/models"
)

func TestGateway_CreateOrFindRoom(t *testing.T) {
	hub, store := newTestHub(t)
	ctx := context.Background()
	seeker := register(t, store, models.RoleSeeker, "S")
	helper := register(t, store, models.RoleHelper, "H")

	room, err := hub.Gateway.CreateOrFindRoom(ctx, seeker, helper.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), room.Sequence)

	_, err = hub.Gateway.CreateOrFindRoom(ctx, seeker, "ghost")
	assert.ErrorIs(t, err, chathub.ErrParticipantNotFound)

	_, err = hub.Gateway.CreateOrFindRoom(ctx, seeker, seeker.ID)
	assert.ErrorIs(t, err, chathub.ErrRoleMismatch)
}

func TestGateway_ListActiveRoomsIncludesCounterpart(t *testing.T) {
	hub, store := newTestHub(t)
	ctx := context.Background()
	seeker := register(t, store, models.RoleSeeker, "Sam")
	h1 := register(t, store, models.RoleHelper, "Ada")
	h2 := register(t, store, models.RoleHelper, "Bo")
	_, err := hub.Gateway.CreateOrFindRoom(ctx, seeker, h1.ID)
	require.NoError(t, err)
	_, err = hub.Gateway.CreateOrFindRoom(ctx, seeker, h2.ID)
	require.NoError(t, err)

	rooms, err := hub.Gateway.ListActiveRooms(ctx, seeker)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "Ada", rooms[0].Counterpart.Name)
	assert.Equal(t, "Bo", rooms[1].Counterpart.Name)
	assert.Less(t, rooms[0].Sequence, rooms[1].Sequence)

	helperView, err := hub.Gateway.ListActiveRooms(ctx, h2)
	require.NoError(t, err)
	require.Len(t, helperView, 1)
	assert.Equal(t, "Sam", helperView[0].Counterpart.Name)
}

func TestGateway_HistoryHidesRoomsFromOutsiders(t *testing.T) {
	hub, store := newTestHub(t)
	ctx := context.Background()
	room, seeker, _ := openRoom(t, hub, store)
	stranger := register(t, store, models.RoleSeeker, "X")
	_, err := hub.Messages.Append(ctx, room.RoomID, models.RoleSeeker, "private")
	require.NoError(t, err)

	history, err := hub.Gateway.History(ctx, seeker, room.RoomID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = hub.Gateway.History(ctx, stranger, room.RoomID)
	assert.ErrorIs(t, err, chathub.ErrUnauthorized)
	_, err = hub.Gateway.History(ctx, stranger, "missing")
	assert.ErrorIs(t, err, chathub.ErrUnauthorized)
}

func TestGateway_EndRoomIsIdempotent(t *testing.T) {
	hub, store := newTestHub(t)
	ctx := context.Background()
	room, seeker, helper := openRoom(t, hub, store)
	stranger := register(t, store, models.RoleSeeker, "X")

	assert.ErrorIs(t, hub.Gateway.EndRoom(ctx, stranger, room.RoomID), chathub.ErrUnauthorized)
	require.NoError(t, hub.Gateway.EndRoom(ctx, seeker, room.RoomID))
	require.NoError(t, hub.Gateway.EndRoom(ctx, helper, room.RoomID))
	assert.ErrorIs(t, hub.Gateway.EndRoom(ctx, seeker, "missing"), chathub.ErrUnauthorized)
}

func TestGateway_Helpers(t *testing.T) {
	hub, store := newTestHub(t)
	register(t, store, models.RoleSeeker, "S")
	register(t, store, models.RoleHelper, "Ada")
	register(t, store, models.RoleHelper, "Bo")

	helpers, err := hub.Gateway.Helpers(context.Background())
	require.NoError(t, err)
	require.Len(t, helpers, 2)
	assert.Equal(t, "Ada", helpers[0].Name)
	assert.Equal(t, "Bo", helpers[1].Name)
}

// A full conversation: room one opens, talks, ends; the next room for the
// same pair is number two and starts empty.
func TestGateway_ConversationScenario(t *testing.T) {
	hub, store := newTestHub(t)
	ctx := context.Background()
	seeker := register(t, store, models.RoleSeeker, "S")
	helper := register(t, store, models.RoleHelper, "H")

	r1, err := hub.Gateway.CreateOrFindRoom(ctx, seeker, helper.ID)
	require.NoError(t, err)
	same, err := hub.Gateway.CreateOrFindRoom(ctx, seeker, helper.ID)
	require.NoError(t, err)
	require.Equal(t, r1.RoomID, same.RoomID)

	sc := newMockConnection(seeker.ID)
	hc := newMockConnection(helper.ID)
	require.NoError(t, hub.Gateway.Connect(sc))
	require.NoError(t, hub.Gateway.Connect(hc))
	require.NoError(t, hub.Gateway.Join(ctx, sc, seeker, r1.RoomID))
	require.NoError(t, hub.Gateway.Join(ctx, hc, helper, r1.RoomID))

	_, err = hub.Gateway.Send(ctx, sc, seeker, r1.RoomID, "hello")
	require.NoError(t, err)
	_, err = hub.Gateway.Send(ctx, hc, helper, r1.RoomID, "hi, I'm here")
	require.NoError(t, err)

	history, err := hub.Gateway.History(ctx, helper, r1.RoomID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleSeeker, history[0].SenderRole)
	assert.Equal(t, models.RoleHelper, history[1].SenderRole)

	require.NoError(t, hub.Gateway.EndRoom(ctx, seeker, r1.RoomID))
	history, err = hub.Gateway.History(ctx, seeker, r1.RoomID)
	require.NoError(t, err)
	assert.Empty(t, history)

	r2, err := hub.Gateway.CreateOrFindRoom(ctx, seeker, helper.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r2.Sequence)
	history, err = hub.Gateway.History(ctx, seeker, r2.RoomID)
	require.NoError(t, err)
	assert.Empty(t, history)

	hub.Gateway.Disconnect(sc)
	hub.Gateway.Leave(hc, r1.RoomID)
}
