package chathub_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerline/backend/internal/chathub"
	"peerline/backend/internal/models"
)

func TestBus_JoinAndBroadcastToBothMembers(t *testing.T) {
	hub, store := newTestHub(t)
	ctx := context.Background()
	room, seeker, helper := openRoom(t, hub, store)

	sc := newMockConnection(seeker.ID)
	hc := newMockConnection(helper.ID)
	require.NoError(t, hub.Bus.Join(ctx, sc, room.RoomID, seeker.ID))
	require.NoError(t, hub.Bus.Join(ctx, hc, room.RoomID, helper.ID))
	// a second join is a no-op
	require.NoError(t, hub.Bus.Join(ctx, sc, room.RoomID, seeker.ID))
	assert.Equal(t, 2, hub.Bus.Subscribers(room.RoomID))

	msg, err := hub.Bus.SendMessage(ctx, hc, room.RoomID, helper.ID, "how are you?")
	require.NoError(t, err)
	assert.Equal(t, models.RoleHelper, msg.SenderRole)

	for _, conn := range []*MockConnection{sc, hc} {
		evt := conn.next(t)
		assert.Equal(t, models.EventMessage, evt.Type)
		assert.Equal(t, room.RoomID, evt.RoomID)
		assert.Equal(t, "how are you?", evt.Content)
		assert.Equal(t, models.RoleHelper, evt.SenderRole)
		require.NotNil(t, evt.Timestamp)
		assert.True(t, evt.Timestamp.Equal(msg.SentAt))
	}
}

func TestBus_JoinRejectsOutsiders(t *testing.T) {
	hub, store := newTestHub(t)
	ctx := context.Background()
	room, seeker, _ := openRoom(t, hub, store)
	stranger := register(t, store, models.RoleSeeker, "X")

	err := hub.Bus.Join(ctx, newMockConnection(stranger.ID), room.RoomID, stranger.ID)
	assert.ErrorIs(t, err, chathub.ErrUnauthorized)

	err = hub.Bus.Join(ctx, newMockConnection(seeker.ID), "no-such-room", seeker.ID)
	assert.ErrorIs(t, err, chathub.ErrUnauthorized)

	// a connection cannot act for another participant
	err = hub.Bus.Join(ctx, newMockConnection(stranger.ID), room.RoomID, seeker.ID)
	assert.ErrorIs(t, err, chathub.ErrUnauthorized)

	assert.Equal(t, 0, hub.Bus.Subscribers(room.RoomID))
}

func TestBus_JoinEndedRoom(t *testing.T) {
	hub, store := newTestHub(t)
	ctx := context.Background()
	room, seeker, _ := openRoom(t, hub, store)
	require.NoError(t, hub.Lifecycle.End(ctx, room.RoomID, seeker.ID))

	err := hub.Bus.Join(ctx, newMockConnection(seeker.ID), room.RoomID, seeker.ID)
	assert.ErrorIs(t, err, chathub.ErrRoomNotActive)
}

func TestBus_SendRequiresMembership(t *testing.T) {
	hub, store := newTestHub(t)
	ctx := context.Background()
	room, _, _ := openRoom(t, hub, store)
	stranger := register(t, store, models.RoleHelper, "X")

	_, err := hub.Bus.SendMessage(ctx, newMockConnection(stranger.ID), room.RoomID, stranger.ID, "hi")
	assert.ErrorIs(t, err, chathub.ErrUnauthorized)

	history, err := hub.Messages.ListByRoom(ctx, room.RoomID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestBus_FailingSubscriberIsEvicted(t *testing.T) {
	hub, store := newTestHub(t)
	ctx := context.Background()
	room, seeker, helper := openRoom(t, hub, store)

	healthy := newMockConnection(seeker.ID)
	secondTab := newMockConnection(seeker.ID)
	broken := newMockConnection(helper.ID)
	for _, c := range []*MockConnection{healthy, secondTab, broken} {
		require.NoError(t, hub.Bus.Join(ctx, c, room.RoomID, c.ParticipantID()))
	}
	broken.SetFailing()

	_, err := hub.Bus.SendMessage(ctx, healthy, room.RoomID, seeker.ID, "still there?")
	require.NoError(t, err)

	assert.Equal(t, "still there?", healthy.next(t).Content)
	assert.Equal(t, "still there?", secondTab.next(t).Content)
	assert.True(t, broken.IsClosed())
	assert.Equal(t, 2, hub.Bus.Subscribers(room.RoomID))
}

func TestBus_EndDropsSubscriberThatMissedNotice(t *testing.T) {
	hub, store := newTestHub(t)
	ctx := context.Background()
	seeker := register(t, store, models.RoleSeeker, "S")
	h1 := register(t, store, models.RoleHelper, "H1")
	h2 := register(t, store, models.RoleHelper, "H2")
	r1, err := hub.Directory.FindOrCreateRoom(ctx, seeker, h1)
	require.NoError(t, err)
	r2, err := hub.Directory.FindOrCreateRoom(ctx, seeker, h2)
	require.NoError(t, err)

	slow := newMockConnection(seeker.ID)
	other := newMockConnection(h1.ID)
	require.NoError(t, hub.Bus.Join(ctx, slow, r1.RoomID, seeker.ID))
	require.NoError(t, hub.Bus.Join(ctx, slow, r2.RoomID, seeker.ID))
	require.NoError(t, hub.Bus.Join(ctx, other, r1.RoomID, h1.ID))
	slow.SetFailing()

	require.NoError(t, hub.Lifecycle.End(ctx, r1.RoomID, h1.ID))

	assert.Equal(t, models.EventChatEnded, other.next(t).Type)
	assert.False(t, other.IsClosed())
	assert.True(t, slow.IsClosed())
	assert.Equal(t, 0, hub.Bus.Subscribers(r2.RoomID))
}

func TestBus_Leave(t *testing.T) {
	hub, store := newTestHub(t)
	ctx := context.Background()
	room, seeker, helper := openRoom(t, hub, store)

	sc := newMockConnection(seeker.ID)
	hc := newMockConnection(helper.ID)
	require.NoError(t, hub.Bus.Join(ctx, sc, room.RoomID, seeker.ID))
	require.NoError(t, hub.Bus.Join(ctx, hc, room.RoomID, helper.ID))

	hub.Bus.Leave(hc, room.RoomID)
	hub.Bus.Leave(hc, room.RoomID)
	hub.Bus.Leave(hc, "never-joined")

	_, err := hub.Bus.SendMessage(ctx, sc, room.RoomID, seeker.ID, "hello?")
	require.NoError(t, err)
	assert.Equal(t, "hello?", sc.next(t).Content)
	assert.Equal(t, 0, hc.pending())
}

func TestBus_DisconnectRemovesEverySubscription(t *testing.T) {
	hub, store := newTestHub(t)
	ctx := context.Background()
	seeker := register(t, store, models.RoleSeeker, "S")
	h1 := register(t, store, models.RoleHelper, "H1")
	h2 := register(t, store, models.RoleHelper, "H2")
	r1, err := hub.Directory.FindOrCreateRoom(ctx, seeker, h1)
	require.NoError(t, err)
	r2, err := hub.Directory.FindOrCreateRoom(ctx, seeker, h2)
	require.NoError(t, err)

	conn := newMockConnection(seeker.ID)
	require.NoError(t, hub.Bus.Join(ctx, conn, r1.RoomID, seeker.ID))
	require.NoError(t, hub.Bus.Join(ctx, conn, r2.RoomID, seeker.ID))

	hub.Bus.Disconnect(conn)
	hub.Bus.Disconnect(conn)

	assert.Equal(t, 0, hub.Bus.Subscribers(r1.RoomID))
	assert.Equal(t, 0, hub.Bus.Subscribers(r2.RoomID))
}

func TestBus_ConcurrentSendsArriveInStoredOrder(t *testing.T) {
	hub, store := newTestHub(t)
	ctx := context.Background()
	room, seeker, helper := openRoom(t, hub, store)

	sc := newMockConnection(seeker.ID)
	hc := newMockConnection(helper.ID)
	require.NoError(t, hub.Bus.Join(ctx, sc, room.RoomID, seeker.ID))
	require.NoError(t, hub.Bus.Join(ctx, hc, room.RoomID, helper.ID))

	const perSender = 25
	var wg sync.WaitGroup
	for _, sender := range []*MockConnection{sc, hc} {
		wg.Add(1)
		go func(c *MockConnection) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := hub.Bus.SendMessage(ctx, c, room.RoomID, c.ParticipantID(), fmt.Sprintf("%s-%d", c.ParticipantID(), i))
				assert.NoError(t, err)
			}
		}(sender)
	}
	wg.Wait()

	history, err := hub.Messages.ListByRoom(ctx, room.RoomID)
	require.NoError(t, err)
	require.Len(t, history, 2*perSender)

	for _, conn := range []*MockConnection{sc, hc} {
		for i := range history {
			evt := conn.next(t)
			assert.Equal(t, history[i].Content, evt.Content)
		}
	}
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].SentAt.Before(history[i-1].SentAt))
	}
}

func TestHub_ShutdownNotifiesAndRejectsJoins(t *testing.T) {
	hub, store := newTestHub(t)
	ctx := context.Background()
	room, seeker, helper := openRoom(t, hub, store)

	joined := newMockConnection(seeker.ID)
	idle := newMockConnection(helper.ID)
	require.NoError(t, hub.Gateway.Connect(joined))
	require.NoError(t, hub.Gateway.Connect(idle))
	require.NoError(t, hub.Bus.Join(ctx, joined, room.RoomID, seeker.ID))

	require.NoError(t, hub.Shutdown(ctx))

	for _, conn := range []*MockConnection{joined, idle} {
		assert.Equal(t, models.EventServerShutdown, conn.next(t).Type)
		assert.True(t, conn.IsClosed())
	}
	assert.ErrorIs(t, hub.Bus.Join(ctx, newMockConnection(seeker.ID), room.RoomID, seeker.ID), chathub.ErrShuttingDown)
	assert.ErrorIs(t, hub.Gateway.Connect(newMockConnection(seeker.ID)), chathub.ErrShuttingDown)
}
