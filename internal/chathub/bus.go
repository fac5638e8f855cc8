package chathub

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"peerline/backend/internal/models"
)

// roomChannel is the subscriber set of one room. Its mutex keeps membership
// changes and fan-out for the room mutually exclusive.
type roomChannel struct {
	mu   sync.Mutex
	subs map[string]Connection
}

// connState tracks which rooms a connection joined so a disconnect can undo
// all of them.
type connState struct {
	conn  Connection
	mu    sync.Mutex
	rooms map[string]struct{}
}

// Bus delivers room events to the connections subscribed to them. State is
// process local; a room not joined on this process has no channel here.
type Bus struct {
	dir   *Directory
	msgs  *MessageLog
	rooms *keyedMutex
	log   *slog.Logger

	mu       sync.RWMutex
	channels map[string]*roomChannel
	conns    map[string]*connState
	closed   bool
}

func NewBus(dir *Directory, msgs *MessageLog, rooms *keyedMutex, log *slog.Logger) *Bus {
	return &Bus{
		dir:      dir,
		msgs:     msgs,
		rooms:    rooms,
		log:      log,
		channels: make(map[string]*roomChannel),
		conns:    make(map[string]*connState),
	}
}

// Attach registers a fresh connection so shutdown reaches it even before
// it joins a room.
func (b *Bus) Attach(conn Connection) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrShuttingDown
	}
	if _, ok := b.conns[conn.ID()]; !ok {
		b.conns[conn.ID()] = &connState{conn: conn, rooms: make(map[string]struct{})}
	}
	return nil
}

// Join subscribes conn to the room after checking the participant is a
// member and the room is active. Joining twice is a no-op.
func (b *Bus) Join(ctx context.Context, conn Connection, roomID, participantID string) error {
	if conn.ParticipantID() != participantID {
		return ErrUnauthorized
	}

	unlock := b.rooms.Lock(roomID)
	defer unlock()

	room, err := b.authorize(ctx, roomID, participantID)
	if err != nil {
		return err
	}
	if !room.IsActive() {
		return ErrRoomNotActive
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrShuttingDown
	}
	ch, ok := b.channels[roomID]
	if !ok {
		ch = &roomChannel{subs: make(map[string]Connection)}
		b.channels[roomID] = ch
	}
	st, ok := b.conns[conn.ID()]
	if !ok {
		st = &connState{conn: conn, rooms: make(map[string]struct{})}
		b.conns[conn.ID()] = st
	}
	b.mu.Unlock()

	ch.mu.Lock()
	ch.subs[conn.ID()] = conn
	ch.mu.Unlock()

	st.mu.Lock()
	st.rooms[roomID] = struct{}{}
	st.mu.Unlock()

	b.log.Debug("joined room", "room_id", roomID, "conn_id", conn.ID())
	return nil
}

// Leave unsubscribes conn from the room. Leaving a room it never joined is
// fine.
func (b *Bus) Leave(conn Connection, roomID string) {
	b.mu.RLock()
	ch := b.channels[roomID]
	st := b.conns[conn.ID()]
	b.mu.RUnlock()

	if ch != nil {
		ch.mu.Lock()
		delete(ch.subs, conn.ID())
		ch.mu.Unlock()
	}
	if st != nil {
		st.mu.Lock()
		delete(st.rooms, roomID)
		st.mu.Unlock()
	}
}

// SendMessage persists content and fans it out to the room. The room guard is
// held across both steps so every subscriber sees messages in the order
// they were stored.
func (b *Bus) SendMessage(ctx context.Context, conn Connection, roomID, participantID, content string) (models.Message, error) {
	if conn.ParticipantID() != participantID {
		return models.Message{}, ErrUnauthorized
	}
	if err := ValidateContent(content); err != nil {
		return models.Message{}, err
	}

	unlock := b.rooms.Lock(roomID)
	defer unlock()

	room, err := b.authorize(ctx, roomID, participantID)
	if err != nil {
		return models.Message{}, err
	}

	role := models.RoleHelper
	if room.SeekerID == participantID {
		role = models.RoleSeeker
	}
	msg, err := b.msgs.appendLocked(ctx, room, role, content)
	if err != nil {
		return models.Message{}, err
	}
	b.Broadcast(roomID, models.MessageCreated(msg))
	return msg, nil
}

// Broadcast delivers evt to every subscriber of the room. Delivery is best
// effort: a subscriber whose Send fails is removed and closed, the rest still
// get the event.
func (b *Bus) Broadcast(roomID string, evt models.Event) {
	b.mu.RLock()
	ch := b.channels[roomID]
	b.mu.RUnlock()
	if ch == nil {
		return
	}

	var failed []Connection
	ch.mu.Lock()
	for id, conn := range ch.subs {
		if err := conn.Send(evt); err != nil {
			delete(ch.subs, id)
			failed = append(failed, conn)
		}
	}
	ch.mu.Unlock()

	for _, conn := range failed {
		b.log.Warn("dropping subscriber", "room_id", roomID, "conn_id", conn.ID(), "participant_id", conn.ParticipantID())
		b.Disconnect(conn)
		conn.Close()
	}
}

// Disconnect removes conn from every room it joined.
func (b *Bus) Disconnect(conn Connection) {
	b.mu.Lock()
	st, ok := b.conns[conn.ID()]
	delete(b.conns, conn.ID())
	b.mu.Unlock()
	if !ok {
		return
	}

	st.mu.Lock()
	rooms := make([]string, 0, len(st.rooms))
	for roomID := range st.rooms {
		rooms = append(rooms, roomID)
	}
	st.rooms = map[string]struct{}{}
	st.mu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, roomID := range rooms {
		if ch := b.channels[roomID]; ch != nil {
			ch.mu.Lock()
			delete(ch.subs, conn.ID())
			ch.mu.Unlock()
		}
	}
}

// evict sends evt to every subscriber once, then drops the room channel.
// Connections that took the notice stay open since they may be joined to
// other rooms. One that failed it is dropped everywhere, as in Broadcast.
func (b *Bus) evict(roomID string, evt models.Event) int {
	b.mu.Lock()
	ch := b.channels[roomID]
	delete(b.channels, roomID)
	b.mu.Unlock()
	if ch == nil {
		return 0
	}

	ch.mu.Lock()
	subs := ch.subs
	ch.subs = map[string]Connection{}
	ch.mu.Unlock()

	var failed []Connection
	for _, conn := range subs {
		if err := conn.Send(evt); err != nil {
			b.log.Warn("room end notice not delivered", "room_id", roomID, "conn_id", conn.ID(), "error", err)
			failed = append(failed, conn)
			continue
		}
		b.mu.RLock()
		st := b.conns[conn.ID()]
		b.mu.RUnlock()
		if st != nil {
			st.mu.Lock()
			delete(st.rooms, roomID)
			st.mu.Unlock()
		}
	}
	for _, conn := range failed {
		b.Disconnect(conn)
		conn.Close()
	}
	return len(subs)
}

// Subscribers reports how many connections are joined to the room.
func (b *Bus) Subscribers(roomID string) int {
	b.mu.RLock()
	ch := b.channels[roomID]
	b.mu.RUnlock()
	if ch == nil {
		return 0
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.subs)
}

// Connections reports how many live connections are attached.
func (b *Bus) Connections() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// Close notifies every connection of the shutdown and closes it. Later
// joins fail with ErrShuttingDown.
func (b *Bus) Close() int {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0
	}
	b.closed = true
	conns := b.conns
	b.conns = make(map[string]*connState)
	b.channels = make(map[string]*roomChannel)
	b.mu.Unlock()

	notice := models.Event{Type: models.EventServerShutdown}
	for _, st := range conns {
		_ = st.conn.Send(notice)
		st.conn.Close()
	}
	return len(conns)
}

func (b *Bus) authorize(ctx context.Context, roomID, participantID string) (*models.Room, error) {
	room, err := b.dir.Authorize(ctx, roomID, participantID)
	if errors.Is(err, ErrRoomNotFound) || errors.Is(err, ErrNotAMember) {
		return nil, ErrUnauthorized
	}
	return room, err
}
