package chathub

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/lo"

	"peerline/backend/internal/models"
	"peerline/backend/internal/storage"
)

// RoomSummary is an active room as its member sees it.
type RoomSummary struct {
	models.Room
	Counterpart *models.Participant `json:"counterpart,omitempty"`
}

// Gateway is the only entry point transports use. Every call receives the
// caller as loaded from the participant registry and checks capabilities
// before touching a room.
type Gateway struct {
	store     storage.Storage
	dir       *Directory
	msgs      *MessageLog
	bus       *Bus
	lifecycle *Lifecycle
	log       *slog.Logger
}

// CreateOrFindRoom opens (or returns) the caller's room with helperID.
func (g *Gateway) CreateOrFindRoom(ctx context.Context, caller *models.Participant, helperID string) (*models.Room, error) {
	helper, err := retryOnceValue(ctx, func(ctx context.Context) (*models.Participant, error) {
		return g.store.GetParticipant(ctx, helperID)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, err
	}
	return g.dir.FindOrCreateRoom(ctx, caller, helper)
}

// ListActiveRooms returns the caller's active rooms with the other member's
// profile, ordered by sequence.
func (g *Gateway) ListActiveRooms(ctx context.Context, caller *models.Participant) ([]RoomSummary, error) {
	rooms, err := g.dir.ListActiveRoomsFor(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summary := RoomSummary{Room: room}
		other, err := retryOnceValue(ctx, func(ctx context.Context) (*models.Participant, error) {
			return g.store.GetParticipant(ctx, room.Counterpart(caller.ID))
		})
		switch {
		case err == nil:
			summary.Counterpart = other
		case errors.Is(err, storage.ErrNotFound):
			g.log.Warn("room counterpart missing", "room_id", room.RoomID)
		default:
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// History returns the room's messages to one of its members.
func (g *Gateway) History(ctx context.Context, caller *models.Participant, roomID string) ([]models.Message, error) {
	if _, err := g.dir.Authorize(ctx, roomID, caller.ID); err != nil {
		return nil, deny(err)
	}
	return g.msgs.ListByRoom(ctx, roomID)
}

// EndRoom ends the room. Ending an already ended room succeeds.
func (g *Gateway) EndRoom(ctx context.Context, caller *models.Participant, roomID string) error {
	err := g.lifecycle.End(ctx, roomID, caller.ID)
	if errors.Is(err, ErrAlreadyEnded) {
		return nil
	}
	return deny(err)
}

// Connect admits a new live connection.
func (g *Gateway) Connect(conn Connection) error {
	return g.bus.Attach(conn)
}

func (g *Gateway) Join(ctx context.Context, conn Connection, caller *models.Participant, roomID string) error {
	return g.bus.Join(ctx, conn, roomID, caller.ID)
}

func (g *Gateway) Leave(conn Connection, roomID string) {
	g.bus.Leave(conn, roomID)
}

func (g *Gateway) Send(ctx context.Context, conn Connection, caller *models.Participant, roomID, content string) (models.Message, error) {
	return g.bus.SendMessage(ctx, conn, roomID, caller.ID, content)
}

// Connections reports the live connection count for health checks.
func (g *Gateway) Connections() int {
	return g.bus.Connections()
}

// Disconnect drops every subscription of a closed connection.
func (g *Gateway) Disconnect(conn Connection) {
	g.bus.Disconnect(conn)
}

// Helpers lists every registered helper.
func (g *Gateway) Helpers(ctx context.Context) ([]models.Participant, error) {
	helpers, err := retryOnceValue(ctx, func(ctx context.Context) ([]models.Participant, error) {
		return g.store.ListParticipantsByRole(ctx, models.RoleHelper)
	})
	if err != nil {
		return nil, err
	}
	return lo.Filter(helpers, func(p models.Participant, _ int) bool { return p.Role == models.RoleHelper }), nil
}

// deny hides whether a room exists from callers who are not in it.
func deny(err error) error {
	if errors.Is(err, ErrRoomNotFound) || errors.Is(err, ErrNotAMember) {
		return ErrUnauthorized
	}
	return err
}
