package chathub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"peerline/backend/internal/config"
	"peerline/backend/internal/models"
)

// WebSocketClient implements Connection over gorilla/websocket.
type WebSocketClient struct {
	id          string
	participant *models.Participant
	conn        *websocket.Conn
	gateway     *Gateway
	log         *slog.Logger

	mu     sync.Mutex
	send   chan models.Event
	closed bool
}

func NewWebSocketClient(conn *websocket.Conn, participant *models.Participant, gateway *Gateway, bufferSize int, log *slog.Logger) *WebSocketClient {
	id := uuid.NewString()
	return &WebSocketClient{
		id:          id,
		participant: participant,
		conn:        conn,
		gateway:     gateway,
		send:        make(chan models.Event, bufferSize),
		log:         log.With("conn_id", id, "participant_id", participant.ID),
	}
}

func (c *WebSocketClient) ID() string            { return c.id }
func (c *WebSocketClient) ParticipantID() string { return c.participant.ID }

// Send queues evt for the write pump and never blocks.
func (c *WebSocketClient) Send(evt models.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- evt:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close stops the write pump, which then closes the socket.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Run starts both pumps. It returns immediately.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

func (c *WebSocketClient) readPump() {
	// operations started by this connection stop when it goes away
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.gateway.Disconnect(c)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read failed", "error", err)
			}
			return
		}

		var frame models.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.reply(models.Event{Type: models.EventError, Error: "malformed_frame"})
			continue
		}
		c.handleFrame(ctx, frame)
	}
}

func (c *WebSocketClient) handleFrame(ctx context.Context, frame models.ClientFrame) {
	switch frame.Type {
	case models.FrameJoin:
		if err := c.gateway.Join(ctx, c, c.participant, frame.RoomID); err != nil {
			c.fail(frame.RoomID, err)
			return
		}
		c.reply(models.Event{Type: models.EventJoined, RoomID: frame.RoomID})
	case models.FrameLeave:
		c.gateway.Leave(c, frame.RoomID)
		c.reply(models.Event{Type: models.EventLeft, RoomID: frame.RoomID})
	case models.FrameMessage:
		// the sender hears its own message through the room broadcast
		if _, err := c.gateway.Send(ctx, c, c.participant, frame.RoomID, frame.Content); err != nil {
			c.fail(frame.RoomID, err)
		}
	default:
		c.reply(models.Event{Type: models.EventError, RoomID: frame.RoomID, Error: "unknown_frame"})
	}
}

func (c *WebSocketClient) fail(roomID string, err error) {
	code := ErrorCode(err)
	if code == "internal_error" {
		c.log.Error("frame failed", "room_id", roomID, "error", err)
	}
	c.reply(models.Event{Type: models.EventError, RoomID: roomID, Error: code})
}

func (c *WebSocketClient) reply(evt models.Event) {
	if err := c.Send(evt); err != nil {
		c.log.Debug("reply dropped", "type", evt.Type, "error", err)
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(evt); err != nil {
				c.log.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
