package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"peerline/backend/internal/chathub"
	"peerline/backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: restrict to the web client's origin once it has a fixed host.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades an authenticated request and hands the socket to
// the hub.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	participant := caller(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote the error response
		h.Log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := chathub.NewWebSocketClient(conn, participant, h.Gateway, h.SendBuffer, h.Log)
	if err := h.Gateway.Connect(client); err != nil {
		conn.WriteJSON(models.Event{Type: models.EventError, Error: chathub.ErrorCode(err)})
		conn.Close()
		return
	}
	client.Run()
}
