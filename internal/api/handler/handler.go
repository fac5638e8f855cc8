// Package handler exposes the chat hub over HTTP and WebSocket.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"peerline/backend/internal/chathub"
	"peerline/backend/internal/identity"
	"peerline/backend/internal/observability"
	"peerline/backend/internal/storage"
)

// TokenIssuer signs a session token for a participant.
type TokenIssuer interface {
	Issue(participantID string) (string, error)
}

// Handler holds what the routes need: the hub gateway for room operations
// and the identity pieces for authentication.
type Handler struct {
	Gateway    *chathub.Gateway
	Store      storage.Storage
	Auth       identity.Provider
	Tokens     TokenIssuer
	Log        *slog.Logger
	SendBuffer int
}

func NewHandler(gateway *chathub.Gateway, store storage.Storage, auth identity.Provider, tokens TokenIssuer, log *slog.Logger, sendBuffer int) *Handler {
	return &Handler{
		Gateway:    gateway,
		Store:      store,
		Auth:       auth,
		Tokens:     tokens,
		Log:        log,
		SendBuffer: sendBuffer,
	}
}

// Router builds the gin engine with every route mounted.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(h.Log))

	api := r.Group("/api")
	api.GET("/health", h.Health)
	api.POST("/participants", h.Register)

	authed := api.Group("", h.RequireParticipant(false))
	authed.GET("/me", h.Me)
	authed.GET("/helpers", h.Helpers)
	authed.POST("/rooms", h.CreateRoom)
	authed.GET("/rooms", h.ListRooms)
	authed.GET("/rooms/:id/messages", h.History)
	authed.POST("/rooms/:id/end", h.EndRoom)

	// browsers cannot set headers on a websocket handshake
	r.GET("/ws", h.RequireParticipant(true), h.ServeWebSocket)
	return r
}

// Health reports liveness plus process stats. Failing to read the stats does
// not fail the check.
func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok", "connections": h.Gateway.Connections()}
	if stats, err := observability.CurrentProcessStats(); err == nil {
		resp["process"] = stats
	} else {
		h.Log.Debug("process stats unavailable", "error", err)
	}
	c.JSON(http.StatusOK, resp)
}
