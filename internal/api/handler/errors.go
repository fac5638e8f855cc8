package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"peerline/backend/internal/chathub"
	"peerline/backend/internal/observability"
)

// writeError maps hub errors to status codes. Anything unexpected is logged
// and answered with a generic 500 so no internal detail reaches the client.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chathub.ErrUnauthorized), errors.Is(err, chathub.ErrNotAMember), errors.Is(err, chathub.ErrRoomNotFound):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case errors.Is(err, chathub.ErrRoleMismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "role mismatch"})
	case errors.Is(err, chathub.ErrRoomNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": "room is not active"})
	case errors.Is(err, chathub.ErrParticipantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "participant not found"})
	case errors.Is(err, chathub.ErrInvalidContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chathub.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
	default:
		observability.LoggerFromContext(c.Request.Context(), h.Log).Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
