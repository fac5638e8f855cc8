package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createRoomRequest struct {
	HelperID string `json:"helper_id" binding:"required"`
}

func (h *Handler) Helpers(c *gin.Context) {
	helpers, err := h.Gateway.Helpers(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"helpers": helpers})
}

// CreateRoom opens the caller's room with a helper, or returns the one that
// is already active.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	room, err := h.Gateway.CreateOrFindRoom(c.Request.Context(), caller(c), req.HelperID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.Gateway.ListActiveRooms(c.Request.Context(), caller(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *Handler) History(c *gin.Context) {
	msgs, err := h.Gateway.History(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) EndRoom(c *gin.Context) {
	if err := h.Gateway.EndRoom(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}
