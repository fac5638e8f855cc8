package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"peerline/backend/internal/models"
)

type registerRequest struct {
	Role      models.Role `json:"role" binding:"required,oneof=seeker helper"`
	Name      string      `json:"name" binding:"required,max=80"`
	Goal      string      `json:"goal" binding:"required_if=Role seeker,max=500"`
	Degree    string      `json:"degree" binding:"required_if=Role seeker,max=120"`
	Expertise []string    `json:"expertise" binding:"max=20,dive,required,max=60"`
}

type registerResponse struct {
	Token       string              `json:"token"`
	Participant *models.Participant `json:"participant"`
}

// Register records a participant profile and returns a session token.
// Seekers must state a goal and a degree.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participant := &models.Participant{
		Role:      req.Role,
		Name:      req.Name,
		Goal:      req.Goal,
		Degree:    req.Degree,
		Expertise: req.Expertise,
	}
	if err := h.Store.SaveParticipant(c.Request.Context(), participant); err != nil {
		h.writeError(c, err)
		return
	}

	token, err := h.Tokens.Issue(participant.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, registerResponse{Token: token, Participant: participant})
}

// Me returns the caller's profile.
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, caller(c))
}
