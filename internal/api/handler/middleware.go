package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"peerline/backend/internal/identity"
	"peerline/backend/internal/models"
	"peerline/backend/internal/observability"
)

const (
	headerRequestID = "X-Request-ID"
	participantKey  = "participant"
)

// RequestLogger tags each request with an id and logs it once done.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(headerRequestID, reqID)
		c.Request = c.Request.WithContext(observability.WithRequestID(c.Request.Context(), reqID))

		start := time.Now()
		c.Next()

		observability.LoggerFromContext(c.Request.Context(), log).Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// RequireParticipant authenticates the bearer token and stores the caller
// on the context. allowQuery also accepts ?token=.
func (h *Handler) RequireParticipant(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := identity.BearerToken(c.GetHeader("Authorization"))
		if !ok && allowQuery {
			token = c.Query("token")
			ok = token != ""
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token missing"})
			return
		}

		participant, err := h.Auth.Authenticate(c.Request.Context(), token)
		if errors.Is(err, identity.ErrInvalidToken) || errors.Is(err, identity.ErrUnknownParticipant) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		if err != nil {
			h.writeError(c, err)
			c.Abort()
			return
		}
		c.Set(participantKey, participant)
		c.Next()
	}
}

func caller(c *gin.Context) *models.Participant {
	return c.MustGet(participantKey).(*models.Participant)
}
