package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"campus-chat/internal/chat"
)

// respondError maps the service error taxonomy onto HTTP statuses. The
// websocket surface maps the same errors onto error-event codes, so both
// surfaces agree on outcomes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrAuthenticationFailed):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
