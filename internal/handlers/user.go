package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"campus-chat/internal/models"
	"campus-chat/internal/repositories"
)

const minSearchQueryLength = 2

// UserHandler serves user lookups for starting conversations.
type UserHandler struct {
	users repositories.UserRepository
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(users repositories.UserRepository) *UserHandler {
	return &UserHandler{users: users}
}

// Search finds users by name or email fragment. Queries shorter than two
// characters are rejected to keep wildcard scans off the users table.
func (h *UserHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if len(query) < minSearchQueryLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query must be at least 2 characters"})
		return
	}

	userID := c.GetInt("userID")
	limit := intQuery(c, "limit", 20)

	users, err := h.users.Search(c.Request.Context(), query, c.Query("university"), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search users"})
		return
	}

	summaries := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	c.JSON(http.StatusOK, gin.H{"users": summaries})
}
