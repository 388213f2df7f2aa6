package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"campus-chat/internal/auth"
	"campus-chat/internal/repositories"
)

// AuthMiddleware validates the Authorization bearer token and resolves the
// token subject to an internal user record. Handlers read "userID" from the
// gin context.
func AuthMiddleware(verifier auth.Verifier, users repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		subject, err := verifier.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		user, err := users.GetByExternalID(c.Request.Context(), subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}

		c.Set("userID", user.ID)
		c.Set("externalID", user.ExternalID)
		c.Next()
	}
}
