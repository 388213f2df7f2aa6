package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestID propagates the caller's X-Request-Id or mints one, so every
// request carries an id through logs, audit events and websocket metadata.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
			c.Request.Header.Set("X-Request-Id", requestID)
		}
		c.Writer.Header().Set("X-Request-Id", requestID)
		c.Set("requestID", requestID)
		c.Next()
	}
}
