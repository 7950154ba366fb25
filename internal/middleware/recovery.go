package middleware

import (
	"net/http"
	"runtime/debug"

	"task-tracker/internal/logger"

	"github.com/gin-gonic/gin"
)

// RecoveryWithLog turns a handler panic into a 500 with the same JSON error
// envelope the task handlers use. The panic value and stack are logged, never
// returned to the client.
func RecoveryWithLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					"panic", r,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"user_id", c.GetString(UserIDKey),
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
