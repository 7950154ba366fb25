package middleware

import (
	"net/http"
	"strings"

	"task-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

// UserIDKey is the gin context key holding the verified identity.
const UserIDKey = "user_id"

// Authenticate runs the token verifier on the bearer credential and stores
// the resulting identity under UserIDKey. Requests without a valid token are
// rejected before any handler runs.
func Authenticate(verifier services.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthenticated(c)
			return
		}

		userID, err := verifier.Verify(tokenStr)
		if err != nil {
			abortUnauthenticated(c)
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID returns the identity stored by Authenticate.
func UserID(c *gin.Context) (string, bool) {
	userID := c.GetString(UserIDKey)
	return userID, userID != ""
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

func abortUnauthenticated(c *gin.Context) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthenticated",
		"message": "Invalid token",
	})
}
