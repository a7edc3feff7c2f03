package approuters

import (
	"net/http"
	"strings"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/auth"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/handler"

	"github.com/gin-gonic/gin"
)

// AuthRequired verifies the Bearer token and injects the authenticated user
// id into the request context for the handlers.
func AuthRequired(tm *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, err := tm.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(handler.CurrentUserID, userID)
		c.Next()
	}
}
