package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAdmin must run after RequireSession.
func RequireAdmin(minPermissions int) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := CurrentToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		if tok.User.Admin == nil || tok.User.Admin.Permissions < minPermissions {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
