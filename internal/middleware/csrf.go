package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"utkarsh/portal/internal/security"
)

// CSRF implements the double-submit check: the header must repeat the
// cookie value and carry a valid signature.
func CSRF(secret string, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		header := c.GetHeader(security.HeaderCSRFToken)
		cookie, err := c.Cookie(cookieName)
		if err != nil || header == "" ||
			subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) != 1 ||
			!security.ValidCSRFToken(secret, header) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "csrf_invalid"})
			return
		}
		c.Next()
	}
}
