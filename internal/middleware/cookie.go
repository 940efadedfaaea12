package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Cookie struct {
	Name     string
	Domain   string
	Secure   bool
	HTTPOnly bool
}

// Set writes value for the time left until expires, measured from now.
func (k Cookie) Set(c *gin.Context, value string, expires, now time.Time) {
	maxAge := int(expires.Sub(now).Seconds())
	if maxAge <= 0 {
		k.Clear(c)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(k.Name, value, maxAge, "/", k.Domain, k.Secure, k.HTTPOnly)
}

func (k Cookie) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(k.Name, "", -1, "/", k.Domain, k.Secure, k.HTTPOnly)
}
