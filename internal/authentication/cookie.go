package authentication

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieSettings describes the refresh cookie used by the v2 endpoints. The
// cookie is HttpOnly and Secure with SameSite=None so the browser client on
// another origin can send it, and it is scoped to the auth routes.
type CookieSettings struct {
	Name   string
	Path   string
	Domain string
}

func (s CookieSettings) set(c *gin.Context, value string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(s.Name, value, maxAge, s.Path, s.Domain, true, true)
}

func (s CookieSettings) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(s.Name, "", -1, s.Path, s.Domain, true, true)
}

func (s CookieSettings) read(c *gin.Context) string {
	value, err := c.Cookie(s.Name)
	if err != nil {
		return ""
	}
	return value
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
