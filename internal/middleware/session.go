package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieSession manages one HTTP-only, SameSite=Lax cookie. The kiosk device
// session and the HR session each get their own instance.
type CookieSession struct {
	name   string
	maxAge time.Duration
	secure bool
}

// NewCookieSession creates a cookie session helper
func NewCookieSession(name string, maxAge time.Duration, secure bool) *CookieSession {
	return &CookieSession{name: name, maxAge: maxAge, secure: secure}
}

// Name returns the cookie name
func (s *CookieSession) Name() string {
	return s.name
}

// Token returns the cookie value, or "" when absent
func (s *CookieSession) Token(c *gin.Context) string {
	token, err := c.Cookie(s.name)
	if err != nil {
		return ""
	}
	return token
}

// Set issues the cookie scoped to path "/"
func (s *CookieSession) Set(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.name, token, int(s.maxAge/time.Second), "/", "", s.secure, true)
}

// Clear expires the cookie on the client
func (s *CookieSession) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.name, "", -1, "/", "", s.secure, true)
}
