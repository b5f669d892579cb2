package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
)

// CookieConfig scopes the auth cookies.
type CookieConfig struct {
	Domain string
	// Secure should only be disabled for local development.
	Secure bool
}

func (s *Server) setAuthCookies(c *gin.Context, accessToken, refreshToken string) {
	s.setCookie(c, accessCookie, accessToken, s.accessTTL)
	s.setCookie(c, refreshCookie, refreshToken, s.refreshTTL)
}

func (s *Server) setAccessCookie(c *gin.Context, accessToken string) {
	s.setCookie(c, accessCookie, accessToken, s.accessTTL)
}

func (s *Server) clearAuthCookies(c *gin.Context) {
	s.setCookie(c, accessCookie, "", -time.Second)
	s.setCookie(c, refreshCookie, "", -time.Second)
}

func (s *Server) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	maxAge := int(ttl / time.Second)
	if value == "" {
		maxAge = -1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.cookie.Domain,
		MaxAge:   maxAge,
		Secure:   s.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// bearerOrCookie extracts a token from the Authorization header first, then
// the named cookie. Returns "" when neither is present.
func bearerOrCookie(c *gin.Context, cookieName string) string {
	const prefix = "Bearer "
	if auth := c.GetHeader("Authorization"); len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	value, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return value
}
