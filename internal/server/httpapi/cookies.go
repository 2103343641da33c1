package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"filevault/internal/server/services"
)

const (
	accessCookieName  = "access_token"
	refreshCookieName = "refresh_token"
)

// setAuthCookies stores both tokens as HttpOnly cookies so browser clients
// never touch the raw JWTs. API clients may ignore the cookies and use the
// Authorization header instead.
func (s *Server) setAuthCookies(c *gin.Context, pair *services.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookieName, pair.AccessToken, int(s.accessTTL.Seconds()), "/", "", false, true)
	c.SetCookie(refreshCookieName, pair.RefreshToken, int(s.refreshTTL.Seconds()), "/", "", false, true)
}

func (s *Server) clearAuthCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookieName, "", -1, "/", "", false, true)
	c.SetCookie(refreshCookieName, "", -1, "/", "", false, true)
}
