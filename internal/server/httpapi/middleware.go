package httpapi

import (
	"strings"

	"github.com/gin-gonic/gin"

	"filevault/internal/common"
	"filevault/internal/server/auth"
	"filevault/internal/server/models"
)

const userContextKey = "currentUser"

// extractAccessToken prefers the Authorization header over the cookie so
// that API clients can override a stale browser session.
func extractAccessToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if token, err := c.Cookie(accessCookieName); err == nil {
		return token
	}
	return ""
}

// requireAuth authenticates the request and stashes the user in the gin
// context. Handlers behind it can assume currentUser returns non-nil.
func (s *Server) requireAuth(c *gin.Context) {
	raw := extractAccessToken(c)
	if raw == "" {
		abortWithError(c, common.ErrUnauthenticated)
		return
	}

	user, err := s.sessions.Authenticate(c.Request.Context(), raw, auth.TokenKindAccess)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Set(userContextKey, user)
	c.Next()
}

func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
