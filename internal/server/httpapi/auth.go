package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, pair, err := s.sessions.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.setAuthCookies(c, pair)
	c.JSON(http.StatusCreated, gin.H{
		"user":          userResponse{ID: user.ID, Name: user.Name, Email: user.Email},
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, pair, err := s.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.setAuthCookies(c, pair)
	c.JSON(http.StatusOK, gin.H{
		"user":          userResponse{ID: user.ID, Name: user.Name, Email: user.Email},
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// handleRefresh takes the refresh token from the cookie, falling back to the
// JSON body for cookie-less clients.
func (s *Server) handleRefresh(c *gin.Context) {
	raw, _ := c.Cookie(refreshCookieName)
	if raw == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			raw = req.RefreshToken
		}
	}

	pair, err := s.sessions.Refresh(c.Request.Context(), raw)
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.setAuthCookies(c, pair)
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// handleLogout revokes whatever tokens the request carried and clears the
// cookies. Repeating a logout is not an error.
func (s *Server) handleLogout(c *gin.Context) {
	access := extractAccessToken(c)
	refresh, _ := c.Cookie(refreshCookieName)

	if err := s.sessions.Logout(c.Request.Context(), access, refresh); err != nil {
		abortWithError(c, err)
		return
	}

	s.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}
