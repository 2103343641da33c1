package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type shareLinkRequest struct {
	ExpiresHours int `json:"expires_hours"`
	MaxDownloads int `json:"max_downloads"`
}

const (
	defaultShareTTL          = 24 * time.Hour
	defaultShareMaxDownloads = 1
)

func (s *Server) handleCreateShareLink(c *gin.Context) {
	user := currentUser(c)

	id, err := fileIDParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	req := shareLinkRequest{MaxDownloads: defaultShareMaxDownloads}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ttl := defaultShareTTL
	if req.ExpiresHours > 0 {
		ttl = time.Duration(req.ExpiresHours) * time.Hour
	}

	link, err := s.links.Create(c.Request.Context(), user, id, ttl, req.MaxDownloads)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":         link.Token,
		"url":           "/share/" + link.Token,
		"expires_at":    link.ExpiresAt,
		"max_downloads": link.MaxDownloads,
	})
}

// handleResolveShareLink is the only anonymous download path: the token in
// the URL is the whole credential. One successful call consumes one unit of
// the link's quota before any bytes are sent.
func (s *Server) handleResolveShareLink(c *gin.Context) {
	token := c.Param("token")

	file, err := s.links.Resolve(c.Request.Context(), token)
	if err != nil {
		abortWithError(c, err)
		return
	}

	body, err := s.files.OpenBlob(c.Request.Context(), file)
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer body.Close()

	s.streamFile(c, file, body)
}
