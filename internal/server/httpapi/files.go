package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"filevault/internal/common"
	"filevault/internal/server/models"
)

type fileResponse struct {
	ID           int64     `json:"id"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	OwnerID      int64     `json:"owner_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func toFileResponse(f *models.File) fileResponse {
	return fileResponse{
		ID:           f.ID,
		OriginalName: f.OriginalName,
		ContentType:  f.ContentType,
		Size:         f.Size,
		OwnerID:      f.OwnerID,
		CreatedAt:    f.CreatedAt,
	}
}

func fileIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.ErrInvalidArgument
	}
	return id, nil
}

func (s *Server) handleListFiles(c *gin.Context) {
	user := currentUser(c)

	owned, shared, err := s.files.List(c.Request.Context(), user)
	if err != nil {
		abortWithError(c, err)
		return
	}

	ownedResp := make([]fileResponse, 0, len(owned))
	for _, f := range owned {
		ownedResp = append(ownedResp, toFileResponse(f))
	}
	sharedResp := make([]fileResponse, 0, len(shared))
	for _, f := range shared {
		sharedResp = append(sharedResp, toFileResponse(f))
	}

	c.JSON(http.StatusOK, gin.H{"owned": ownedResp, "shared": sharedResp})
}

func (s *Server) handleUpload(c *gin.Context) {
	user := currentUser(c)

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}

	src, err := header.Open()
	if err != nil {
		abortWithError(c, common.ErrInternal)
		return
	}
	defer src.Close()

	file, err := s.files.Upload(c.Request.Context(), user, header.Filename,
		header.Header.Get("Content-Type"), src, header.Size)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toFileResponse(file))
}

func (s *Server) handleDownload(c *gin.Context) {
	user := currentUser(c)

	id, err := fileIDParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	file, body, err := s.files.Open(c.Request.Context(), user, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer body.Close()

	s.streamFile(c, file, body)
}

const presignValidity = 15 * time.Minute

// handlePresignDownload hands out a temporary direct URL into object storage
// instead of proxying the bytes.
func (s *Server) handlePresignDownload(c *gin.Context) {
	user := currentUser(c)

	id, err := fileIDParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	file, url, err := s.files.PresignDownload(c.Request.Context(), user, id, presignValidity)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":           url,
		"original_name": file.OriginalName,
		"expires_in":    int(presignValidity.Seconds()),
	})
}

func (s *Server) handleDeleteFile(c *gin.Context) {
	user := currentUser(c)

	id, err := fileIDParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := s.files.Delete(c.Request.Context(), user, id); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type grantRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Level  string `json:"access_level"`
}

type grantLevelRequest struct {
	Level string `json:"access_level" binding:"required"`
}

func granteeIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("user"), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.ErrInvalidArgument
	}
	return id, nil
}

func (s *Server) handleCreateGrant(c *gin.Context) {
	user := currentUser(c)

	id, err := fileIDParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	level := models.AccessLevel(req.Level)
	if req.Level == "" {
		level = models.AccessLevelRead
	}

	grant, err := s.files.Grant(c.Request.Context(), user, id, req.UserID, level)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"file_id":      grant.FileID,
		"user_id":      grant.GranteeID,
		"access_level": grant.Level,
	})
}

func (s *Server) handleListGrants(c *gin.Context) {
	user := currentUser(c)

	id, err := fileIDParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	grants, err := s.files.ListGrants(c.Request.Context(), user, id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := make([]gin.H, 0, len(grants))
	for _, g := range grants {
		resp = append(resp, gin.H{
			"user_id":      g.UserID,
			"name":         g.Name,
			"email":        g.Email,
			"access_level": g.Level,
		})
	}
	c.JSON(http.StatusOK, gin.H{"grants": resp})
}

func (s *Server) handleUpdateGrant(c *gin.Context) {
	user := currentUser(c)

	id, err := fileIDParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	granteeID, err := granteeIDParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var req grantLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.files.UpdateGrant(c.Request.Context(), user, id, granteeID, models.AccessLevel(req.Level)); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (s *Server) handleRevokeGrant(c *gin.Context) {
	user := currentUser(c)

	id, err := fileIDParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	granteeID, err := granteeIDParam(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := s.files.RevokeGrant(c.Request.Context(), user, id, granteeID); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

// streamFile writes the blob to the client without buffering it in memory.
func (s *Server) streamFile(c *gin.Context, file *models.File, body io.Reader) {
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	extraHeaders := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", file.OriginalName),
	}
	c.DataFromReader(http.StatusOK, file.Size, contentType, body, extraHeaders)
}
