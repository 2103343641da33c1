// Package httpapi is the HTTP transport for the service: route wiring,
// cookie handling, credential extraction, and mapping of domain errors to
// status codes. All authorization decisions live in the service layer; the
// handlers here only parse requests and translate results.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"filevault/internal/logging"
	"filevault/internal/server/config"
	"filevault/internal/server/services"
)

// Server hosts the public HTTP endpoint.
type Server struct {
	address    string
	logger     logging.Logger
	sessions   *services.SessionService
	files      *services.FileService
	links      *services.ShareLinkService
	accessTTL  time.Duration
	refreshTTL time.Duration
	engine     *gin.Engine
}

// NewServer wires the route table onto a gin engine.
func NewServer(l logging.Logger, sessions *services.SessionService, files *services.FileService,
	links *services.ShareLinkService, cfg *config.Config) *Server {

	s := &Server{
		address:    cfg.EndpointAddr,
		logger:     l.With("module", "http_server"),
		sessions:   sessions,
		files:      files,
		links:      links,
		accessTTL:  cfg.AccessTokenValidityDuration,
		refreshTTL: cfg.RefreshTokenValidityDuration,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	authGroup := engine.Group("/auth")
	{
		authGroup.POST("/register", s.handleRegister)
		authGroup.POST("/login", s.handleLogin)
		authGroup.POST("/refresh", s.handleRefresh)
		authGroup.POST("/logout", s.requireAuth, s.handleLogout)
	}

	fileGroup := engine.Group("/files", s.requireAuth)
	{
		fileGroup.GET("", s.handleListFiles)
		fileGroup.POST("/upload", s.handleUpload)
		fileGroup.GET("/:id/download", s.handleDownload)
		fileGroup.GET("/:id/url", s.handlePresignDownload)
		fileGroup.DELETE("/:id", s.handleDeleteFile)
		fileGroup.POST("/:id/grants", s.handleCreateGrant)
		fileGroup.GET("/:id/grants", s.handleListGrants)
		fileGroup.PATCH("/:id/grants/:user", s.handleUpdateGrant)
		fileGroup.DELETE("/:id/grants/:user", s.handleRevokeGrant)
	}

	shareGroup := engine.Group("/share")
	{
		shareGroup.POST("/:id", s.requireAuth, s.handleCreateShareLink)
		// resolving a link is anonymous: the token is the credential
		shareGroup.GET("/:token", s.handleResolveShareLink)
	}

	s.engine = engine
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.engine,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
