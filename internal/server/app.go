// Package server initializes and runs the application: config, logging,
// database with migrations, object storage, the service layer, and the HTTP
// endpoint with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"filevault/internal/logging"
	"filevault/internal/server/auth"
	"filevault/internal/server/blobstore"
	"filevault/internal/server/config"
	"filevault/internal/server/httpapi"
	"filevault/internal/server/repositories/repomanager"
	"filevault/internal/server/services"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	sessions *services.SessionService
	files    *services.FileService
	links    *services.ShareLinkService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// a missing signing secret must never degrade into unsigned tokens
	codec, err := auth.NewCodec([]byte(cfg.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("token codec init error: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	blobs, err := blobstore.NewS3Store(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("blob storage init error: %w", err)
	}

	sessions := services.NewSessionService(db, m, codec, cfg)
	access := services.NewAccessService(db, m)
	files := services.NewFileService(db, m, blobs, access, logger, cfg)
	links := services.NewShareLinkService(db, m, access)

	return &App{
		config:   cfg,
		logger:   logger,
		db:       db,
		sessions: sessions,
		files:    files,
		links:    links,
	}, nil
}

// revocationSweepInterval is how often expired revocation ledger entries
// are garbage collected.
const revocationSweepInterval = time.Hour

func (app *App) startRevocationSweeper(ctx context.Context) {
	ticker := time.NewTicker(revocationSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.sessions.PurgeExpiredRevocations(ctx)
			if err != nil {
				app.logger.Error(ctx, "revocation sweep error", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "purged expired revocations", "count", n)
			}
		}
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.logger, app.sessions, app.files, app.links, app.config)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startRevocationSweeper(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
