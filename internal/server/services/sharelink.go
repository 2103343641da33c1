package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"filevault/internal/common"
	"filevault/internal/server/models"
	"filevault/internal/server/repositories/repomanager"
)

// shareTokenBytes sizes the random token; 32 bytes makes collisions and
// guessing negligible.
const shareTokenBytes = 32

// ShareLinkService mints anonymous, quota-limited, expiring capability
// tokens bound to one file, and resolves them on the anonymous download
// path.
type ShareLinkService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	access      *AccessService
}

// NewShareLinkService constructs a ShareLinkService.
func NewShareLinkService(db *sql.DB, m repomanager.RepositoryManager, access *AccessService) *ShareLinkService {
	return &ShareLinkService{db: db, repomanager: m, access: access}
}

// Create mints a share link for fileID. Only an actor with manage rights on
// the file (its owner) may create links. maxDownloads == 0 means unlimited.
// A token collision on insert is retried once with fresh entropy and then
// surfaced as an internal error.
func (s *ShareLinkService) Create(ctx context.Context, issuer *models.User, fileID int64, ttl time.Duration, maxDownloads int) (*models.ShareLink, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, issuer, file, ActionManage); err != nil {
		return nil, err
	}
	if maxDownloads < 0 {
		return nil, fmt.Errorf("negative max downloads: %w", common.ErrInvalidArgument)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("non-positive ttl: %w", common.ErrInvalidArgument)
	}

	repo := s.repomanager.ShareLinks(s.db)

	for attempt := 0; attempt < 2; attempt++ {
		token, err := common.MakeRandURLString(shareTokenBytes)
		if err != nil {
			return nil, common.ErrInternal
		}

		link := &models.ShareLink{
			Token:        token,
			FileID:       file.ID,
			ExpiresAt:    time.Now().Add(ttl),
			MaxDownloads: maxDownloads,
		}

		link, err = repo.Create(ctx, link)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, common.ErrAlreadyExists) {
			return nil, err
		}
		// token collision: retry once with a fresh token
	}
	return nil, common.ErrInternal
}

// Resolve exchanges a bearer token for the linked file, consuming one
// download from the quota. The quota check and the increment are one
// conditional write in the store; when that write matches no row, the link
// is re-read to decide between ErrNotFound (unknown token), ErrLinkExpired,
// ErrLinkExhausted, and a lost race. A lost race against a link that still
// looks resolvable is retried once before giving up as exhausted.
func (s *ShareLinkService) Resolve(ctx context.Context, token string) (*models.File, error) {
	repo := s.repomanager.ShareLinks(s.db)

	for attempt := 0; attempt < 2; attempt++ {
		fileID, err := repo.Consume(ctx, token)
		if err == nil {
			return s.repomanager.Files(s.db).GetByID(ctx, fileID)
		}
		if !errors.Is(err, common.ErrStorageConflict) {
			return nil, err
		}

		link, err := repo.GetByToken(ctx, token)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil, common.ErrNotFound
			}
			return nil, err
		}

		now := time.Now()
		if link.Expired(now) {
			return nil, common.ErrLinkExpired
		}
		if link.Exhausted() {
			return nil, common.ErrLinkExhausted
		}
		// the link looked resolvable on re-read, so the conditional write
		// lost to a concurrent resolve; try again once
	}
	return nil, common.ErrLinkExhausted
}
