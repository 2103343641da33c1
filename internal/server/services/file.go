package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"filevault/internal/common"
	"filevault/internal/dbx"
	"filevault/internal/logging"
	"filevault/internal/server/blobstore"
	"filevault/internal/server/config"
	"filevault/internal/server/models"
	"filevault/internal/server/repositories/repomanager"
)

// FileService handles the owned-resource lifecycle: uploads, listings,
// authorized downloads, cascading deletes, and direct grants. Per-resource
// authorization decisions are delegated to AccessService.
type FileService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	blobs         blobstore.Store
	access        *AccessService
	logger        logging.Logger
	maxUploadSize int64
}

// NewFileService constructs a FileService.
func NewFileService(db *sql.DB, m repomanager.RepositoryManager, blobs blobstore.Store,
	access *AccessService, logger logging.Logger, cfg *config.Config) *FileService {
	return &FileService{
		db:            db,
		repomanager:   m,
		blobs:         blobs,
		access:        access,
		logger:        logger.With("module", "file_service"),
		maxUploadSize: cfg.MaxUploadSize,
	}
}

// GrantInfo is a listing view of one grant, joined with the grantee record.
type GrantInfo struct {
	UserID int64
	Name   string
	Email  string
	Level  models.AccessLevel
}

// Upload stores size bytes from body as a new file owned by owner. Uploads
// over the configured cap return ErrFileTooLarge; a second file with the
// same name for the same owner returns ErrAlreadyExists. The blob is written
// before the metadata row so a failed insert never leaves a dangling row;
// the orphaned blob is removed best-effort.
func (s *FileService) Upload(ctx context.Context, owner *models.User, name, contentType string, body io.Reader, size int64) (*models.File, error) {
	if owner == nil {
		return nil, common.ErrUnauthenticated
	}
	if name == "" {
		return nil, fmt.Errorf("empty filename: %w", common.ErrInvalidArgument)
	}
	if size > s.maxUploadSize {
		return nil, common.ErrFileTooLarge
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := blobstore.RandomStorageKey()
	if err := s.blobs.Put(ctx, key, contentType, body, size); err != nil {
		return nil, fmt.Errorf("error storing blob: %w", err)
	}

	file := &models.File{
		StorageKey:   key,
		OriginalName: name,
		ContentType:  contentType,
		OwnerID:      owner.ID,
		Size:         size,
	}

	file, err := s.repomanager.Files(s.db).Create(ctx, file)
	if err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn(ctx, "failed to clean up orphaned blob", "key", key, "error", delErr)
		}
		return nil, err
	}
	return file, nil
}

// Open authorizes a read on fileID for actor and opens the blob for
// streaming.
func (s *FileService) Open(ctx context.Context, actor *models.User, fileID int64) (*models.File, io.ReadCloser, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.access.Authorize(ctx, actor, file, ActionRead); err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Get(ctx, file.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening blob: %w", err)
	}
	return file, rc, nil
}

// PresignDownload authorizes a read and returns a short-lived URL the client
// can fetch the blob from directly, bypassing this server for the bytes.
func (s *FileService) PresignDownload(ctx context.Context, actor *models.User, fileID int64, expires time.Duration) (*models.File, string, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, "", err
	}
	if err := s.access.Authorize(ctx, actor, file, ActionRead); err != nil {
		return nil, "", err
	}
	url, err := s.blobs.PresignGet(ctx, file.StorageKey, expires)
	if err != nil {
		return nil, "", fmt.Errorf("error presigning blob: %w", err)
	}
	return file, url, nil
}

// OpenBlob opens the blob of an already-authorized file. The anonymous
// share-link path uses it after ShareLinkService.Resolve has consumed the
// capability.
func (s *FileService) OpenBlob(ctx context.Context, file *models.File) (io.ReadCloser, error) {
	rc, err := s.blobs.Get(ctx, file.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("error opening blob: %w", err)
	}
	return rc, nil
}

// List returns the files user owns and the files shared with them.
func (s *FileService) List(ctx context.Context, user *models.User) (owned, shared []*models.File, err error) {
	if user == nil {
		return nil, nil, common.ErrUnauthenticated
	}
	repo := s.repomanager.Files(s.db)

	owned, err = repo.ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	shared, err = repo.ListSharedWith(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return owned, shared, nil
}

// Delete removes a file and everything hanging off it. The file row, its
// grants, and its share links go in one transaction — all or nothing — so a
// deleted file can never leave a live capability behind. The blob is removed
// afterwards, best-effort.
func (s *FileService) Delete(ctx context.Context, actor *models.User, fileID int64) error {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.access.Authorize(ctx, actor, file, ActionManage); err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Grants(tx).DeleteByFile(ctx, file.ID); err != nil {
			return err
		}
		if err := s.repomanager.ShareLinks(tx).DeleteByFile(ctx, file.ID); err != nil {
			return err
		}
		return s.repomanager.Files(tx).Delete(ctx, file.ID)
	})
	if err != nil {
		return fmt.Errorf("error deleting file: %w", err)
	}

	if err := s.blobs.Delete(ctx, file.StorageKey); err != nil {
		s.logger.Warn(ctx, "failed to delete blob for removed file", "key", file.StorageKey, "error", err)
	}
	return nil
}

// Grant shares a file with another user at the given level. Only the owner
// may grant; granting to yourself (the owner) is rejected since ownership
// already implies manage. An existing grant for the same pair returns
// ErrDuplicateGrant — re-sharing must go through UpdateGrant.
func (s *FileService) Grant(ctx context.Context, actor *models.User, fileID, granteeID int64, level models.AccessLevel) (*models.Grant, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, actor, file, ActionManage); err != nil {
		return nil, err
	}
	if !level.Valid() {
		return nil, fmt.Errorf("unknown access level %q: %w", level, common.ErrInvalidArgument)
	}
	if granteeID == file.OwnerID {
		return nil, fmt.Errorf("owner cannot be a grantee: %w", common.ErrInvalidArgument)
	}

	if _, err := s.repomanager.Users(s.db).GetByID(ctx, granteeID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, common.ErrInternal
	}

	grant := &models.Grant{
		FileID:    file.ID,
		GranteeID: granteeID,
		GranterID: actor.ID,
		Level:     level,
	}
	return s.repomanager.Grants(s.db).Create(ctx, grant)
}

// UpdateGrant changes the level of an existing grant.
func (s *FileService) UpdateGrant(ctx context.Context, actor *models.User, fileID, granteeID int64, level models.AccessLevel) error {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.access.Authorize(ctx, actor, file, ActionManage); err != nil {
		return err
	}
	if !level.Valid() {
		return fmt.Errorf("unknown access level %q: %w", level, common.ErrInvalidArgument)
	}
	return s.repomanager.Grants(s.db).UpdateLevel(ctx, file.ID, granteeID, level)
}

// RevokeGrant removes a user's grant on a file.
func (s *FileService) RevokeGrant(ctx context.Context, actor *models.User, fileID, granteeID int64) error {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.access.Authorize(ctx, actor, file, ActionManage); err != nil {
		return err
	}
	if granteeID == file.OwnerID {
		return fmt.Errorf("owner holds no grant to revoke: %w", common.ErrInvalidArgument)
	}
	return s.repomanager.Grants(s.db).Delete(ctx, file.ID, granteeID)
}

// ListGrants returns who a file is shared with, owner-only.
func (s *FileService) ListGrants(ctx context.Context, actor *models.User, fileID int64) ([]*GrantInfo, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, actor, file, ActionManage); err != nil {
		return nil, err
	}

	grants, err := s.repomanager.Grants(s.db).ListByFile(ctx, file.ID)
	if err != nil {
		return nil, err
	}

	userRepo := s.repomanager.Users(s.db)
	infos := make([]*GrantInfo, 0, len(grants))
	for _, g := range grants {
		u, err := userRepo.GetByID(ctx, g.GranteeID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				continue
			}
			return nil, err
		}
		infos = append(infos, &GrantInfo{
			UserID: u.ID,
			Name:   u.Name,
			Email:  u.Email,
			Level:  g.Level,
		})
	}
	return infos, nil
}
