package sharelinks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"filevault/internal/common"
	"filevault/internal/dbx"
	"filevault/internal/server/models"
)

// PostgresRepository implements share-link storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new share link. A token collision returns
// common.ErrAlreadyExists so the issuer can retry with fresh entropy.
func (r *PostgresRepository) Create(ctx context.Context, link *models.ShareLink) (*models.ShareLink, error) {
	query := `
		INSERT INTO share_links (token, file_id, expires_at, max_downloads, download_count)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		link.Token, link.FileID, link.ExpiresAt, link.MaxDownloads, link.DownloadCount).
		Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return link, nil
}

// GetByToken returns the link for the given token or common.ErrNotFound.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	query := `
		SELECT id, token, file_id, expires_at, max_downloads, download_count, created_at
		FROM share_links
		WHERE token = $1
	`
	link := &models.ShareLink{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&link.ID, &link.Token, &link.FileID, &link.ExpiresAt,
		&link.MaxDownloads, &link.DownloadCount, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return link, nil
}

// Consume is the quota check and the increment in one conditional write.
// Two concurrent resolutions of a one-download-remaining link can never
// both succeed: only one UPDATE matches. No matching row means the link is
// unknown, expired, exhausted, or lost a race — the caller distinguishes by
// re-reading.
func (r *PostgresRepository) Consume(ctx context.Context, token string) (int64, error) {
	query := `
		UPDATE share_links
		SET download_count = download_count + 1
		WHERE token = $1
		  AND expires_at > now()
		  AND (max_downloads = 0 OR download_count < max_downloads)
		RETURNING file_id
	`
	var fileID int64
	err := r.db.QueryRowContext(ctx, query, token).Scan(&fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrStorageConflict
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return fileID, nil
}

// DeleteByFile removes every link pointing at a file.
func (r *PostgresRepository) DeleteByFile(ctx context.Context, fileID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM share_links WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
