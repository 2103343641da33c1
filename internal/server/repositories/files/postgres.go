package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"filevault/internal/common"
	"filevault/internal/dbx"
	"filevault/internal/server/models"
)

// PostgresRepository implements file metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const fileColumns = `id, storage_key, original_name, content_type, owner_id, size, created_at`

// Create inserts a new file row. A duplicate (owner_id, original_name) pair
// returns common.ErrAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	query := `
		INSERT INTO files (storage_key, original_name, content_type, owner_id, size)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		file.StorageKey, file.OriginalName, file.ContentType, file.OwnerID, file.Size).
		Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// GetByID returns the file with the given id or common.ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	file := &models.File{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&file.ID, &file.StorageKey, &file.OriginalName, &file.ContentType,
		&file.OwnerID, &file.Size, &file.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// ListByOwner returns the files owned by ownerID, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*models.File, error) {
	query := `
		SELECT ` + fileColumns + ` FROM files
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	return r.queryFiles(ctx, query, ownerID)
}

// ListSharedWith returns the files userID holds a grant on, most recently
// shared first.
func (r *PostgresRepository) ListSharedWith(ctx context.Context, userID int64) ([]*models.File, error) {
	query := `
		SELECT f.id, f.storage_key, f.original_name, f.content_type, f.owner_id, f.size, f.created_at
		FROM files f
		JOIN grants g ON g.file_id = f.id
		WHERE g.grantee_id = $1
		ORDER BY g.granted_at DESC
	`
	return r.queryFiles(ctx, query, userID)
}

// Delete removes the file row. Missing rows return common.ErrNotFound.
// Grant and share-link rows cascade via foreign keys, but the file service
// still deletes them in the same transaction to keep the cascade explicit.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) queryFiles(ctx context.Context, query string, args ...any) ([]*models.File, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		var item models.File
		if err := rows.Scan(&item.ID, &item.StorageKey, &item.OriginalName,
			&item.ContentType, &item.OwnerID, &item.Size, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
