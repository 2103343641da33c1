package grants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"filevault/internal/common"
	"filevault/internal/dbx"
	"filevault/internal/server/models"
)

// PostgresRepository implements grant storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new grant. The unique (file_id, grantee_id) constraint
// is the source of truth for grant uniqueness: a second grant for the same
// pair returns common.ErrDuplicateGrant, never a duplicate row.
func (r *PostgresRepository) Create(ctx context.Context, grant *models.Grant) (*models.Grant, error) {
	query := `
		INSERT INTO grants (file_id, grantee_id, granter_id, access_level)
		VALUES ($1, $2, $3, $4)
		RETURNING id, granted_at
	`
	err := r.db.QueryRowContext(ctx, query,
		grant.FileID, grant.GranteeID, grant.GranterID, grant.Level).
		Scan(&grant.ID, &grant.GrantedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateGrant
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return grant, nil
}

// Get returns the grant for (fileID, granteeID) or common.ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, fileID, granteeID int64) (*models.Grant, error) {
	query := `
		SELECT id, file_id, grantee_id, granter_id, access_level, granted_at
		FROM grants
		WHERE file_id = $1 AND grantee_id = $2
	`
	grant := &models.Grant{}
	err := r.db.QueryRowContext(ctx, query, fileID, granteeID).Scan(
		&grant.ID, &grant.FileID, &grant.GranteeID, &grant.GranterID,
		&grant.Level, &grant.GrantedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return grant, nil
}

// UpdateLevel changes the access level of an existing grant. A missing
// grant returns common.ErrNotFound.
func (r *PostgresRepository) UpdateLevel(ctx context.Context, fileID, granteeID int64, level models.AccessLevel) error {
	query := `
		UPDATE grants SET access_level = $3
		WHERE file_id = $1 AND grantee_id = $2
	`
	result, err := r.db.ExecContext(ctx, query, fileID, granteeID, level)
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

// Delete removes the grant for (fileID, granteeID) or returns
// common.ErrNotFound.
func (r *PostgresRepository) Delete(ctx context.Context, fileID, granteeID int64) error {
	query := `DELETE FROM grants WHERE file_id = $1 AND grantee_id = $2`
	result, err := r.db.ExecContext(ctx, query, fileID, granteeID)
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

// ListByFile returns all grants on a file.
func (r *PostgresRepository) ListByFile(ctx context.Context, fileID int64) ([]*models.Grant, error) {
	query := `
		SELECT id, file_id, grantee_id, granter_id, access_level, granted_at
		FROM grants
		WHERE file_id = $1
		ORDER BY granted_at
	`
	rows, err := r.db.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to select grants: %w", err)
	}
	defer rows.Close()

	var result []*models.Grant
	for rows.Next() {
		var item models.Grant
		if err := rows.Scan(&item.ID, &item.FileID, &item.GranteeID,
			&item.GranterID, &item.Level, &item.GrantedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteByFile removes every grant on a file. Zero rows is fine: a file
// with no grants deletes cleanly.
func (r *PostgresRepository) DeleteByFile(ctx context.Context, fileID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM grants WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
