package revocations

import (
	"context"
	"fmt"
	"time"

	"filevault/internal/dbx"
	"filevault/internal/server/models"
)

// PostgresRepository implements the revocation ledger over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Revoke appends a ledger entry. ON CONFLICT DO NOTHING makes revocation
// idempotent: a second logout with the same jti succeeds and leaves exactly
// one row.
func (r *PostgresRepository) Revoke(ctx context.Context, entry *models.RevocationEntry) error {
	query := `
		INSERT INTO revoked_tokens (jti, user_id, token_type, expires_at, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (jti) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query,
		entry.JTI, entry.UserID, entry.TokenType, entry.ExpiresAt, entry.Reason); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti is present in the ledger.
func (r *PostgresRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`

	var revoked bool
	if err := r.db.QueryRowContext(ctx, query, jti).Scan(&revoked); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return revoked, nil
}

// DeleteExpired removes entries whose underlying token expired before now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
