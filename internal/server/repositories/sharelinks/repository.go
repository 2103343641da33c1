// Package sharelinks provides persistence of anonymous share-link
// capabilities, including the atomic quota consumption used on resolve.
package sharelinks

import (
	"context"

	"filevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, link *models.ShareLink) (*models.ShareLink, error)
	GetByToken(ctx context.Context, token string) (*models.ShareLink, error)
	// Consume atomically increments the download counter of a resolvable
	// link and returns the linked file id. When the conditional update
	// matches no row it returns common.ErrStorageConflict; the caller
	// re-reads and re-decides.
	Consume(ctx context.Context, token string) (int64, error)
	DeleteByFile(ctx context.Context, fileID int64) error
}
