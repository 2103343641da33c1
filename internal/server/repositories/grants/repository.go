// Package grants provides persistence of direct per-user shares.
package grants

import (
	"context"

	"filevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, grant *models.Grant) (*models.Grant, error)
	Get(ctx context.Context, fileID, granteeID int64) (*models.Grant, error)
	UpdateLevel(ctx context.Context, fileID, granteeID int64, level models.AccessLevel) error
	Delete(ctx context.Context, fileID, granteeID int64) error
	ListByFile(ctx context.Context, fileID int64) ([]*models.Grant, error)
	DeleteByFile(ctx context.Context, fileID int64) error
}
