// Package files provides persistence of file metadata rows. Blob contents
// live in object storage, not here.
package files

import (
	"context"

	"filevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) (*models.File, error)
	GetByID(ctx context.Context, id int64) (*models.File, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.File, error)
	ListSharedWith(ctx context.Context, userID int64) ([]*models.File, error)
	Delete(ctx context.Context, id int64) error
}
