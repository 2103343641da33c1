package services

import (
	"context"
	"database/sql"
	"errors"

	"filevault/internal/common"
	"filevault/internal/server/models"
	"filevault/internal/server/repositories/repomanager"
)

// Action is what an actor wants to do with a file. Read covers download,
// write covers content replacement, manage covers delete, re-share, and
// share-link administration.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionManage Action = "manage"
)

// requiredLevel maps an action to the minimum grant level that permits it.
var requiredLevel = map[Action]models.AccessLevel{
	ActionRead:  models.AccessLevelRead,
	ActionWrite: models.AccessLevelWrite,
}

// AccessService decides, per request and per resource, whether the presented
// identity may perform the requested action, consulting ownership and grant
// records. Anonymous share-link access bypasses this entirely: the link
// token is its own authorization (see ShareLinkService).
type AccessService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewAccessService constructs an AccessService.
func NewAccessService(db *sql.DB, m repomanager.RepositoryManager) *AccessService {
	return &AccessService{db: db, repomanager: m}
}

// Authorize returns nil when actor may perform action on file, and one of
// ErrUnauthenticated (no actor) or ErrUnauthorized (insufficient access)
// otherwise.
//
// Ownership always wins: the owner is never denied access to their own
// file, regardless of grant state. Manage is owner-only — grants never
// confer it on others.
func (s *AccessService) Authorize(ctx context.Context, actor *models.User, file *models.File, action Action) error {
	if actor == nil {
		return common.ErrUnauthenticated
	}

	if actor.ID == file.OwnerID {
		return nil
	}

	if action == ActionManage {
		return common.ErrUnauthorized
	}

	required, ok := requiredLevel[action]
	if !ok {
		return common.ErrUnauthorized
	}

	grant, err := s.repomanager.Grants(s.db).Get(ctx, file.ID, actor.ID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrUnauthorized
		}
		return common.ErrInternal
	}

	if !grant.Level.Covers(required) {
		return common.ErrUnauthorized
	}
	return nil
}
