package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"filevault/internal/common"
	"filevault/internal/dbx"
	"filevault/internal/server/models"
	filesrepo "filevault/internal/server/repositories/files"
	grantsrepo "filevault/internal/server/repositories/grants"
	revocationsrepo "filevault/internal/server/repositories/revocations"
	sharelinksrepo "filevault/internal/server/repositories/sharelinks"
	usersrepo "filevault/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

// --- fake repositories ---

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	byID    map[int64]*models.User
	byEmail map[string]*models.User
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	out := *u
	out.ID = 1
	return &out, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

type fakeFilesRepo struct {
	createOut *models.File
	createErr error

	byID map[int64]*models.File

	owned  []*models.File
	shared []*models.File

	deleteErr error
	deleted   []int64
}

func (f *fakeFilesRepo) Create(ctx context.Context, file *models.File) (*models.File, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	out := *file
	out.ID = 1
	return &out, nil
}

func (f *fakeFilesRepo) GetByID(ctx context.Context, id int64) (*models.File, error) {
	if file, ok := f.byID[id]; ok {
		return file, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeFilesRepo) ListByOwner(ctx context.Context, ownerID int64) ([]*models.File, error) {
	return f.owned, nil
}

func (f *fakeFilesRepo) ListSharedWith(ctx context.Context, userID int64) ([]*models.File, error) {
	return f.shared, nil
}

func (f *fakeFilesRepo) Delete(ctx context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeGrantsRepo struct {
	createErr error
	created   []*models.Grant

	grants map[int64]map[int64]*models.Grant // fileID -> granteeID

	updateErr error
	deleteErr error

	deletedByFile []int64
}

func (f *fakeGrantsRepo) Create(ctx context.Context, g *models.Grant) (*models.Grant, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	out := *g
	out.ID = int64(len(f.created) + 1)
	f.created = append(f.created, &out)
	return &out, nil
}

func (f *fakeGrantsRepo) Get(ctx context.Context, fileID, granteeID int64) (*models.Grant, error) {
	if g, ok := f.grants[fileID][granteeID]; ok {
		return g, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeGrantsRepo) UpdateLevel(ctx context.Context, fileID, granteeID int64, level models.AccessLevel) error {
	return f.updateErr
}

func (f *fakeGrantsRepo) Delete(ctx context.Context, fileID, granteeID int64) error {
	return f.deleteErr
}

func (f *fakeGrantsRepo) ListByFile(ctx context.Context, fileID int64) ([]*models.Grant, error) {
	var out []*models.Grant
	for _, g := range f.grants[fileID] {
		out = append(out, g)
	}
	return out, nil
}

func (f *fakeGrantsRepo) DeleteByFile(ctx context.Context, fileID int64) error {
	f.deletedByFile = append(f.deletedByFile, fileID)
	return nil
}

// fakeShareLinksRepo keeps link state behind a mutex so Consume behaves like
// the real conditional UPDATE under concurrent callers.
type fakeShareLinksRepo struct {
	mu    sync.Mutex
	links map[string]*models.ShareLink

	createErrs []error // popped per Create call, nil falls through to the map

	deletedByFile []int64
}

func (f *fakeShareLinksRepo) Create(ctx context.Context, link *models.ShareLink) (*models.ShareLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	out := *link
	out.ID = int64(len(f.links) + 1)
	out.CreatedAt = time.Now()
	if f.links == nil {
		f.links = map[string]*models.ShareLink{}
	}
	f.links[out.Token] = &out
	return &out, nil
}

func (f *fakeShareLinksRepo) GetByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.links[token]; ok {
		out := *l
		return &out, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeShareLinksRepo) Consume(ctx context.Context, token string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.links[token]
	if !ok {
		return 0, common.ErrStorageConflict
	}
	if l.Expired(time.Now()) || l.Exhausted() {
		return 0, common.ErrStorageConflict
	}
	l.DownloadCount++
	return l.FileID, nil
}

func (f *fakeShareLinksRepo) DeleteByFile(ctx context.Context, fileID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedByFile = append(f.deletedByFile, fileID)
	return nil
}

type fakeRevocationsRepo struct {
	mu      sync.Mutex
	revoked map[string]*models.RevocationEntry

	revokeErr error
	checkErr  error
}

func (f *fakeRevocationsRepo) Revoke(ctx context.Context, entry *models.RevocationEntry) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revoked == nil {
		f.revoked = map[string]*models.RevocationEntry{}
	}
	// duplicate jti is a no-op, matching the ON CONFLICT insert
	if _, ok := f.revoked[entry.JTI]; !ok {
		f.revoked[entry.JTI] = entry
	}
	return nil
}

func (f *fakeRevocationsRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[jti]
	return ok, nil
}

func (f *fakeRevocationsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for jti, entry := range f.revoked {
		if !entry.ExpiresAt.After(now) {
			delete(f.revoked, jti)
			n++
		}
	}
	return n, nil
}

// --- fake repository manager ---

type fakeRepoManager struct {
	users       *fakeUsersRepo
	files       *fakeFilesRepo
	grants      *fakeGrantsRepo
	shareLinks  *fakeShareLinksRepo
	revocations *fakeRevocationsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:       &fakeUsersRepo{byID: map[int64]*models.User{}, byEmail: map[string]*models.User{}},
		files:       &fakeFilesRepo{byID: map[int64]*models.File{}},
		grants:      &fakeGrantsRepo{grants: map[int64]map[int64]*models.Grant{}},
		shareLinks:  &fakeShareLinksRepo{links: map[string]*models.ShareLink{}},
		revocations: &fakeRevocationsRepo{revoked: map[string]*models.RevocationEntry{}},
	}
}

func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository           { return m.users }
func (m *fakeRepoManager) Files(db dbx.DBTX) filesrepo.Repository           { return m.files }
func (m *fakeRepoManager) Grants(db dbx.DBTX) grantsrepo.Repository         { return m.grants }
func (m *fakeRepoManager) ShareLinks(db dbx.DBTX) sharelinksrepo.Repository { return m.shareLinks }
func (m *fakeRepoManager) Revocations(db dbx.DBTX) revocationsrepo.Repository {
	return m.revocations
}
func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
