package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"filevault/internal/common"
	"filevault/internal/dbx"
	"filevault/internal/logging"
	"filevault/internal/server/auth"
	"filevault/internal/server/config"
	"filevault/internal/server/models"
	filesrepo "filevault/internal/server/repositories/files"
	grantsrepo "filevault/internal/server/repositories/grants"
	"filevault/internal/server/repositories/repomanager"
	revocationsrepo "filevault/internal/server/repositories/revocations"
	sharelinksrepo "filevault/internal/server/repositories/sharelinks"
	usersrepo "filevault/internal/server/repositories/users"
	"filevault/internal/server/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- in-memory stores, behaving like their Postgres counterparts ---

type memState struct {
	mu sync.Mutex

	users  map[int64]*models.User
	nextU  int64
	files  map[int64]*models.File
	nextF  int64
	grants map[int64]map[int64]*models.Grant
	links  map[string]*models.ShareLink
	nextL  int64

	revoked map[string]bool
}

func newMemState() *memState {
	return &memState{
		users:   map[int64]*models.User{},
		files:   map[int64]*models.File{},
		grants:  map[int64]map[int64]*models.Grant{},
		links:   map[string]*models.ShareLink{},
		revoked: map[string]bool{},
	}
}

type memUsers struct{ s *memState }

func (m *memUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.users {
		if existing.Email == u.Email || existing.Name == u.Name {
			return nil, common.ErrAlreadyExists
		}
	}
	m.s.nextU++
	out := *u
	out.ID = m.s.nextU
	out.CreatedAt = time.Now()
	m.s.users[out.ID] = &out
	return &out, nil
}

func (m *memUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if u, ok := m.s.users[id]; ok {
		return u, nil
	}
	return nil, common.ErrNotFound
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrNotFound
}

type memFiles struct{ s *memState }

func (m *memFiles) Create(ctx context.Context, f *models.File) (*models.File, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.files {
		if existing.OwnerID == f.OwnerID && existing.OriginalName == f.OriginalName {
			return nil, common.ErrAlreadyExists
		}
	}
	m.s.nextF++
	out := *f
	out.ID = m.s.nextF
	out.CreatedAt = time.Now()
	m.s.files[out.ID] = &out
	return &out, nil
}

func (m *memFiles) GetByID(ctx context.Context, id int64) (*models.File, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if f, ok := m.s.files[id]; ok {
		return f, nil
	}
	return nil, common.ErrNotFound
}

func (m *memFiles) ListByOwner(ctx context.Context, ownerID int64) ([]*models.File, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.File
	for _, f := range m.s.files {
		if f.OwnerID == ownerID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memFiles) ListSharedWith(ctx context.Context, userID int64) ([]*models.File, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.File
	for fileID, byGrantee := range m.s.grants {
		if _, ok := byGrantee[userID]; ok {
			if f, exists := m.s.files[fileID]; exists {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

func (m *memFiles) Delete(ctx context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.files[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.s.files, id)
	return nil
}

type memGrants struct{ s *memState }

func (m *memGrants) Create(ctx context.Context, g *models.Grant) (*models.Grant, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.grants[g.FileID][g.GranteeID]; ok {
		return nil, common.ErrDuplicateGrant
	}
	if m.s.grants[g.FileID] == nil {
		m.s.grants[g.FileID] = map[int64]*models.Grant{}
	}
	out := *g
	out.GrantedAt = time.Now()
	m.s.grants[g.FileID][g.GranteeID] = &out
	return &out, nil
}

func (m *memGrants) Get(ctx context.Context, fileID, granteeID int64) (*models.Grant, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if g, ok := m.s.grants[fileID][granteeID]; ok {
		return g, nil
	}
	return nil, common.ErrNotFound
}

func (m *memGrants) UpdateLevel(ctx context.Context, fileID, granteeID int64, level models.AccessLevel) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	g, ok := m.s.grants[fileID][granteeID]
	if !ok {
		return common.ErrNotFound
	}
	g.Level = level
	return nil
}

func (m *memGrants) Delete(ctx context.Context, fileID, granteeID int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.grants[fileID][granteeID]; !ok {
		return common.ErrNotFound
	}
	delete(m.s.grants[fileID], granteeID)
	return nil
}

func (m *memGrants) ListByFile(ctx context.Context, fileID int64) ([]*models.Grant, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Grant
	for _, g := range m.s.grants[fileID] {
		out = append(out, g)
	}
	return out, nil
}

func (m *memGrants) DeleteByFile(ctx context.Context, fileID int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.grants, fileID)
	return nil
}

type memShareLinks struct{ s *memState }

func (m *memShareLinks) Create(ctx context.Context, link *models.ShareLink) (*models.ShareLink, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.links[link.Token]; ok {
		return nil, common.ErrAlreadyExists
	}
	m.s.nextL++
	out := *link
	out.ID = m.s.nextL
	out.CreatedAt = time.Now()
	m.s.links[out.Token] = &out
	return &out, nil
}

func (m *memShareLinks) GetByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if l, ok := m.s.links[token]; ok {
		out := *l
		return &out, nil
	}
	return nil, common.ErrNotFound
}

func (m *memShareLinks) Consume(ctx context.Context, token string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	l, ok := m.s.links[token]
	if !ok || l.Expired(time.Now()) || l.Exhausted() {
		return 0, common.ErrStorageConflict
	}
	l.DownloadCount++
	return l.FileID, nil
}

func (m *memShareLinks) DeleteByFile(ctx context.Context, fileID int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for token, l := range m.s.links {
		if l.FileID == fileID {
			delete(m.s.links, token)
		}
	}
	return nil
}

type memRevocations struct{ s *memState }

func (m *memRevocations) Revoke(ctx context.Context, entry *models.RevocationEntry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.revoked[entry.JTI] = true
	return nil
}

func (m *memRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.revoked[jti], nil
}

func (m *memRevocations) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type memRepoManager struct{ s *memState }

func (m *memRepoManager) Users(db dbx.DBTX) usersrepo.Repository   { return &memUsers{m.s} }
func (m *memRepoManager) Files(db dbx.DBTX) filesrepo.Repository   { return &memFiles{m.s} }
func (m *memRepoManager) Grants(db dbx.DBTX) grantsrepo.Repository { return &memGrants{m.s} }
func (m *memRepoManager) ShareLinks(db dbx.DBTX) sharelinksrepo.Repository {
	return &memShareLinks{m.s}
}
func (m *memRepoManager) Revocations(db dbx.DBTX) revocationsrepo.Repository {
	return &memRevocations{m.s}
}
func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

var _ repomanager.RepositoryManager = (*memRepoManager)(nil)

type memBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (m *memBlobStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
	return nil
}

func (m *memBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBlobStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *memBlobStore) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "https://blobs.test/" + key, nil
}

// --- harness ---

type testServer struct {
	srv  *Server
	mock sqlmock.Sqlmock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		EndpointAddr:                 "localhost:0",
		SecretKey:                    "test-secret",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		MaxUploadSize:                1 << 20,
	}

	codec, err := auth.NewCodec([]byte(cfg.SecretKey))
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}

	rm := &memRepoManager{s: newMemState()}
	blobs := &memBlobStore{blobs: map[string][]byte{}}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	sessions := services.NewSessionService(db, rm, codec, cfg)
	access := services.NewAccessService(db, rm)
	files := services.NewFileService(db, rm, blobs, access, logger, cfg)
	links := services.NewShareLinkService(db, rm, access)

	return &testServer{
		srv:  NewServer(logger, sessions, files, links, cfg),
		mock: mock,
	}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.srv.engine.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// register registers a user and returns the access and refresh tokens from
// the response cookies.
func (ts *testServer) register(t *testing.T, name, email string) (access, refresh string) {
	t.Helper()
	w := ts.do(jsonRequest(http.MethodPost, "/auth/register",
		`{"name":"`+name+`","email":"`+email+`","password":"hunter2hunter2"}`))
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", w.Code, w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		switch c.Name {
		case accessCookieName:
			access = c.Value
		case refreshCookieName:
			refresh = c.Value
		}
	}
	if access == "" || refresh == "" {
		t.Fatalf("register: missing auth cookies")
	}
	return access, refresh
}

func multipartRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile error: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write part error: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (ts *testServer) upload(t *testing.T, token, filename, content string) int64 {
	t.Helper()
	w := ts.do(withBearer(multipartRequest(t, filename, content), token))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: status %d body %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("upload response: %v", err)
	}
	return resp.ID
}
