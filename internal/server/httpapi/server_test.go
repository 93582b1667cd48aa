package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkov/authgate/internal/common"
	"github.com/avolkov/authgate/internal/dbx"
	"github.com/avolkov/authgate/internal/logging"
	"github.com/avolkov/authgate/internal/server/auth"
	"github.com/avolkov/authgate/internal/server/config"
	"github.com/avolkov/authgate/internal/server/models"
	usersrepo "github.com/avolkov/authgate/internal/server/repositories/users"
	"github.com/avolkov/authgate/internal/server/services"
	"github.com/avolkov/authgate/internal/server/sessions"
)

// memoryUsersRepo keeps user records in a map so the whole HTTP stack can be
// exercised without a database.
type memoryUsersRepo struct {
	users  map[int64]*models.User
	nextID int64
}

func newMemoryUsersRepo() *memoryUsersRepo {
	return &memoryUsersRepo{users: map[int64]*models.User{}, nextID: 1}
}

func (m *memoryUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return nil, common.ErrAlreadyExists
		}
	}
	created := *u
	created.ID = m.nextID
	created.CreatedAt = time.Now()
	m.nextID++
	m.users[created.ID] = &created
	out := created
	return &out, nil
}

func (m *memoryUsersRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (m *memoryUsersRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memoryUsersRepo) Update(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	now := time.Now()
	u.UpdatedAt = &now
	out := *u
	return &out, nil
}

func (m *memoryUsersRepo) List(ctx context.Context, filter models.PageFilter) ([]models.User, int64, error) {
	result := []models.User{}
	for _, u := range m.users {
		if filter.Email != "" && u.Email != filter.Email {
			continue
		}
		result = append(result, *u)
	}
	return result, int64(len(result)), nil
}

type memoryRepoManager struct {
	users *memoryUsersRepo
}

func (m *memoryRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memoryRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return m.users }

// testJar is a minimal cookie jar that, unlike net/http/cookiejar, keeps
// Secure cookies even though the httptest server speaks plain HTTP.
type testJar struct {
	mu      sync.Mutex
	cookies map[string]*http.Cookie
}

func newCookieJar() *testJar {
	return &testJar{cookies: map[string]*http.Cookie{}}
}

func (j *testJar) SetCookies(u *url.URL, cs []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, c := range cs {
		if c.MaxAge < 0 {
			delete(j.cookies, c.Name)
			continue
		}
		j.cookies[c.Name] = c
	}
}

func (j *testJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*http.Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		out = append(out, c)
	}
	return out
}

type apiFixture struct {
	ts    *httptest.Server
	repo  *memoryUsersRepo
	store sessions.Store
	// client keeps cookies across requests like a browser would
	client *http.Client
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	store := sessions.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	tokens, err := auth.NewManager(&config.Config{
		SecretKey:                    "test-secret",
		JWTAlgorithm:                 "HS256",
		JWTIssuer:                    "authgate-test",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	})
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	// register and profile updates run in a transaction
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 16; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	repo := newMemoryUsersRepo()
	rm := &memoryRepoManager{users: repo}

	authSvc := services.NewAuthService(db, rm, store, tokens, logger)
	adminSvc := services.NewAdminService(db, rm, logger)

	srv := NewServer(":0", logger, authSvc, adminSvc)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	jar := newCookieJar()
	return &apiFixture{
		ts:     ts,
		repo:   repo,
		store:  store,
		client: &http.Client{Jar: jar},
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, f.ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func cookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func registerPayload(email string) map[string]string {
	return map[string]string{
		"first_name":       "Alice",
		"last_name":        "Smith",
		"email":            email,
		"password":         "pw12345678",
		"password_confirm": "pw12345678",
	}
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestRegister(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/auth/register", registerPayload("a@x.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	view := decodeBody[userView](t, resp)
	assert.Equal(t, "a@x.com", view.Email)
	assert.Equal(t, models.RoleUser, view.Role)

	access := cookieByName(resp, common.AccessTokenCookieName)
	require.NotNil(t, access)
	assert.True(t, access.HttpOnly)
	assert.NotEmpty(t, access.Value)

	refresh := cookieByName(resp, common.RefreshTokenCookieName)
	require.NotNil(t, refresh)
	assert.NotEmpty(t, refresh.Value)

	// duplicate registration conflicts
	resp = f.do(t, http.MethodPost, "/auth/register", registerPayload("a@x.com"))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestRegister_ValidationErrors(t *testing.T) {
	f := newAPIFixture(t)

	bad := registerPayload("not-an-email")
	resp := f.do(t, http.MethodPost, "/auth/register", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	mismatched := registerPayload("a@x.com")
	mismatched["password_confirm"] = "different-pw"
	resp = f.do(t, http.MethodPost, "/auth/register", mismatched)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodPost, "/auth/register", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestLoginLogoutFlow(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/auth/register", registerPayload("a@x.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// a fresh client without cookies cannot see the profile
	plain, err := http.Get(f.ts.URL + "/auth/me")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, plain.StatusCode)
	assert.Equal(t, "Bearer", plain.Header.Get("WWW-Authenticate"))
	plain.Body.Close()

	resp = f.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "a@x.com", "password": "pw12345678",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decodeBody[userView](t, resp)
	assert.Equal(t, "a@x.com", view.Email)

	resp = f.do(t, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// cookies are cleared, refresh no longer possible
	resp = f.do(t, http.MethodPost, "/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/auth/register", registerPayload("a@x.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "a@x.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
	resp.Body.Close()
}

func TestLogin_UnknownEmail(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "nobody@x.com", "password": "pw12345678",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestRefresh_RotatesAndRejectsReplay(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/auth/register", registerPayload("a@x.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	oldRefresh := cookieByName(resp, common.RefreshTokenCookieName)
	require.NotNil(t, oldRefresh)
	resp.Body.Close()

	resp = f.do(t, http.MethodPost, "/auth/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	newRefresh := cookieByName(resp, common.RefreshTokenCookieName)
	require.NotNil(t, newRefresh)
	assert.NotEqual(t, oldRefresh.Value, newRefresh.Value)
	resp.Body.Close()

	// replaying the rotated-out token from a separate client fails
	req, err := http.NewRequest(http.MethodPost, f.ts.URL+"/auth/refresh", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: common.RefreshTokenCookieName, Value: oldRefresh.Value})
	replay, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, replay.StatusCode)
	replay.Body.Close()
}

func TestUpdateProfile(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/auth/register", registerPayload("a@x.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodPut, "/auth/profile", map[string]string{"first_name": "Alicia"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decodeBody[userView](t, resp)
	assert.Equal(t, "Alicia", view.FirstName)

	// empty update
	resp = f.do(t, http.MethodPut, "/auth/profile", map[string]string{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestUpdateProfile_EmailConflict(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/auth/register", registerPayload("taken@x.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// second account, then try to steal the first one's email
	f2 := &apiFixture{ts: f.ts, repo: f.repo, store: f.store, client: &http.Client{Jar: newCookieJar()}}
	resp = f2.do(t, http.MethodPost, "/auth/register", registerPayload("b@x.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f2.do(t, http.MethodPut, "/auth/profile", map[string]string{"email": "taken@x.com"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestDeleteProfile(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/auth/register", registerPayload("a@x.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodDelete, "/auth/profile", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// the deactivated account cannot log back in
	resp = f.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "a@x.com", "password": "pw12345678",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestAdminRoutes(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/auth/register", registerPayload("user@x.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	view := decodeBody[userView](t, resp)

	// a regular user is rejected
	resp = f.do(t, http.MethodGet, "/admin/users", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// promote the account directly in the directory
	admin := models.RoleAdmin
	_, err := f.repo.Update(context.Background(), view.ID, models.UserUpdate{Role: &admin})
	require.NoError(t, err)

	resp = f.do(t, http.MethodGet, "/admin/users", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decodeBody[models.Page[userView]](t, resp)
	assert.Equal(t, int64(1), page.Total)

	// demote via the role endpoint
	resp = f.do(t, http.MethodPut, "/admin/1/role", map[string]string{"role": "user"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[userView](t, resp)
	assert.Equal(t, models.RoleUser, updated.Role)
}

func TestAdminUpdateRole_Errors(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/auth/register", registerPayload("root@x.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	view := decodeBody[userView](t, resp)

	admin := models.RoleAdmin
	_, err := f.repo.Update(context.Background(), view.ID, models.UserUpdate{Role: &admin})
	require.NoError(t, err)

	resp = f.do(t, http.MethodPut, "/admin/999/role", map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodPut, "/admin/1/role", map[string]string{"role": "superuser"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodPut, "/admin/abc/role", map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
