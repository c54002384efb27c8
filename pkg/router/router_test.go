package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bizhub-backend/pkg/config"
	"bizhub-backend/pkg/database"
	"bizhub-backend/pkg/handlers"
	customMiddleware "bizhub-backend/pkg/middleware"
	"bizhub-backend/pkg/models"
	"bizhub-backend/pkg/session"
	"bizhub-backend/pkg/supabase"
	"bizhub-backend/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"
)

const secret = "router-test-secret"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubAuth struct{}

func (stubAuth) ExchangeCodeForSession(_ context.Context, code, _ string) (*supabase.Session, error) {
	if code == "bad" {
		return nil, &supabase.APIError{Status: 400, Message: "invalid grant"}
	}
	return &supabase.Session{AccessToken: "a", ExpiresIn: 60, User: supabase.User{ID: code}}, nil
}
func (stubAuth) AuthorizeURL(string, string, string) string        { return "https://auth.test" }
func (stubAuth) UpdatePassword(context.Context, string, string) error { return nil }
func (stubAuth) SignOut(context.Context, string) error                { return nil }

type fixture struct {
	handler http.Handler
	db      *database.BoltDatabase
	jwt     *utils.JWTService
}

func newFixture(t *testing.T, limiter *customMiddleware.RateLimiter) *fixture {
	t.Helper()
	db, err := database.NewBoltDatabase(filepath.Join(t.TempDir(), "router.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.CreateOrganization(ctx, &models.Organization{ID: "o1", Name: "Acme"}))
	for _, p := range []models.Profile{
		{ID: "admin", Email: "admin@example.com", Role: models.RoleAdmin, OrgID: "o1", IsActive: true},
		{ID: "mgr", Email: "mgr@example.com", Role: models.RoleManager, OrgID: "o1", IsActive: true},
		{ID: "staff", Email: "staff@example.com", Role: models.RoleUser, OrgID: "o1", IsActive: true},
		{ID: "client", Email: "client@example.com", Role: models.RoleClient, OrgID: "o1", IsActive: true},
		{ID: "invited", Email: "invited@example.com", Role: models.RoleClient, OrgID: "o1"},
	} {
		p := p
		require.NoError(t, db.CreateProfile(ctx, &p))
	}

	cfg := &config.Config{
		Environment:        "test",
		Port:               "3000",
		UseLocalDB:         true,
		SupabaseJWTSecret:  secret,
		AllowedOrigins:     []string{"*"},
		AuthSessionTimeout: time.Second,
		StorageBucket:      "files",
	}
	h := New(Deps{
		Config:  cfg,
		DB:      db,
		Auth:    stubAuth{},
		Revoker: session.NewMemoryRevoker(),
		Limiter: limiter,
	})
	return &fixture{handler: h, db: db, jwt: utils.NewJWTService(secret)}
}

func (f *fixture) do(t *testing.T, method, target, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if userID != "" {
		tok, err := f.jwt.GenerateAccessToken(userID, userID+"@example.com", "sess-"+userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	f := newFixture(t, nil)
	for _, path := range []string{"/", "/healthz"} {
		rec := f.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get("Content-Type"))
	}
}

func TestClientsEndpointThroughRouter(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/users/clients", "", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/users/clients", "client", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/users/clients", "stranger", "").Code, "no profile")

	rec := f.do(t, http.MethodGet, "/api/users/clients", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Success      bool                        `json:"success"`
		Clients      []models.Profile            `json:"clients"`
		ClientsByOrg map[string][]models.Profile `json:"clientsByOrg"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Len(t, body.Clients, 2)
	assert.Len(t, body.ClientsByOrg["Acme"], 2)
}

func TestAuthCallbackThroughRouter(t *testing.T) {
	f := newFixture(t, nil)

	call := func(code string) string {
		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code="+code, nil)
		req.AddCookie(&http.Cookie{Name: handlers.CodeVerifierCookie, Value: "v"})
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusFound, rec.Code)
		return rec.Header().Get("Location")
	}
	assert.Equal(t, "/dashboard", call("admin"))
	assert.Equal(t, "/set-password", call("invited"))
	assert.Equal(t, "/login?error=invalid+grant", call("bad"))
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t, nil)
	tok, err := f.jwt.GenerateAccessToken("admin", "admin@example.com", "sess-x", time.Hour)
	require.NoError(t, err)

	send := func(method, target string) int {
		req := httptest.NewRequest(method, target, nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/api/profile"))
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "/api/auth/logout"))
	assert.Equal(t, http.StatusUnauthorized, send(http.MethodGet, "/api/profile"))
}

func TestJSONContentTypeEnforced(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader("title=x"))
	req.Header.Set("Content-Type", "text/plain")
	tok, err := f.jwt.GenerateAccessToken("admin", "admin@example.com", "s", time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/tasks", "admin", `{"title":"Ship it"}`)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")

	rec = f.do(t, http.MethodPatch, "/healthz", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimitedRouter(t *testing.T) {
	limiter := customMiddleware.NewRateLimiter(nil, customMiddleware.ClientIPKeyFunc, rate.Every(time.Hour), 2)
	t.Cleanup(limiter.Stop)
	f := newFixture(t, limiter)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "", "").Code)
	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestBuildDeps(t *testing.T) {
	cfg := &config.Config{Environment: "test", SupabaseURL: "https://x.supabase.test", SupabaseAnonKey: "anon", RateLimitRPS: 5, RateLimitBurst: 10}
	deps := BuildDeps(context.Background(), cfg, nil)
	t.Cleanup(deps.Close)

	assert.NotNil(t, deps.Auth)
	assert.NotNil(t, deps.Storage)
	assert.NotNil(t, deps.Limiter)
	assert.IsType(t, &session.MemoryRevoker{}, deps.Revoker)
	assert.Nil(t, deps.DB)

	health := deps.Limiter.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		health.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code, "health checks are never limited")
	}

	bare := BuildDeps(context.Background(), &config.Config{Environment: "test"}, nil)
	t.Cleanup(bare.Close)
	assert.Nil(t, bare.Auth)
	assert.Nil(t, bare.Storage)
	assert.Nil(t, bare.Limiter)
}

func TestRoleGatedRoutes(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		method, path, body string
		want               map[string]int
	}{
		{http.MethodGet, "/api/users/clients", "", map[string]int{"admin": 200, "mgr": 403, "staff": 403, "client": 403}},
		{http.MethodGet, "/api/users", "", map[string]int{"mgr": 200, "admin": 200, "staff": 403, "client": 403}},
		{http.MethodPost, "/api/orgs", `{"name":"Globex"}`, map[string]int{"mgr": 403, "staff": 403, "admin": 201}},
		{http.MethodPost, "/api/orgs/o1/members", `{"user_id":"staff"}`, map[string]int{"mgr": 403, "client": 403, "admin": 201}},
		{http.MethodPost, "/api/workstreams", `{"name":"Launch","vertical":"Sales"}`, map[string]int{"staff": 403, "client": 403, "mgr": 201}},
	}
	for _, tt := range tests {
		for _, caller := range []string{"client", "staff", "mgr", "admin"} {
			want, ok := tt.want[caller]
			if !ok {
				continue
			}
			rec := f.do(t, tt.method, tt.path, caller, tt.body)
			assert.Equal(t, want, rec.Code, "%s %s as %s: %s", tt.method, tt.path, caller, rec.Body.String())
		}
	}
}
