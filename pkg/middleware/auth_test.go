package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bizhub-backend/pkg/database"
	"bizhub-backend/pkg/models"
	"bizhub-backend/pkg/session"
	"bizhub-backend/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

type stubProfiles map[string]*models.Profile

func (s stubProfiles) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	if p, ok := s[id]; ok {
		return p, nil
	}
	if id == "broken" {
		return nil, errors.New("connection refused")
	}
	return nil, database.ErrNotFound
}

func mintToken(t *testing.T, userID, sessionID string) string {
	t.Helper()
	tok, err := utils.NewJWTService(testSecret).GenerateAccessToken(userID, userID+"@example.com", sessionID, time.Hour)
	require.NoError(t, err)
	return tok
}

func echoHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUserFromContext(r.Context())
		require.True(t, ok)
		w.Header().Set("X-User", user.ID)
		if p, ok := GetProfileFromContext(r.Context()); ok {
			w.Header().Set("X-Role", string(p.Role))
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	revoker := session.NewMemoryRevoker()
	require.NoError(t, revoker.Revoke(context.Background(), "revoked-session", time.Hour))

	ac := AuthConfig{
		JWT:     utils.NewJWTService(testSecret),
		Revoker: revoker,
		Profiles: stubProfiles{
			"u1": {ID: "u1", Role: models.RoleManager},
		},
	}
	handler := AuthMiddleware(ac)(echoHandler(t))

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantRole   string
	}{
		{
			name:       "missing token",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Token abc") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong secret",
			setup: func(r *http.Request) {
				tok, _ := utils.NewJWTService("other").GenerateAccessToken("u1", "", "s", time.Hour)
				r.Header.Set("Authorization", "Bearer "+tok)
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "valid bearer token",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+mintToken(t, "u1", "s1")) },
			wantStatus: http.StatusOK,
			wantRole:   "manager",
		},
		{
			name: "valid cookie token",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: mintToken(t, "u1", "s1")})
			},
			wantStatus: http.StatusOK,
			wantRole:   "manager",
		},
		{
			name:       "revoked session",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+mintToken(t, "u1", "revoked-session")) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "no profile",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+mintToken(t, "ghost", "s1")) },
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "profile store failure",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+mintToken(t, "broken", "s1")) },
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantRole != "" {
				assert.Equal(t, "u1", rec.Header().Get("X-User"))
				assert.Equal(t, tt.wantRole, rec.Header().Get("X-Role"))
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	handler := RequireRole(models.RoleAdmin, models.RoleManager)(ok)

	for role, want := range map[models.Role]int{
		models.RoleAdmin:  http.StatusNoContent,
		models.RoleUser:   http.StatusForbidden,
		models.RoleClient: http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithProfile(req.Context(), &models.Profile{ID: "x", Role: role}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
