package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"bizhub-backend/pkg/middleware"
	"bizhub-backend/pkg/models"
	"bizhub-backend/pkg/session"
	"bizhub-backend/pkg/supabase"
	"bizhub-backend/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeAuth struct {
	session      *supabase.Session
	exchangeErr  error
	gotCode      string
	gotVerifier  string
	passwords    []string
	signedOut    []string
	lastRedirect string
}

func (f *fakeAuth) ExchangeCodeForSession(_ context.Context, code, verifier string) (*supabase.Session, error) {
	f.gotCode, f.gotVerifier = code, verifier
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.session, nil
}

func (f *fakeAuth) AuthorizeURL(provider, redirectTo, challenge string) string {
	f.lastRedirect = redirectTo
	return "https://auth.test/authorize?" + url.Values{
		"provider":       {provider},
		"redirect_to":    {redirectTo},
		"code_challenge": {challenge},
	}.Encode()
}

func (f *fakeAuth) UpdatePassword(_ context.Context, token, password string) error {
	f.passwords = append(f.passwords, token+":"+password)
	return nil
}

func (f *fakeAuth) SignOut(_ context.Context, token string) error {
	f.signedOut = append(f.signedOut, token)
	return nil
}

func sessionFor(userID string) *supabase.Session {
	return &supabase.Session{
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresIn:    3600,
		User:         supabase.User{ID: userID, Email: userID + "@example.com"},
	}
}

func cookieValue(rec *httptest.ResponseRecorder, name string) (string, bool) {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func TestCallbackRedirects(t *testing.T) {
	db := newTestStore(t)
	seedProfile(t, db, models.Profile{ID: "active", Email: "a@example.com", Role: models.RoleUser, IsActive: true})
	seedProfile(t, db, models.Profile{ID: "invited", Email: "i@example.com", Role: models.RoleClient, IsActive: false})

	tests := []struct {
		name        string
		query       string
		verifier    string
		session     *supabase.Session
		exchangeErr error
		wantPrefix  string
	}{
		{"inactive profile sets password", "code=abc", "v", sessionFor("invited"), nil, "/set-password"},
		{"active profile goes to dashboard", "code=abc", "v", sessionFor("active"), nil, "/dashboard"},
		{"safe next is honoured", "code=abc&next=%2Ftasks%3Fview%3Dmy", "v", sessionFor("active"), nil, "/tasks?view=my"},
		{"protocol relative next is ignored", "code=abc&next=%2F%2Fevil.example", "v", sessionFor("active"), nil, "/dashboard"},
		{"missing profile sets password", "code=abc", "v", sessionFor("new-user"), nil, "/set-password"},
		{"exchange failure", "code=abc", "v", nil, &supabase.APIError{Status: 400, Message: "invalid flow state"}, "/login?error=invalid+flow+state"},
		{"provider error", "error=access_denied&error_description=User+denied", "v", nil, nil, "/login?error=User+denied"},
		{"missing code", "", "v", nil, nil, "/login?error="},
		{"missing verifier", "code=abc", "", sessionFor("active"), nil, "/login?error="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuth{session: tt.session, exchangeErr: tt.exchangeErr}
			h := NewAuthHandler(testConfig(), db, auth, utils.NewJWTService(testSecret), nil, nil)

			req := httptest.NewRequest(http.MethodGet, "/auth/callback?"+tt.query, nil)
			if tt.verifier != "" {
				req.AddCookie(&http.Cookie{Name: CodeVerifierCookie, Value: tt.verifier})
			}
			rec := httptest.NewRecorder()
			h.Callback(rec, req)

			assert.Equal(t, http.StatusFound, rec.Code)
			loc := rec.Header().Get("Location")
			if strings.HasSuffix(tt.wantPrefix, "=") {
				assert.True(t, strings.HasPrefix(loc, tt.wantPrefix), loc)
			} else {
				assert.Equal(t, tt.wantPrefix, loc)
			}
		})
	}
}

func TestCallbackSetsSessionCookies(t *testing.T) {
	db := newTestStore(t)
	seedProfile(t, db, models.Profile{ID: "active", Role: models.RoleUser, IsActive: true})
	auth := &fakeAuth{session: sessionFor("active")}
	h := NewAuthHandler(testConfig(), db, auth, utils.NewJWTService(testSecret), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=the-code", nil)
	req.AddCookie(&http.Cookie{Name: CodeVerifierCookie, Value: "the-verifier"})
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	assert.Equal(t, "the-code", auth.gotCode)
	assert.Equal(t, "the-verifier", auth.gotVerifier)

	access, ok := cookieValue(rec, middleware.AccessTokenCookie)
	require.True(t, ok)
	assert.Equal(t, "access-active", access)
	refresh, ok := cookieValue(rec, RefreshTokenCookie)
	require.True(t, ok)
	assert.Equal(t, "refresh-active", refresh)
	verifier, ok := cookieValue(rec, CodeVerifierCookie)
	require.True(t, ok)
	assert.Empty(t, verifier)
}

func TestCallbackUsesSiteURL(t *testing.T) {
	db := newTestStore(t)
	seedProfile(t, db, models.Profile{ID: "active", Role: models.RoleUser, IsActive: true})
	cfg := testConfig()
	cfg.SiteURL = "https://app.example.com"
	h := NewAuthHandler(cfg, db, &fakeAuth{session: sessionFor("active")}, utils.NewJWTService(testSecret), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc", nil)
	req.AddCookie(&http.Cookie{Name: CodeVerifierCookie, Value: "v"})
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	assert.Equal(t, "https://app.example.com/dashboard", rec.Header().Get("Location"))
	for _, c := range rec.Result().Cookies() {
		assert.True(t, c.Secure, c.Name)
	}
}

func TestCallbackFragment(t *testing.T) {
	db := newTestStore(t)
	seedProfile(t, db, models.Profile{ID: "active", Role: models.RoleManager, IsActive: true})
	jwtSvc := utils.NewJWTService(testSecret)
	h := NewAuthHandler(testConfig(), db, nil, jwtSvc, nil, nil)

	token := func(userID string) string {
		tok, err := jwtSvc.GenerateAccessToken(userID, userID+"@example.com", "s1", time.Hour)
		require.NoError(t, err)
		return tok
	}

	t.Run("invite goes to set-password", func(t *testing.T) {
		form := url.Values{"access_token": {token("active")}, "type": {"invite"}}
		req := httptest.NewRequest(http.MethodPost, "/auth/callback", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.CallbackFragment(rec, req)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/set-password", rec.Header().Get("Location"))
	})

	t.Run("magic link for active user", func(t *testing.T) {
		body := `{"access_token":"` + token("active") + `","type":"magiclink"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/callback", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.CallbackFragment(rec, req)

		assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
		access, ok := cookieValue(rec, middleware.AccessTokenCookie)
		require.True(t, ok)
		assert.NotEmpty(t, access)
	})

	t.Run("cookie lifetime follows the token", func(t *testing.T) {
		tok, err := jwtSvc.GenerateAccessToken("active", "active@example.com", "s1", 10*time.Minute)
		require.NoError(t, err)
		form := url.Values{"access_token": {tok}, "expires_in": {"86400"}}
		req := httptest.NewRequest(http.MethodPost, "/auth/callback", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.CallbackFragment(rec, req)

		var maxAge int
		for _, c := range rec.Result().Cookies() {
			if c.Name == middleware.AccessTokenCookie {
				maxAge = c.MaxAge
			}
		}
		assert.Greater(t, maxAge, 0)
		assert.LessOrEqual(t, maxAge, 600)
	})

	t.Run("forged token", func(t *testing.T) {
		forged, err := utils.NewJWTService("other-secret").GenerateAccessToken("active", "a@example.com", "s1", time.Hour)
		require.NoError(t, err)
		form := url.Values{"access_token": {forged}}
		req := httptest.NewRequest(http.MethodPost, "/auth/callback", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.CallbackFragment(rec, req)

		assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/login?error="))
	})
}

func TestLoginStartsPKCE(t *testing.T) {
	auth := &fakeAuth{}
	h := NewAuthHandler(testConfig(), newTestStore(t), auth, utils.NewJWTService(testSecret), nil, nil)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodGet, "/auth/login?provider=github&next=/files", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	verifier, ok := cookieValue(rec, CodeVerifierCookie)
	require.True(t, ok)
	require.NotEmpty(t, verifier)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "github", loc.Query().Get("provider"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), loc.Query().Get("code_challenge"))
	assert.Equal(t, "http://example.com/auth/callback?next=%2Ffiles", auth.lastRedirect)
}

func TestLoginWithoutProvider(t *testing.T) {
	h := NewAuthHandler(testConfig(), newTestStore(t), nil, utils.NewJWTService(testSecret), nil, nil)
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSetPassword(t *testing.T) {
	db := newTestStore(t)
	seedProfile(t, db, models.Profile{ID: "invited", Role: models.RoleUser})
	auth := &fakeAuth{}
	h := NewAuthHandler(testConfig(), db, auth, utils.NewJWTService(testSecret), nil, nil)

	call := func(user *models.AuthUser, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/set-password", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req = req.WithContext(middleware.WithUser(req.Context(), user))
		rec := httptest.NewRecorder()
		h.SetPassword(rec, req)
		return rec
	}

	rec := call(&models.AuthUser{ID: "invited", Token: "tok"}, `{"password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(&models.AuthUser{ID: "invited", Token: "tok"}, `{"password":"long-enough","confirm_password":"long-enough"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"tok:long-enough"}, auth.passwords)
	p, err := db.GetProfile(context.Background(), "invited")
	require.NoError(t, err)
	assert.True(t, p.IsActive)

	newcomer := &models.AuthUser{
		ID:    "newcomer",
		Email: "n@example.com",
		Token: "tok2",
		Claims: &models.TokenClaims{UserMetadata: map[string]any{
			"role":   "manager",
			"org_id": "org-1",
		}},
	}
	rec = call(newcomer, `{"password":"long-enough"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p, err = db.GetProfile(context.Background(), "newcomer")
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, p.Role)
	assert.Equal(t, "org-1", p.OrgID)
	assert.True(t, p.IsActive)
}

func TestLogoutRevokesSession(t *testing.T) {
	revoker := session.NewMemoryRevoker()
	auth := &fakeAuth{}
	h := NewAuthHandler(testConfig(), newTestStore(t), auth, utils.NewJWTService(testSecret), revoker, nil)

	user := &models.AuthUser{ID: "u1", SessionID: "sess-1", Token: "tok"}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	revoked, err := revoker.IsRevoked(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, []string{"tok"}, auth.signedOut)

	access, ok := cookieValue(rec, middleware.AccessTokenCookie)
	require.True(t, ok)
	assert.Empty(t, access)
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/tasks", safeNext("/tasks"))
	assert.Equal(t, "", safeNext("https://evil.example/x"))
	assert.Equal(t, "", safeNext("//evil.example"))
	assert.Equal(t, "", safeNext("/\\evil.example"))
	assert.Equal(t, "", safeNext("tasks"))
}
