package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bizhub-backend/pkg/config"
	"bizhub-backend/pkg/database"
	"bizhub-backend/pkg/middleware"
	"bizhub-backend/pkg/models"
	"bizhub-backend/pkg/session"
	"bizhub-backend/pkg/supabase"
	"bizhub-backend/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	RefreshTokenCookie = "sb-refresh-token"
	CodeVerifierCookie = "sb-code-verifier"

	dashboardPath   = "/dashboard"
	setPasswordPath = "/set-password"
	loginPath       = "/login"

	minPasswordLength = 8
)

type AuthHandler struct {
	config  *config.Config
	db      database.DatabaseInterface
	auth    supabase.AuthClient
	jwt     *utils.JWTService
	revoker session.Revoker
	logger  *zap.Logger
}

// NewAuthHandler wires the sign-in flows. auth may be nil when Supabase
// is not configured; the flows that need GoTrue then answer 503.
func NewAuthHandler(cfg *config.Config, db database.DatabaseInterface, auth supabase.AuthClient, jwt *utils.JWTService, revoker session.Revoker, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		config:  cfg,
		db:      db,
		auth:    auth,
		jwt:     jwt,
		revoker: revoker,
		logger:  nopIfNil(logger).Named("auth"),
	}
}

// GET /auth/login?provider=google&next=/path
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		utils.WriteServiceUnavailableResponse(w, "Authentication provider not configured")
		return
	}
	provider := utils.GetQueryParam(r, "provider", "google")

	verifier := oauth2.GenerateVerifier()
	h.setCookie(w, CodeVerifierCookie, verifier, 10*time.Minute)

	base := h.config.SiteURL
	if base == "" {
		// GoTrue only accepts absolute redirect targets
		base = middleware.RequestOrigin(r)
	}
	callback := base + "/auth/callback"
	if next := safeNext(r.URL.Query().Get("next")); next != "" {
		callback += "?next=" + url.QueryEscape(next)
	}
	http.Redirect(w, r, h.auth.AuthorizeURL(provider, callback, oauth2.S256ChallengeFromVerifier(verifier)), http.StatusFound)
}

// GET /auth/callback?code=...&next=/path
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		msg := q.Get("error_description")
		if msg == "" {
			msg = errCode
		}
		h.redirectLoginError(w, r, msg)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.redirectLoginError(w, r, "Missing authorization code")
		return
	}
	if h.auth == nil {
		h.redirectLoginError(w, r, "Authentication provider not configured")
		return
	}
	verifier, err := r.Cookie(CodeVerifierCookie)
	if err != nil || verifier.Value == "" {
		h.redirectLoginError(w, r, "Sign-in session expired, please try again")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.config.AuthSessionTimeout)
	defer cancel()

	sess, err := h.auth.ExchangeCodeForSession(ctx, code, verifier.Value)
	if err != nil {
		h.logger.Warn("code exchange failed", zap.Error(err))
		msg := "Could not complete sign-in"
		var apiErr *supabase.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		h.redirectLoginError(w, r, msg)
		return
	}

	h.clearCookie(w, CodeVerifierCookie)
	h.setSessionCookies(w, sess.AccessToken, sess.RefreshToken, time.Duration(sess.ExpiresIn)*time.Second)
	h.redirectSignedIn(w, r, sess.User.ID, q.Get("next"), false)
}

type implicitCallbackRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Type         string `json:"type"`
	Next         string `json:"next"`
}

// POST /auth/callback with the values of the #access_token fragment.
func (h *AuthHandler) CallbackFragment(w http.ResponseWriter, r *http.Request) {
	var req implicitCallbackRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := utils.ParseJSONBody(r, &req); err != nil {
			h.redirectLoginError(w, r, "Invalid callback payload")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			h.redirectLoginError(w, r, "Invalid callback payload")
			return
		}
		req.AccessToken = r.PostForm.Get("access_token")
		req.RefreshToken = r.PostForm.Get("refresh_token")
		req.Type = r.PostForm.Get("type")
		req.Next = r.PostForm.Get("next")
	}

	if req.AccessToken == "" {
		h.redirectLoginError(w, r, "Missing access token")
		return
	}
	user, err := h.jwt.ExtractUserFromToken(req.AccessToken)
	if err != nil {
		h.logger.Warn("fragment token rejected", zap.Error(err))
		h.redirectLoginError(w, r, "Invalid or expired sign-in link")
		return
	}

	// the parser requires exp, so the cookie never outlives the token
	ttl := time.Until(user.Claims.ExpiresAt.Time)
	h.setSessionCookies(w, req.AccessToken, req.RefreshToken, ttl)

	forceSetPassword := req.Type == "invite" || req.Type == "recovery"
	h.redirectSignedIn(w, r, user.ID, req.Next, forceSetPassword)
}

// redirectSignedIn sends inactive profiles to /set-password and everybody
// else to next or the dashboard. A profile the backend has not created
// yet counts as inactive.
func (h *AuthHandler) redirectSignedIn(w http.ResponseWriter, r *http.Request, userID, next string, forceSetPassword bool) {
	if forceSetPassword {
		h.redirect(w, r, setPasswordPath)
		return
	}
	profile, err := h.db.GetProfile(r.Context(), userID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		h.redirect(w, r, setPasswordPath)
	case err != nil:
		h.logger.Error("profile lookup after sign-in failed", zap.String("user_id", userID), zap.Error(err))
		h.redirectLoginError(w, r, "Could not load your profile")
	case !profile.IsActive:
		h.redirect(w, r, setPasswordPath)
	default:
		target := safeNext(next)
		if target == "" {
			target = dashboardPath
		}
		h.redirect(w, r, target)
	}
}

type setPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// POST /auth/set-password
func (h *AuthHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	if h.auth == nil {
		utils.WriteServiceUnavailableResponse(w, "Authentication provider not configured")
		return
	}

	var req setPasswordRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if len(req.Password) < minPasswordLength {
		utils.WriteValidationErrorResponse(w, "Password too short", "password must be at least 8 characters")
		return
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		utils.WriteValidationErrorResponse(w, "Passwords do not match", "")
		return
	}

	if err := h.auth.UpdatePassword(r.Context(), user.Token, req.Password); err != nil {
		var apiErr *supabase.APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			utils.WriteBadRequestResponse(w, apiErr.Message)
			return
		}
		h.logger.Error("password update failed", zap.String("user_id", user.ID), zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Could not update password")
		return
	}

	profile, err := h.db.GetProfile(r.Context(), user.ID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		profile = newProfileFromInvite(user)
		if err := h.db.CreateProfile(r.Context(), profile); err != nil {
			writeStoreError(w, h.logger, err, "profile")
			return
		}
		h.logger.Info("profile activated", zap.String("user_id", user.ID), zap.String("role", string(profile.Role)))
	case err != nil:
		writeStoreError(w, h.logger, err, "profile")
		return
	case !profile.IsActive:
		profile.IsActive = true
		if err := h.db.UpdateProfile(r.Context(), profile); err != nil {
			writeStoreError(w, h.logger, err, "profile")
			return
		}
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"redirect": dashboardPath, "profile": profile})
}

// newProfileFromInvite builds the first profile row of an invited user.
// Role and org come from the invite's user metadata; without them the
// user starts as a client.
func newProfileFromInvite(user *models.AuthUser) *models.Profile {
	p := &models.Profile{ID: user.ID, Email: user.Email, Role: models.RoleClient, IsActive: true}
	if user.Claims == nil {
		return p
	}
	meta := user.Claims.UserMetadata
	if role, ok := meta["role"].(string); ok && models.Role(role).Valid() {
		p.Role = models.Role(role)
	}
	if orgID, ok := meta["org_id"].(string); ok {
		p.OrgID = orgID
	}
	if name, ok := meta["full_name"].(string); ok {
		p.FullName = name
	}
	return p
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	if h.revoker != nil && user.SessionID != "" {
		ttl := time.Hour
		if user.Claims != nil && user.Claims.ExpiresAt != nil {
			ttl = time.Until(user.Claims.ExpiresAt.Time)
		}
		if err := h.revoker.Revoke(r.Context(), user.SessionID, ttl); err != nil {
			h.logger.Error("session revoke failed", zap.String("session_id", user.SessionID), zap.Error(err))
			utils.WriteInternalServerErrorResponse(w, "Could not sign out")
			return
		}
	}
	if h.auth != nil {
		if err := h.auth.SignOut(r.Context(), user.Token); err != nil {
			h.logger.Warn("gotrue sign-out failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	h.clearCookie(w, middleware.AccessTokenCookie)
	h.clearCookie(w, RefreshTokenCookie)
	utils.WriteSuccessResponse(w, map[string]interface{}{"message": "Signed out"})
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, accessToken, refreshToken string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	h.setCookie(w, middleware.AccessTokenCookie, accessToken, ttl)
	if refreshToken != "" {
		h.setCookie(w, RefreshTokenCookie, refreshToken, 30*24*time.Hour)
	}
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) secureCookies() bool {
	return h.config.IsProduction() || strings.HasPrefix(strings.ToLower(h.config.SiteURL), "https://")
}

// redirect issues 302 for GET and 303 otherwise, so browsers follow a
// POSTed callback with a GET.
func (h *AuthHandler) redirect(w http.ResponseWriter, r *http.Request, path string) {
	status := http.StatusFound
	if r.Method != http.MethodGet {
		status = http.StatusSeeOther
	}
	http.Redirect(w, r, h.config.SiteURL+path, status)
}

func (h *AuthHandler) redirectLoginError(w http.ResponseWriter, r *http.Request, message string) {
	h.redirect(w, r, loginPath+"?error="+url.QueryEscape(message))
}

// safeNext returns next when it is a same-site absolute path, else "".
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return ""
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" || u.Scheme != "" {
		return ""
	}
	return next
}
