package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"bizhub-backend/pkg/database"
	"bizhub-backend/pkg/models"
	"bizhub-backend/pkg/session"
	"bizhub-backend/pkg/utils"

	"go.uber.org/zap"
)

// ContextKey keys request-scoped values set by the middleware.
type ContextKey string

const (
	UserContextKey    ContextKey = "user"
	ProfileContextKey ContextKey = "profile"

	userHolderKey ContextKey = "user_holder"
)

// requestUser lets outer middleware see who the inner auth middleware
// authenticated.
type requestUser struct {
	id string
}

func withUserHolder(ctx context.Context, h *requestUser) context.Context {
	return context.WithValue(ctx, userHolderKey, h)
}

// AccessTokenCookie carries the access token for browser requests that
// do not send an Authorization header.
const AccessTokenCookie = "sb-access-token"

// ProfileLoader loads the profile of an authenticated user.
type ProfileLoader interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
}

// AuthConfig wires the auth middleware. Revoker and Profiles are optional.
type AuthConfig struct {
	JWT      *utils.JWTService
	Revoker  session.Revoker
	Profiles ProfileLoader
	Logger   *zap.Logger
}

func (ac AuthConfig) logger() *zap.Logger {
	if ac.Logger == nil {
		return zap.NewNop()
	}
	return ac.Logger
}

// tokenFromRequest reads the bearer token, falling back to the cookie.
func tokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || tokenString == "" {
			return "", fmt.Errorf("invalid authorization header format")
		}
		return tokenString, nil
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", fmt.Errorf("missing authorization header")
}

// authenticate resolves the caller. The returned status is the HTTP
// status to answer with when err is non-nil.
func (ac AuthConfig) authenticate(r *http.Request) (*models.AuthUser, *models.Profile, int, error) {
	tokenString, err := tokenFromRequest(r)
	if err != nil {
		return nil, nil, http.StatusUnauthorized, err
	}

	user, err := ac.JWT.ExtractUserFromToken(tokenString)
	if err != nil {
		return nil, nil, http.StatusUnauthorized, err
	}

	if ac.Revoker != nil {
		revoked, err := ac.Revoker.IsRevoked(r.Context(), user.SessionID)
		if err != nil {
			// fail open
			ac.logger().Warn("session revocation check failed", zap.Error(err))
		} else if revoked {
			return nil, nil, http.StatusUnauthorized, fmt.Errorf("session has been signed out")
		}
	}

	if ac.Profiles == nil {
		return user, nil, 0, nil
	}
	profile, err := ac.Profiles.GetProfile(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, http.StatusForbidden, fmt.Errorf("profile not found")
		}
		return nil, nil, http.StatusInternalServerError, err
	}
	return user, profile, 0, nil
}

// AuthMiddleware rejects requests without a valid Supabase access token
// and stores the caller (and profile, when a loader is set) in the context.
func AuthMiddleware(ac AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, profile, status, err := ac.authenticate(r)
			if err != nil {
				switch status {
				case http.StatusForbidden:
					utils.WriteForbiddenResponse(w, "Profile not found")
				case http.StatusInternalServerError:
					ac.logger().Error("failed to load profile", zap.Error(err))
					utils.WriteInternalServerErrorResponse(w, "Failed to load profile")
				default:
					ac.logger().Debug("authentication failed", zap.String("path", r.URL.Path), zap.Error(err))
					utils.WriteUnauthorizedResponse(w, "Unauthorized")
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(WithProfile(WithUser(r.Context(), user), profile)))
		})
	}
}

// RequireRole answers 403 unless the caller's profile role is listed.
// It must run after AuthMiddleware.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profile, ok := GetProfileFromContext(r.Context())
			if !ok {
				utils.WriteUnauthorizedResponse(w, "Unauthorized")
				return
			}
			for _, role := range roles {
				if profile.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.WriteForbiddenResponse(w, "Insufficient role")
		})
	}
}

func WithUser(ctx context.Context, user *models.AuthUser) context.Context {
	if user == nil {
		return ctx
	}
	if h, ok := ctx.Value(userHolderKey).(*requestUser); ok {
		h.id = user.ID
	}
	return context.WithValue(ctx, UserContextKey, user)
}

func WithProfile(ctx context.Context, profile *models.Profile) context.Context {
	if profile == nil {
		return ctx
	}
	return context.WithValue(ctx, ProfileContextKey, profile)
}

func GetUserFromContext(ctx context.Context) (*models.AuthUser, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.AuthUser)
	return user, ok && user != nil
}

func GetProfileFromContext(ctx context.Context) (*models.Profile, bool) {
	profile, ok := ctx.Value(ProfileContextKey).(*models.Profile)
	return profile, ok && profile != nil
}

// RequireUser returns the authenticated caller or an error.
func RequireUser(ctx context.Context) (*models.AuthUser, error) {
	user, ok := GetUserFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("user not authenticated")
	}
	return user, nil
}
