package handlers

import (
	"errors"
	"net/http"

	"bizhub-backend/pkg/database"
	"bizhub-backend/pkg/middleware"
	"bizhub-backend/pkg/models"
	"bizhub-backend/pkg/utils"

	"go.uber.org/zap"
)

// currentProfile returns the caller's profile loaded by the auth
// middleware, answering 401 when there is none.
func currentProfile(w http.ResponseWriter, r *http.Request) (*models.Profile, bool) {
	profile, ok := middleware.GetProfileFromContext(r.Context())
	if !ok {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return nil, false
	}
	return profile, true
}

// writeStoreError maps store errors onto 404/409/500.
func writeStoreError(w http.ResponseWriter, logger *zap.Logger, err error, what string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		utils.WriteNotFoundResponse(w, what+" not found")
	case errors.Is(err, database.ErrConflict):
		utils.WriteConflictResponse(w, what+" already exists")
	default:
		logger.Error("store operation failed", zap.String("resource", what), zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Internal server error")
	}
}

// orgScope resolves the org filter for list queries: admins see every
// org unless they ask for one, everybody else sees their own. It answers
// 403 for non-admins without an org.
func orgScope(w http.ResponseWriter, p *models.Profile, requested string) (string, bool) {
	if p.Role == models.RoleAdmin {
		return requested, true
	}
	if p.OrgID == "" {
		utils.WriteForbiddenResponse(w, "No organization assigned")
		return "", false
	}
	return p.OrgID, true
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
