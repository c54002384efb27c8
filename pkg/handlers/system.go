package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bizhub-backend/pkg/config"
	"bizhub-backend/pkg/database"
	"bizhub-backend/pkg/middleware"
	"bizhub-backend/pkg/models"
	"bizhub-backend/pkg/navigation"
	"bizhub-backend/pkg/utils"

	"go.uber.org/zap"
)

const healthCheckTimeout = 3 * time.Second

type SystemHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	logger *zap.Logger
}

func NewSystemHandler(cfg *config.Config, db database.DatabaseInterface, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{config: cfg, db: db, logger: nopIfNil(logger).Named("system")}
}

// GET / and GET /healthz
func (h *SystemHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbInfo := map[string]interface{}{
		"type":   database.BackendName(database.ConfigFromApp(h.config)),
		"status": "healthy",
		"pool":   database.GetConnectionStats(),
	}
	status, code := "ok", http.StatusOK

	if h.db == nil {
		dbInfo["status"] = "unavailable"
		status, code = "degraded", http.StatusServiceUnavailable
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.db.HealthCheck(ctx); err != nil {
			h.logger.Warn("database health check failed", zap.Error(err))
			dbInfo["status"] = "unhealthy"
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	utils.WriteJSONResponse(w, code, map[string]interface{}{
		"success":     code == http.StatusOK,
		"status":      status,
		"database":    dbInfo,
		"environment": h.config.Environment,
		"timestamp":   time.Now().Unix(),
	})
}

// GET /api/navigation?app=crm
func (h *SystemHandler) Navigation(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	app := utils.GetQueryParam(r, "app", "crm")
	items, err := navigation.Resolve(app, caller.Role)
	if err != nil {
		if errors.Is(err, navigation.ErrUnknownApp) {
			utils.WriteNotFoundResponse(w, "Unknown application")
			return
		}
		h.logger.Error("navigation unavailable", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Navigation unavailable")
		return
	}
	if items == nil {
		items = []models.NavItem{}
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"app":   app,
		"role":  caller.Role,
		"items": items,
	})
}

// NotFound answers unknown routes in the JSON error shape.
func NotFound(w http.ResponseWriter, r *http.Request) {
	utils.WriteErrorResponseWithCode(w, http.StatusNotFound, "NOT_FOUND", "Route not found", r.Method+" "+r.URL.Path)
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", r.Method+" "+r.URL.Path)
}

// Me returns the authenticated caller, mostly for front-end session checks.
func (h *SystemHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	profile, _ := middleware.GetProfileFromContext(r.Context())
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"user": map[string]interface{}{
			"id":         user.ID,
			"email":      user.Email,
			"session_id": user.SessionID,
		},
		"profile": profile,
	})
}
