package handlers

import (
	"net/http"

	"bizhub-backend/pkg/config"
	"bizhub-backend/pkg/database"
	"bizhub-backend/pkg/middleware"
	"bizhub-backend/pkg/models"
	"bizhub-backend/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type ProfileHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	logger *zap.Logger
}

func NewProfileHandler(cfg *config.Config, db database.DatabaseInterface, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{config: cfg, db: db, logger: nopIfNil(logger).Named("profile")}
}

// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var (
		profile     *models.Profile
		memberships []models.UserOrganization
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		p, err := h.db.GetProfile(ctx, user.ID)
		profile = p
		return err
	})
	g.Go(func() error {
		m, err := h.db.ListUserOrganizations(ctx, user.ID)
		memberships = m
		return err
	})
	if err := g.Wait(); err != nil {
		writeStoreError(w, h.logger, err, "profile")
		return
	}
	if memberships == nil {
		memberships = []models.UserOrganization{}
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"profile":       profile,
		"organizations": memberships,
	})
}

// PUT /api/profile
//
// Callers edit their own contact fields. Admins may pass user_id to edit
// someone else, and only admins may change role, org or activation.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	var req struct {
		UserID string `json:"user_id"`
		models.ProfileUpdate
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	isAdmin := caller.Role == models.RoleAdmin
	if req.Role != nil && !req.Role.Valid() && isAdmin {
		utils.WriteBadRequestResponse(w, "Unknown role")
		return
	}

	targetID := caller.ID
	if req.UserID != "" && req.UserID != caller.ID {
		if !isAdmin {
			utils.WriteForbiddenResponse(w, "Admin access required")
			return
		}
		targetID = req.UserID
	}

	target, err := h.db.GetProfile(r.Context(), targetID)
	if err != nil {
		writeStoreError(w, h.logger, err, "profile")
		return
	}
	req.ProfileUpdate.Apply(target, isAdmin)
	if err := h.db.UpdateProfile(r.Context(), target); err != nil {
		writeStoreError(w, h.logger, err, "profile")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"profile": target})
}
