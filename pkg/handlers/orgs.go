package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"bizhub-backend/pkg/config"
	"bizhub-backend/pkg/database"
	"bizhub-backend/pkg/models"
	"bizhub-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrgsHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	logger *zap.Logger
}

func NewOrgsHandler(cfg *config.Config, db database.DatabaseInterface, logger *zap.Logger) *OrgsHandler {
	return &OrgsHandler{config: cfg, db: db, logger: nopIfNil(logger).Named("orgs")}
}

// isMember reports whether the profile belongs to orgID, either through
// its current org or a membership row.
func (h *OrgsHandler) isMember(r *http.Request, p *models.Profile, orgID string) (bool, error) {
	if p.OrgID == orgID {
		return true, nil
	}
	memberships, err := h.db.ListUserOrganizations(r.Context(), p.ID)
	if err != nil {
		return false, err
	}
	for _, m := range memberships {
		if m.OrgID == orgID {
			return true, nil
		}
	}
	return false, nil
}

// syncCurrentOrg makes the profile's current org follow its primary
// membership.
func (h *OrgsHandler) syncCurrentOrg(r *http.Request, userID, orgID string) error {
	p, err := h.db.GetProfile(r.Context(), userID)
	if err != nil {
		return err
	}
	if p.OrgID == orgID {
		return nil
	}
	p.OrgID = orgID
	return h.db.UpdateProfile(r.Context(), p)
}

// GET /api/orgs
func (h *OrgsHandler) ListMyOrganizations(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	memberships, err := h.db.ListUserOrganizations(r.Context(), caller.ID)
	if err != nil {
		writeStoreError(w, h.logger, err, "organizations")
		return
	}

	// Weak ETag: orgs:<user>:<count>:<primary>:<maxUpdated>
	var maxUpdated int64
	primary := ""
	for _, m := range memberships {
		if m.IsPrimary {
			primary = m.OrgID
		}
		if m.Organization == nil {
			continue
		}
		if ts := m.Organization.UpdatedAt.UnixMilli(); ts > maxUpdated {
			maxUpdated = ts
		}
	}
	etag := fmt.Sprintf("W/\"orgs:%s:%d:%s:%d\"", caller.ID, len(memberships), primary, maxUpdated)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"organizations": memberships})
}

type createOrganizationRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// POST /api/orgs
func (h *OrgsHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	var req createOrganizationRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		utils.WriteBadRequestResponse(w, "Name required")
		return
	}
	slug := models.Slugify(req.Slug)
	if slug == "" {
		slug = models.Slugify(name)
	}
	if slug == "" {
		utils.WriteValidationErrorResponse(w, "Invalid name", "name must contain letters or digits")
		return
	}

	org := &models.Organization{Name: name, Slug: slug}
	if err := h.db.CreateOrganization(r.Context(), org); err != nil {
		writeStoreError(w, h.logger, err, "organization")
		return
	}
	h.logger.Info("organization created", zap.String("org_id", org.ID), zap.String("slug", org.Slug), zap.String("by", caller.ID))
	utils.WriteCreatedResponse(w, map[string]interface{}{"organization": org})
}

// GET /api/orgs/{id}
func (h *OrgsHandler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	orgID := chiRoute.URLParam(r, "id")
	if strings.TrimSpace(orgID) == "" {
		utils.WriteBadRequestResponse(w, "organization id required")
		return
	}
	if caller.Role != models.RoleAdmin {
		member, err := h.isMember(r, caller, orgID)
		if err != nil {
			writeStoreError(w, h.logger, err, "organization")
			return
		}
		if !member {
			utils.WriteForbiddenResponse(w, "Not a member of organization")
			return
		}
	}
	org, err := h.db.GetOrganization(r.Context(), orgID)
	if err != nil {
		writeStoreError(w, h.logger, err, "organization")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"organization": org})
}

type addMemberRequest struct {
	UserID    string `json:"user_id"`
	IsPrimary bool   `json:"is_primary"`
}

// POST /api/orgs/{id}/members
func (h *OrgsHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	orgID := chiRoute.URLParam(r, "id")
	var req addMemberRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if orgID == "" || req.UserID == "" {
		utils.WriteBadRequestResponse(w, "organization id and user_id required")
		return
	}
	if _, err := h.db.GetOrganization(r.Context(), orgID); err != nil {
		writeStoreError(w, h.logger, err, "organization")
		return
	}
	if _, err := h.db.GetProfile(r.Context(), req.UserID); err != nil {
		writeStoreError(w, h.logger, err, "user")
		return
	}

	m := &models.UserOrganization{UserID: req.UserID, OrgID: orgID, IsPrimary: req.IsPrimary}
	if err := h.db.AddUserOrganization(r.Context(), m); err != nil {
		writeStoreError(w, h.logger, err, "membership")
		return
	}
	if m.IsPrimary {
		if err := h.syncCurrentOrg(r, req.UserID, orgID); err != nil {
			writeStoreError(w, h.logger, err, "user")
			return
		}
	}
	h.logger.Info("member added", zap.String("org_id", orgID), zap.String("user_id", req.UserID), zap.String("by", caller.ID))
	utils.WriteCreatedResponse(w, map[string]interface{}{"membership": m})
}

type setPrimaryRequest struct {
	OrgID string `json:"org_id"`
}

// PUT /api/orgs/primary
func (h *OrgsHandler) SetPrimaryOrganization(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	var req setPrimaryRequest
	if err := utils.ParseJSONBody(r, &req); err != nil || req.OrgID == "" {
		utils.WriteBadRequestResponse(w, "org_id required")
		return
	}
	if err := h.db.SetPrimaryOrganization(r.Context(), caller.ID, req.OrgID); err != nil {
		writeStoreError(w, h.logger, err, "membership")
		return
	}
	if err := h.syncCurrentOrg(r, caller.ID, req.OrgID); err != nil {
		writeStoreError(w, h.logger, err, "user")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"org_id": req.OrgID})
}
