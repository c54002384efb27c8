package handlers

import (
	"net/http"

	"bizhub-backend/pkg/config"
	"bizhub-backend/pkg/database"
	"bizhub-backend/pkg/models"
	"bizhub-backend/pkg/utils"

	"go.uber.org/zap"
)

// UnassignedGroup collects clients without a known organization.
const UnassignedGroup = "Unassigned"

type UsersHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	logger *zap.Logger
}

func NewUsersHandler(cfg *config.Config, db database.DatabaseInterface, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{config: cfg, db: db, logger: nopIfNil(logger).Named("users")}
}

// GET /api/users/clients
//
// Admin only; the router gates the role.
func (h *UsersHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentProfile(w, r); !ok {
		return
	}

	clients, err := h.db.ListProfiles(r.Context(), models.ProfileFilter{
		Roles: []models.Role{models.RoleClient, models.RoleClientNoAccess},
	})
	if err != nil {
		h.logger.Error("list clients failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load clients")
		return
	}
	orgs, err := h.db.ListOrganizations(r.Context())
	if err != nil {
		h.logger.Error("list organizations failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load organizations")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"clients":      clients,
		"clientsByOrg": GroupClientsByOrg(clients, orgs),
	})
}

// GroupClientsByOrg groups profiles by the name of their organization.
// Profiles with no org, or an org that no longer exists, land in
// UnassignedGroup. Order within a group follows clients.
func GroupClientsByOrg(clients []models.Profile, orgs []models.Organization) map[string][]models.Profile {
	names := make(map[string]string, len(orgs))
	for _, o := range orgs {
		names[o.ID] = o.Name
	}
	grouped := make(map[string][]models.Profile)
	for _, c := range clients {
		name, ok := names[c.OrgID]
		if c.OrgID == "" || !ok {
			name = UnassignedGroup
		}
		grouped[name] = append(grouped[name], c)
	}
	return grouped
}

// GET /api/users?org_id=
func (h *UsersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	scope, ok := orgScope(w, caller, r.URL.Query().Get("org_id"))
	if !ok {
		return
	}
	filter := models.ProfileFilter{OrgID: scope}
	if role := models.Role(r.URL.Query().Get("role")); role != "" {
		if !role.Valid() {
			utils.WriteBadRequestResponse(w, "Unknown role")
			return
		}
		filter.Roles = []models.Role{role}
	}

	users, err := h.db.ListProfiles(r.Context(), filter)
	if err != nil {
		writeStoreError(w, h.logger, err, "users")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"users": users, "count": len(users)})
}
