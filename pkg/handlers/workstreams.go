package handlers

import (
	"net/http"
	"strings"

	"bizhub-backend/pkg/config"
	"bizhub-backend/pkg/database"
	"bizhub-backend/pkg/models"
	"bizhub-backend/pkg/rollup"
	"bizhub-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type WorkstreamsHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	logger *zap.Logger
}

func NewWorkstreamsHandler(cfg *config.Config, db database.DatabaseInterface, logger *zap.Logger) *WorkstreamsHandler {
	return &WorkstreamsHandler{config: cfg, db: db, logger: nopIfNil(logger).Named("workstreams")}
}

func (h *WorkstreamsHandler) loadWorkstream(w http.ResponseWriter, r *http.Request, caller *models.Profile) (*models.Workstream, bool) {
	ws, err := h.db.GetWorkstream(r.Context(), chiRoute.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, h.logger, err, "workstream")
		return nil, false
	}
	if caller.Role != models.RoleAdmin && ws.OrgID != caller.OrgID {
		utils.WriteNotFoundResponse(w, "workstream not found")
		return nil, false
	}
	return ws, true
}

// GET /api/workstreams
func (h *WorkstreamsHandler) ListWorkstreams(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	if caller.Role == models.RoleClientNoAccess {
		utils.WriteForbiddenResponse(w, "Access denied")
		return
	}
	scope, ok := orgScope(w, caller, r.URL.Query().Get("org_id"))
	if !ok {
		return
	}

	workstreams, err := h.db.ListWorkstreams(r.Context(), scope)
	if err != nil {
		writeStoreError(w, h.logger, err, "workstreams")
		return
	}
	entries, err := h.db.ListWorkstreamEntries(r.Context(), scope, "")
	if err != nil {
		writeStoreError(w, h.logger, err, "workstream entries")
		return
	}
	rollups := rollup.ByVertical(entries)
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"workstreams": workstreams,
		"rollups":     rollups,
		"total":       rollup.Total(rollups),
	})
}

type createWorkstreamRequest struct {
	OrgID    string `json:"org_id"`
	Name     string `json:"name"`
	Vertical string `json:"vertical"`
}

// POST /api/workstreams
func (h *WorkstreamsHandler) CreateWorkstream(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	var req createWorkstreamRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	ws := &models.Workstream{
		OrgID:    caller.OrgID,
		Name:     strings.TrimSpace(req.Name),
		Vertical: strings.TrimSpace(req.Vertical),
	}
	if caller.Role == models.RoleAdmin && req.OrgID != "" {
		ws.OrgID = req.OrgID
	}
	if ws.Name == "" || ws.OrgID == "" {
		utils.WriteBadRequestResponse(w, "name and organization required")
		return
	}
	if err := h.db.CreateWorkstream(r.Context(), ws); err != nil {
		writeStoreError(w, h.logger, err, "workstream")
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"workstream": ws})
}

// GET /api/workstreams/{id}/entries
func (h *WorkstreamsHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	if caller.Role == models.RoleClientNoAccess {
		utils.WriteForbiddenResponse(w, "Access denied")
		return
	}
	ws, ok := h.loadWorkstream(w, r, caller)
	if !ok {
		return
	}
	entries, err := h.db.ListWorkstreamEntries(r.Context(), ws.OrgID, ws.ID)
	if err != nil {
		writeStoreError(w, h.logger, err, "workstream entries")
		return
	}
	rollups := rollup.ByVertical(entries)
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"workstream": ws,
		"entries":    entries,
		"rollups":    rollups,
		"total":      rollup.Total(rollups),
	})
}

type createEntryRequest struct {
	Title    string             `json:"title"`
	Status   models.StatusColor `json:"status"`
	Vertical string             `json:"vertical"`
	Note     string             `json:"note"`
}

// POST /api/workstreams/{id}/entries
func (h *WorkstreamsHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	if !caller.Role.IsStaff() {
		utils.WriteForbiddenResponse(w, "Staff access required")
		return
	}
	ws, ok := h.loadWorkstream(w, r, caller)
	if !ok {
		return
	}
	var req createEntryRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	entry := &models.WorkstreamEntry{
		WorkstreamID: ws.ID,
		OrgID:        ws.OrgID,
		Vertical:     strings.TrimSpace(req.Vertical),
		Title:        strings.TrimSpace(req.Title),
		Status:       req.Status,
		Note:         req.Note,
	}
	if entry.Vertical == "" {
		entry.Vertical = ws.Vertical
	}
	if entry.Title == "" {
		utils.WriteBadRequestResponse(w, "title required")
		return
	}
	if !entry.Status.Valid() {
		utils.WriteValidationErrorResponse(w, "Invalid status", "status must be red, yellow or green")
		return
	}
	if err := h.db.CreateWorkstreamEntry(r.Context(), entry); err != nil {
		writeStoreError(w, h.logger, err, "workstream entry")
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"entry": entry})
}
