package handlers

import (
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bizhub-backend/pkg/config"
	"bizhub-backend/pkg/database"
	"bizhub-backend/pkg/models"
	"bizhub-backend/pkg/supabase"
	"bizhub-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxUploadSize      = 25 << 20
	signedURLExpiresIn = time.Hour
)

type FilesHandler struct {
	config  *config.Config
	db      database.DatabaseInterface
	storage supabase.StorageClient
	logger  *zap.Logger
}

// NewFilesHandler serves file metadata from db and bytes from storage.
// storage may be nil, in which case uploads and downloads answer 503.
func NewFilesHandler(cfg *config.Config, db database.DatabaseInterface, storage supabase.StorageClient, logger *zap.Logger) *FilesHandler {
	return &FilesHandler{config: cfg, db: db, storage: storage, logger: nopIfNil(logger).Named("files")}
}

// canSeeFile applies org scoping and hides non-shared files from clients.
func canSeeFile(p *models.Profile, f *models.FileObject) bool {
	switch {
	case p.Role == models.RoleClientNoAccess:
		return false
	case p.Role != models.RoleAdmin && f.OrgID != p.OrgID:
		return false
	case p.Role.IsClient():
		return f.ClientVisible
	default:
		return true
	}
}

func (h *FilesHandler) loadFile(w http.ResponseWriter, r *http.Request, caller *models.Profile) (*models.FileObject, bool) {
	f, err := h.db.GetFile(r.Context(), chiRoute.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, h.logger, err, "file")
		return nil, false
	}
	if !canSeeFile(caller, f) {
		utils.WriteNotFoundResponse(w, "file not found")
		return nil, false
	}
	return f, true
}

// GET /api/files
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
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
	files, err := h.db.ListFiles(r.Context(), scope)
	if err != nil {
		writeStoreError(w, h.logger, err, "files")
		return
	}
	visible := make([]models.FileObject, 0, len(files))
	for i := range files {
		if canSeeFile(caller, &files[i]) {
			visible = append(visible, files[i])
		}
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"files": visible})
}

// POST /api/files (multipart: file, client_visible, org_id)
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	if !caller.Role.IsStaff() {
		utils.WriteForbiddenResponse(w, "Staff access required")
		return
	}
	if h.storage == nil {
		utils.WriteServiceUnavailableResponse(w, "File storage not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid upload: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		utils.WriteBadRequestResponse(w, "file field required")
		return
	}
	defer file.Close()

	orgID := caller.OrgID
	if caller.Role == models.RoleAdmin && r.FormValue("org_id") != "" {
		orgID = r.FormValue("org_id")
	}
	if orgID == "" {
		utils.WriteBadRequestResponse(w, "No organization selected")
		return
	}
	clientVisible, _ := strconv.ParseBool(r.FormValue("client_visible"))

	name := filepath.Base(strings.ReplaceAll(header.Filename, "\\", "/"))
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
			contentType = byExt
		}
	}
	id := uuid.NewString()
	objectPath := path.Join(orgID, id+"-"+name)

	if err := h.storage.Upload(r.Context(), h.config.StorageBucket, objectPath, contentType, file); err != nil {
		h.logger.Error("storage upload failed", zap.String("path", objectPath), zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Upload failed")
		return
	}

	meta := &models.FileObject{
		ID:            id,
		OrgID:         orgID,
		Name:          name,
		Path:          objectPath,
		ContentType:   contentType,
		Size:          header.Size,
		UploadedBy:    caller.ID,
		ClientVisible: clientVisible,
	}
	if err := h.db.CreateFile(r.Context(), meta); err != nil {
		if rmErr := h.storage.Remove(r.Context(), h.config.StorageBucket, objectPath); rmErr != nil {
			h.logger.Warn("orphaned upload", zap.String("path", objectPath), zap.Error(rmErr))
		}
		writeStoreError(w, h.logger, err, "file")
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"file": meta})
}

// GET /api/files/{id}/download
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	f, ok := h.loadFile(w, r, caller)
	if !ok {
		return
	}
	if h.storage == nil {
		utils.WriteServiceUnavailableResponse(w, "File storage not configured")
		return
	}
	signed, err := h.storage.SignedURL(r.Context(), h.config.StorageBucket, f.Path, signedURLExpiresIn)
	if err != nil {
		h.logger.Error("signing download url failed", zap.String("file_id", f.ID), zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Could not create download link")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"url":        signed,
		"expires_in": int(signedURLExpiresIn / time.Second),
		"file":       f,
	})
}

// DELETE /api/files/{id}
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	f, ok := h.loadFile(w, r, caller)
	if !ok {
		return
	}
	if !caller.Role.CanManage() && f.UploadedBy != caller.ID {
		utils.WriteForbiddenResponse(w, "Only the uploader or a manager can delete this file")
		return
	}
	if err := h.db.DeleteFile(r.Context(), f.ID); err != nil {
		writeStoreError(w, h.logger, err, "file")
		return
	}
	if h.storage != nil {
		if err := h.storage.Remove(r.Context(), h.config.StorageBucket, f.Path); err != nil {
			h.logger.Warn("storage remove failed", zap.String("path", f.Path), zap.Error(err))
		}
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"id": f.ID})
}
