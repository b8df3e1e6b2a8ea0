package handler

import (
	"log/slog"
	"net/http"
	"strings"

	models "medialib/internal/domain/models/library"
	librarySvc "medialib/internal/domain/services/library"
	"medialib/internal/httputil"
)

// FolderHandler handles folder HTTP requests
type FolderHandler struct {
	folderService librarySvc.FolderService
	pathResolver  librarySvc.PathResolver
	logger        *slog.Logger
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(folderService librarySvc.FolderService, pathResolver librarySvc.PathResolver, logger *slog.Logger) *FolderHandler {
	return &FolderHandler{
		folderService: folderService,
		pathResolver:  pathResolver,
		logger:        logger,
	}
}

// ListFolders lists every folder of the caller, newest first
// GET /api/folders
func (h *FolderHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	folders, err := h.folderService.ListFolders(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folders)
}

// CreateFolder creates a new folder
// POST /api/folders
// Returns 201 if created, 409 with existing folder if duplicate
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req librarySvc.CreateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		respondBadBody(w, err)
		return
	}
	req.OwnerID = userID

	folder, err := h.folderService.CreateFolder(r.Context(), &req)
	if err != nil {
		HandleCreateConflict(w, err, func(id string) (*models.Folder, error) {
			return h.folderService.GetFolder(r.Context(), userID, id)
		})
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, folder)
}

// GetFolder retrieves a folder with its computed path
// GET /api/folders/{id}
func (h *FolderHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	folderID, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}

	folder, err := h.folderService.GetFolder(r.Context(), httputil.GetUserID(r), folderID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// UpdateFolder renames and/or moves a folder
// PATCH /api/folders/{id}
func (h *FolderHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	folderID, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}

	var req librarySvc.UpdateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		respondBadBody(w, err)
		return
	}

	folder, err := h.folderService.UpdateFolder(r.Context(), httputil.GetUserID(r), folderID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// DeleteFolder deletes a folder with every descendant folder and asset
// DELETE /api/folders/{id}
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	folderID, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}

	if err := h.folderService.DeleteFolder(r.Context(), httputil.GetUserID(r), folderID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetFolderPath returns the "/"-joined path of a folder
// GET /api/folders/{id}/path
func (h *FolderHandler) GetFolderPath(w http.ResponseWriter, r *http.Request) {
	folderID, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}

	path, err := h.pathResolver.ComputePath(r.Context(), httputil.GetUserID(r), folderID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]string{"path": path})
}

// ListContents lists child folders and assets of a folder, or of the root
// scope when id is "root"
// GET /api/folders/{id}/contents
func (h *FolderHandler) ListContents(w http.ResponseWriter, r *http.Request) {
	folderID, ok := PathParam(w, r, "id", "Folder ID")
	if !ok {
		return
	}

	contents, err := h.folderService.ListContents(r.Context(), httputil.GetUserID(r), scopeParam(folderID))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, contents)
}

// resolvePathRequest accepts the path as segments
type resolvePathRequest struct {
	Path []string `json:"path"`
}

// resolvePathResponse is null folder_id for the root scope
type resolvePathResponse struct {
	FolderID *string `json:"folder_id"`
	FullPath string  `json:"full_path"`
}

// ResolvePath walks folder names from the root scope
// POST /api/folders/resolve
func (h *FolderHandler) ResolvePath(w http.ResponseWriter, r *http.Request) {
	var req resolvePathRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		respondBadBody(w, err)
		return
	}

	folderID, err := h.pathResolver.ResolvePath(r.Context(), httputil.GetUserID(r), req.Path)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, resolvePathResponse{
		FolderID: folderID,
		FullPath: strings.Join(req.Path, "/"),
	})
}
