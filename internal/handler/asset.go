package handler

import (
	"log/slog"
	"net/http"

	librarySvc "medialib/internal/domain/services/library"
	"medialib/internal/httputil"
)

// AssetHandler handles asset HTTP requests
type AssetHandler struct {
	assetService librarySvc.AssetService
	logger       *slog.Logger
}

// NewAssetHandler creates a new asset handler
func NewAssetHandler(assetService librarySvc.AssetService, logger *slog.Logger) *AssetHandler {
	return &AssetHandler{
		assetService: assetService,
		logger:       logger,
	}
}

// ListAssets lists the assets of exactly one scope
// GET /api/assets?folder_id=:id
// An absent, empty, "null" or "root" folder_id lists unfiled assets.
func (h *AssetHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	folderID := scopeParam(r.URL.Query().Get("folder_id"))

	assets, err := h.assetService.ListAssets(r.Context(), httputil.GetUserID(r), folderID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, assets)
}

// GetAsset retrieves one asset with its variants
// GET /api/assets/{id}
func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	assetID, ok := PathParam(w, r, "id", "Asset ID")
	if !ok {
		return
	}

	asset, err := h.assetService.GetAsset(r.Context(), httputil.GetUserID(r), assetID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, asset)
}

// DeleteAsset deletes an asset and, best effort, every blob it references
// DELETE /api/assets/{id}
func (h *AssetHandler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	assetID, ok := PathParam(w, r, "id", "Asset ID")
	if !ok {
		return
	}

	if err := h.assetService.DeleteAsset(r.Context(), httputil.GetUserID(r), assetID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// resizeRequest carries the wanted edge length in pixels
type resizeRequest struct {
	TargetSize int `json:"target_size"`
}

// ResizeAsset produces a new variant of an image on demand
// POST /api/assets/{id}/resize
// Returns 200 with the updated asset, 409 if the size exists, 415 for
// non-images and 503 when the resize worker fails.
func (h *AssetHandler) ResizeAsset(w http.ResponseWriter, r *http.Request) {
	assetID, ok := PathParam(w, r, "id", "Asset ID")
	if !ok {
		return
	}

	var req resizeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		respondBadBody(w, err)
		return
	}
	if req.TargetSize == 0 {
		httputil.RespondError(w, http.StatusBadRequest, "target_size is required")
		return
	}

	asset, err := h.assetService.ResizeAsset(r.Context(), httputil.GetUserID(r), assetID, req.TargetSize)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, asset)
}
