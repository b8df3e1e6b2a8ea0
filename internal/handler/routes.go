package handler

import (
	"net/http"
)

// Handlers groups everything RegisterRoutes mounts
type Handlers struct {
	Folders *FolderHandler
	Assets  *AssetHandler
	Uploads *UploadHandler
	Health  *HealthHandler
	Blobs   http.Handler // nil when blobs are served elsewhere
	Metrics http.Handler // nil when metrics are disabled
}

// RegisterRoutes mounts the HTTP surface on mux (Go 1.22+ patterns)
func RegisterRoutes(mux *http.ServeMux, h Handlers) {
	// Health check
	mux.HandleFunc("GET /health", h.Health.HealthCheck)

	// Folder routes
	mux.HandleFunc("GET /api/folders", h.Folders.ListFolders)
	mux.HandleFunc("POST /api/folders", h.Folders.CreateFolder)
	mux.HandleFunc("POST /api/folders/resolve", h.Folders.ResolvePath)
	mux.HandleFunc("GET /api/folders/{id}", h.Folders.GetFolder)
	mux.HandleFunc("PATCH /api/folders/{id}", h.Folders.UpdateFolder)
	mux.HandleFunc("DELETE /api/folders/{id}", h.Folders.DeleteFolder)
	mux.HandleFunc("GET /api/folders/{id}/path", h.Folders.GetFolderPath)
	mux.HandleFunc("GET /api/folders/{id}/contents", h.Folders.ListContents)

	// Asset routes
	mux.HandleFunc("GET /api/assets", h.Assets.ListAssets)
	mux.HandleFunc("POST /api/assets/upload", h.Uploads.UploadSingle)
	mux.HandleFunc("POST /api/assets/upload-multiple", h.Uploads.UploadMultiple)
	mux.HandleFunc("GET /api/assets/{id}", h.Assets.GetAsset)
	mux.HandleFunc("DELETE /api/assets/{id}", h.Assets.DeleteAsset)
	mux.HandleFunc("POST /api/assets/{id}/resize", h.Assets.ResizeAsset)

	if h.Blobs != nil {
		mux.Handle("GET /blobs/", h.Blobs)
	}
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}
}
