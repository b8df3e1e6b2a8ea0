package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	librarySvc "medialib/internal/domain/services/library"
	"medialib/internal/httputil"
	libraryService "medialib/internal/service/library"
)

// Multipart parts kept in memory before spilling to temp files
const multipartMemory = 32 << 20

// Headroom for multipart framing and form fields
const multipartOverhead = 1 << 20

// UploadHandler receives files and hands them to the ingestion pipeline.
//
// Supports two modes:
//   - Single: one file under "file" (or "image"); responds with the asset
//   - Batch: files under "files" (or "images"); responds with a per-file report
type UploadHandler struct {
	ingestService librarySvc.IngestService
	maxFileBytes  int64
	maxFiles      int
	logger        *slog.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(ingestService librarySvc.IngestService, maxFileBytes int64, maxFiles int, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		ingestService: ingestService,
		maxFileBytes:  maxFileBytes,
		maxFiles:      maxFiles,
		logger:        logger,
	}
}

// UploadResponse is the batch upload report
type UploadResponse struct {
	Success bool                     `json:"success"`
	Summary librarySvc.IngestSummary `json:"summary"`
	Errors  []librarySvc.IngestError `json:"errors"`
	Assets  interface{}              `json:"assets"`
}

// UploadSingle ingests one file
// POST /api/assets/upload
//
// Form fields:
//   - file (or image): required
//   - folder_id: optional target folder (absent = root)
func (h *UploadHandler) UploadSingle(w http.ResponseWriter, r *http.Request) {
	headers, folderID, ok := h.parseForm(w, r, 1, "file", "image")
	if !ok {
		return
	}
	if len(headers) != 1 {
		httputil.RespondError(w, http.StatusBadRequest, "exactly one file is required")
		return
	}

	result, ok := h.ingest(w, r, headers, folderID)
	if !ok {
		return
	}

	if len(result.Assets) == 1 {
		httputil.RespondJSON(w, http.StatusCreated, result.Assets[0])
		return
	}

	failure := result.Errors[0]
	httputil.RespondErrorWithExtras(w, stageStatus(failure.Stage), failure.Error, map[string]interface{}{
		"file":  failure.File,
		"stage": failure.Stage,
	})
}

// UploadMultiple ingests a batch of files sequentially
// POST /api/assets/upload-multiple
//
// Responds 201 when every file succeeded, 207 on partial success and 422
// when every file failed. The body is always the per-file report.
func (h *UploadHandler) UploadMultiple(w http.ResponseWriter, r *http.Request) {
	headers, folderID, ok := h.parseForm(w, r, h.maxFiles, "files", "images")
	if !ok {
		return
	}

	result, ok := h.ingest(w, r, headers, folderID)
	if !ok {
		return
	}

	status := http.StatusCreated
	switch {
	case result.AllFailed():
		status = http.StatusUnprocessableEntity
	case result.Summary.Failed > 0:
		status = http.StatusMultiStatus
	}

	httputil.RespondJSON(w, status, UploadResponse{
		Success: result.Summary.Failed == 0,
		Summary: result.Summary,
		Errors:  result.Errors,
		Assets:  result.Assets,
	})
}

// parseForm reads the multipart body and returns the file headers found
// under the first field name that has any
func (h *UploadHandler) parseForm(w http.ResponseWriter, r *http.Request, maxFiles int, fields ...string) ([]*multipart.FileHeader, *string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxFiles)*h.maxFileBytes+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.RespondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit))
			return nil, nil, false
		}
		httputil.RespondError(w, http.StatusBadRequest, "Failed to parse multipart form")
		return nil, nil, false
	}

	var headers []*multipart.FileHeader
	for _, field := range fields {
		if found := r.MultipartForm.File[field]; len(found) > 0 {
			headers = found
			break
		}
	}
	if len(headers) == 0 {
		httputil.RespondError(w, http.StatusBadRequest, "No files provided")
		return nil, nil, false
	}

	folderID := r.FormValue("folder_id")
	if folderID == "" {
		folderID = r.URL.Query().Get("folder_id")
	}
	return headers, scopeParam(folderID), true
}

func (h *UploadHandler) ingest(w http.ResponseWriter, r *http.Request, headers []*multipart.FileHeader, folderID *string) (*librarySvc.IngestResult, bool) {
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	// Files stay open until the pipeline has read them all
	files := make([]librarySvc.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.logger.Error("failed to open uploaded file",
				"file", fh.Filename,
				"error", err,
			)
			httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to open file %s", fh.Filename))
			return nil, false
		}
		defer func() { _ = f.Close() }()

		files = append(files, librarySvc.UploadedFile{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     f,
		})
	}

	result, err := h.ingestService.Ingest(r.Context(), httputil.GetUserID(r), files, folderID)
	if err != nil {
		handleError(w, err)
		return nil, false
	}
	return result, true
}

// stageStatus maps the failing ingestion stage of a single upload to a status
func stageStatus(stage string) int {
	switch stage {
	case libraryService.StageUpload:
		return http.StatusServiceUnavailable
	case libraryService.StageMetadata:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
