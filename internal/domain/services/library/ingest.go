package library

import (
	"context"
	"io"

	"medialib/internal/domain/models/library"
)

// UploadedFile represents one file received for ingestion
type UploadedFile struct {
	FileName    string
	ContentType string // Declared MIME type (may be empty)
	Content     io.Reader
}

// IngestService receives uploads and turns them into assets
type IngestService interface {
	// Ingest processes files sequentially. Per-file failures are reported in
	// the result and never abort the batch. The returned error is non-nil only
	// when the batch as a whole is invalid (no owner, unknown folder, no files).
	Ingest(ctx context.Context, ownerID string, files []UploadedFile, folderID *string) (*IngestResult, error)
}

// IngestResult reports the outcome of every file in a batch
type IngestResult struct {
	Summary IngestSummary   `json:"summary"`
	Errors  []IngestError   `json:"errors"`
	Assets  []library.Asset `json:"assets"`
}

// IngestSummary contains aggregate statistics for a batch
type IngestSummary struct {
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	TotalFiles int `json:"total_files"`
	// Thumbnailed counts images whose auto thumbnails were all produced
	Thumbnailed int `json:"thumbnailed"`
}

// IngestError describes why one file failed
type IngestError struct {
	Index int    `json:"index"` // Position of the file in the batch (0-based)
	File  string `json:"file"`
	Stage string `json:"stage"` // "read", "upload", "metadata"
	Error string `json:"error"`
}

// AllFailed reports whether no file in the batch succeeded
func (r *IngestResult) AllFailed() bool {
	return r.Summary.TotalFiles > 0 && r.Summary.Succeeded == 0
}
