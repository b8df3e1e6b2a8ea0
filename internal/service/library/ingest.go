package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"medialib/internal/config"
	"medialib/internal/domain"
	models "medialib/internal/domain/models/library"
	libraryRepo "medialib/internal/domain/repositories/library"
	librarySvc "medialib/internal/domain/services/library"
	"medialib/internal/observability"
)

// Bytes handed to the classifier for content sniffing
const sniffLen = 3072

// Ingestion stages reported per failed file
const (
	StageRead     = "read"
	StageUpload   = "upload"
	StageMetadata = "metadata"
)

// IngestLimits bounds one batch
type IngestLimits struct {
	MaxFileBytes int64
	MaxFiles     int
}

// ingestService implements the IngestService interface
type ingestService struct {
	classifier  librarySvc.Classifier
	blobs       librarySvc.BlobStore
	assets      librarySvc.AssetService
	folderRepo  libraryRepo.FolderRepository
	thumbnailer *Thumbnailer
	observer    observability.Observer
	limits      IngestLimits
	logger      *slog.Logger
}

// NewIngestService creates a new ingestion pipeline
func NewIngestService(
	classifier librarySvc.Classifier,
	blobs librarySvc.BlobStore,
	assets librarySvc.AssetService,
	folderRepo libraryRepo.FolderRepository,
	thumbnailer *Thumbnailer,
	observer observability.Observer,
	limits IngestLimits,
	logger *slog.Logger,
) librarySvc.IngestService {
	if limits.MaxFileBytes <= 0 {
		limits.MaxFileBytes = config.MaxUploadFileBytes
	}
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = config.MaxUploadBatchFiles
	}
	if observer == nil {
		observer = observability.NopObserver{}
	}
	return &ingestService{
		classifier:  classifier,
		blobs:       blobs,
		assets:      assets,
		folderRepo:  folderRepo,
		thumbnailer: thumbnailer,
		observer:    observer,
		limits:      limits,
		logger:      logger,
	}
}

// Ingest processes files one at a time. A failing file is recorded in the
// result and the batch moves on to the next one.
func (s *ingestService) Ingest(ctx context.Context, ownerID string, files []librarySvc.UploadedFile, folderID *string) (*librarySvc.IngestResult, error) {
	if ownerID == "" {
		return nil, &domain.UnauthorizedError{Message: "missing caller identity"}
	}
	if len(files) == 0 {
		return nil, &domain.ValidationError{Message: "no files uploaded"}
	}
	if len(files) > s.limits.MaxFiles {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("too many files: %d (maximum %d)", len(files), s.limits.MaxFiles)}
	}
	if folderID != nil && *folderID == "" {
		folderID = nil
	}
	if folderID != nil {
		if _, err := s.folderRepo.GetByID(ctx, *folderID, ownerID); err != nil {
			return nil, err
		}
	}

	result := &librarySvc.IngestResult{
		Summary: librarySvc.IngestSummary{},
		Errors:  []librarySvc.IngestError{},
		Assets:  []models.Asset{},
	}

	for i, file := range files {
		result.Summary.TotalFiles++
		s.ingestFile(ctx, ownerID, folderID, i, file, result)
	}

	s.logger.Info("ingest complete",
		"owner_id", ownerID,
		"folder_id", folderID,
		"succeeded", result.Summary.Succeeded,
		"failed", result.Summary.Failed,
		"thumbnailed", result.Summary.Thumbnailed,
		"total_files", result.Summary.TotalFiles,
	)

	return result, nil
}

// ingestFile reads, classifies, stores, records and thumbnails one file
func (s *ingestService) ingestFile(
	ctx context.Context,
	ownerID string,
	folderID *string,
	index int,
	file librarySvc.UploadedFile,
	result *librarySvc.IngestResult,
) {
	name := sanitizeFileName(file.FileName)
	if name == "" {
		s.addError(result, index, file.FileName, StageRead, "file name is required")
		return
	}
	if len([]rune(name)) > config.MaxFileNameLength {
		s.addError(result, index, name, StageRead, fmt.Sprintf("file name exceeds %d characters", config.MaxFileNameLength))
		return
	}

	data, err := s.readAll(file.Content)
	if err != nil {
		s.addError(result, index, name, StageRead, err.Error())
		return
	}

	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	// Anything unrecognized classifies as an opaque "other" upload
	class := s.classifier.Classify(file.ContentType, name, head)

	// The primary blob must exist before any metadata points at it
	blob, err := s.blobs.Put(ctx, data, class.ContentType, class.Category)
	if err != nil {
		s.addError(result, index, name, StageUpload, fmt.Sprintf("failed to store file: %v", err))
		return
	}

	asset, err := s.assets.CreateAsset(ctx, &librarySvc.CreateAssetRequest{
		OwnerID:     ownerID,
		FolderID:    folderID,
		Blob:        blob,
		ContentType: class.ContentType,
		Kind:        class.Kind,
		FileName:    name,
		SizeBytes:   int64(len(data)),
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, blob); delErr != nil {
			s.logger.Warn("failed to remove blob of unrecorded upload", "file", name, "url", blob.URL, "error", delErr)
		}
		s.addError(result, index, name, StageMetadata, fmt.Sprintf("failed to save file record: %v", err))
		return
	}

	if class.Thumbnail && s.thumbnailer != nil {
		updated, complete := s.thumbnailer.Process(ctx, asset, data)
		asset = updated
		if complete {
			result.Summary.Thumbnailed++
		}
	}

	result.Summary.Succeeded++
	result.Assets = append(result.Assets, *asset)
	s.observer.RecordIngest("succeeded", "")

	s.logger.Debug("file ingested",
		"index", index,
		"file", name,
		"asset_id", asset.ID,
		"kind", asset.Kind,
	)
}

func (s *ingestService) readAll(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, errors.New("file has no content")
	}

	data, err := io.ReadAll(io.LimitReader(r, s.limits.MaxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > s.limits.MaxFileBytes {
		return nil, fmt.Errorf("file exceeds the %d byte limit", s.limits.MaxFileBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("file is empty")
	}
	return data, nil
}

// addError records a failed file and moves on
func (s *ingestService) addError(result *librarySvc.IngestResult, index int, file, stage, message string) {
	result.Summary.Failed++
	result.Errors = append(result.Errors, librarySvc.IngestError{
		Index: index,
		File:  file,
		Stage: stage,
		Error: message,
	})
	s.observer.RecordIngest("failed", stage)

	s.logger.Warn("file ingest failed",
		"index", index,
		"file", file,
		"stage", stage,
		"error", message,
	)
}

// sanitizeFileName keeps the base name of a client supplied file name
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	base := filepath.Base(name)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
