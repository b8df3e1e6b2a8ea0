package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync/atomic"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"medialib/internal/config"
	"medialib/internal/domain"
	models "medialib/internal/domain/models/library"
	libraryRepo "medialib/internal/domain/repositories/library"
	"medialib/internal/domain/services"
	librarySvc "medialib/internal/domain/services/library"
)

// Parallel blob deletions per asset
const deleteConcurrency = 4

type assetService struct {
	assetRepo     libraryRepo.AssetRepository
	folderRepo    libraryRepo.FolderRepository
	blobs         librarySvc.BlobStore
	resizer       librarySvc.ResizeWorker
	authorizer    services.ResourceAuthorizer
	resizeTimeout time.Duration
	resizes       singleflight.Group
	logger        *slog.Logger
}

// NewAssetService creates a new asset service
func NewAssetService(
	assetRepo libraryRepo.AssetRepository,
	folderRepo libraryRepo.FolderRepository,
	blobs librarySvc.BlobStore,
	resizer librarySvc.ResizeWorker,
	authorizer services.ResourceAuthorizer,
	resizeTimeout time.Duration,
	logger *slog.Logger,
) librarySvc.AssetService {
	if resizeTimeout <= 0 {
		resizeTimeout = config.DefaultResizeTimeout
	}
	return &assetService{
		assetRepo:     assetRepo,
		folderRepo:    folderRepo,
		blobs:         blobs,
		resizer:       resizer,
		authorizer:    authorizer,
		resizeTimeout: resizeTimeout,
		logger:        logger,
	}
}

// CreateAsset persists metadata for a primary blob that is already stored
func (s *assetService) CreateAsset(ctx context.Context, req *librarySvc.CreateAssetRequest) (*models.Asset, error) {
	if req.OwnerID == "" {
		return nil, &domain.UnauthorizedError{Message: "missing caller identity"}
	}
	if req.FolderID != nil && *req.FolderID == "" {
		req.FolderID = nil
	}

	if err := s.validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if req.FolderID != nil {
		if _, err := s.folderRepo.GetByID(ctx, *req.FolderID, req.OwnerID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	asset := &models.Asset{
		OwnerID:        req.OwnerID,
		FolderID:       req.FolderID,
		URL:            req.Blob.URL,
		DeletionHandle: req.Blob.DeletionHandle,
		BlobCategory:   req.Blob.Category,
		ContentType:    req.ContentType,
		Kind:           req.Kind,
		FileName:       req.FileName,
		SizeBytes:      req.SizeBytes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.assetRepo.Create(ctx, asset); err != nil {
		return nil, err
	}

	s.logger.Info("asset created",
		"id", asset.ID,
		"owner_id", asset.OwnerID,
		"folder_id", asset.FolderID,
		"kind", asset.Kind,
		"file_name", asset.FileName,
		"size_bytes", asset.SizeBytes,
	)

	return asset, nil
}

// GetAsset retrieves one asset of the caller with its variants
func (s *assetService) GetAsset(ctx context.Context, ownerID, assetID string) (*models.Asset, error) {
	if err := s.authorizer.CanAccessAsset(ctx, ownerID, assetID); err != nil {
		return nil, err
	}
	return s.assetRepo.GetByIDOnly(ctx, assetID)
}

// ListAssets lists the assets of exactly one scope. A nil folderID lists
// unfiled assets only.
func (s *assetService) ListAssets(ctx context.Context, ownerID string, folderID *string) ([]models.Asset, error) {
	folderID, err := s.authorizer.ResolveScope(ctx, ownerID, folderID)
	if err != nil {
		return nil, err
	}

	assets, err := s.assetRepo.ListByFolder(ctx, folderID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}

// AddVariant records a manually produced variant. The (asset, size) unique
// constraint in the store decides concurrent duplicates.
func (s *assetService) AddVariant(ctx context.Context, assetID string, targetSize int, blob models.BlobRef) (*models.Asset, error) {
	if err := validateTargetSize(targetSize); err != nil {
		return nil, err
	}

	asset, err := s.assetRepo.GetByIDOnly(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.HasVariant(targetSize) {
		return nil, variantExists(asset.ID, targetSize)
	}
	if !asset.IsImage() {
		return nil, notResizable(asset)
	}

	variant := &models.Variant{
		AssetID:        asset.ID,
		TargetSize:     targetSize,
		URL:            blob.URL,
		DeletionHandle: blob.DeletionHandle,
		Source:         models.VariantSourceManual,
		CreatedAt:      time.Now(),
	}
	if err := s.assetRepo.AddVariant(ctx, variant); err != nil {
		return nil, err
	}

	s.logger.Info("variant added",
		"asset_id", asset.ID,
		"target_size", targetSize,
		"source", variant.Source,
	)

	return s.assetRepo.GetByIDOnly(ctx, asset.ID)
}

// SetAutoThumbnails records upload-time thumbnails. A size that already
// exists keeps its current variant. Every blob in thumbs that does not end up
// referenced by a variant is deleted before returning, including sizes that
// were never requested and the whole map when the asset is gone.
func (s *assetService) SetAutoThumbnails(ctx context.Context, assetID string, thumbs map[int]models.BlobRef) (*models.Asset, error) {
	recorded := make(map[int]bool, len(thumbs))
	defer func() {
		var orphans []models.BlobRef
		for size, blob := range thumbs {
			if !recorded[size] {
				orphans = append(orphans, blob)
			}
		}
		if len(orphans) > 0 {
			s.logger.Debug("discarding unrecorded thumbnails", "asset_id", assetID, "count", len(orphans))
			s.deleteBlobs(context.WithoutCancel(ctx), orphans, assetID)
		}
	}()

	asset, err := s.assetRepo.GetByIDOnly(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if !asset.IsImage() {
		return nil, notResizable(asset)
	}

	sizes := make([]int, 0, len(thumbs))
	for size, blob := range thumbs {
		if blob.URL != "" && slices.Contains(models.AutoThumbnailSizes, size) {
			sizes = append(sizes, size)
		}
	}
	sort.Ints(sizes)

	for _, size := range sizes {
		blob := thumbs[size]
		variant := &models.Variant{
			AssetID:        asset.ID,
			TargetSize:     size,
			URL:            blob.URL,
			DeletionHandle: blob.DeletionHandle,
			Source:         models.VariantSourceAuto,
			CreatedAt:      time.Now(),
		}
		inserted, err := s.assetRepo.AddVariantIfAbsent(ctx, variant)
		if err != nil {
			return nil, fmt.Errorf("record %dpx thumbnail: %w", size, err)
		}
		if !inserted {
			s.logger.Debug("thumbnail size already present, discarding blob", "asset_id", asset.ID, "target_size", size)
			continue
		}
		recorded[size] = true
	}

	return s.assetRepo.GetByIDOnly(ctx, asset.ID)
}

// ResizeAsset produces a variant of targetSize on demand. Concurrent identical
// requests share one worker call; a request that loses the race on the store's
// unique constraint deletes the blob it just produced.
func (s *assetService) ResizeAsset(ctx context.Context, ownerID, assetID string, targetSize int) (*models.Asset, error) {
	if err := s.authorizer.CanAccessAsset(ctx, ownerID, assetID); err != nil {
		return nil, err
	}
	if err := validateTargetSize(targetSize); err != nil {
		return nil, err
	}

	asset, err := s.assetRepo.GetByIDOnly(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.HasVariant(targetSize) {
		return nil, variantExists(asset.ID, targetSize)
	}
	if !asset.IsImage() {
		return nil, notResizable(asset)
	}

	key := fmt.Sprintf("%s/%d", asset.ID, targetSize)
	v, err, shared := s.resizes.Do(key, func() (interface{}, error) {
		// Detached so one caller going away does not fail the others
		return s.resize(context.WithoutCancel(ctx), asset, targetSize)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("resize request de-duplicated", "asset_id", asset.ID, "target_size", targetSize)
	}

	return v.(*models.Asset), nil
}

func (s *assetService) resize(ctx context.Context, asset *models.Asset, targetSize int) (*models.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, s.resizeTimeout)
	defer cancel()

	data, err := s.readPrimary(ctx, asset)
	if err != nil {
		return nil, err
	}

	refs, err := s.resizer.Resize(ctx, data, asset.FileName, []int{targetSize})
	if err != nil {
		var upstream *domain.UpstreamUnavailableError
		if errors.As(err, &upstream) || errors.Is(err, domain.ErrUnsupportedMedia) {
			return nil, err
		}
		return nil, &domain.UpstreamUnavailableError{Message: "resize worker failed", Upstream: "resizer", Err: err}
	}

	blob, ok := refs[targetSize]
	if !ok || blob.URL == "" {
		for _, extra := range refs {
			s.deleteBlobBestEffort(ctx, extra, asset.ID)
		}
		return nil, &domain.UpstreamUnavailableError{
			Message:  fmt.Sprintf("resize worker returned no %dpx rendition", targetSize),
			Upstream: "resizer",
		}
	}

	variant := &models.Variant{
		AssetID:        asset.ID,
		TargetSize:     targetSize,
		URL:            blob.URL,
		DeletionHandle: blob.DeletionHandle,
		Source:         models.VariantSourceManual,
		CreatedAt:      time.Now(),
	}
	if err := s.assetRepo.AddVariant(ctx, variant); err != nil {
		// Lost the race or the asset vanished: the fresh blob is an orphan
		s.deleteBlobBestEffort(ctx, blob, asset.ID)
		return nil, err
	}

	s.logger.Info("asset resized",
		"asset_id", asset.ID,
		"target_size", targetSize,
	)

	return s.assetRepo.GetByIDOnly(ctx, asset.ID)
}

func (s *assetService) readPrimary(ctx context.Context, asset *models.Asset) ([]byte, error) {
	rc, err := s.blobs.Open(ctx, asset.Primary())
	if err != nil {
		return nil, &domain.UpstreamUnavailableError{Message: "failed to read original from blob store", Upstream: "blobstore", Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &domain.UpstreamUnavailableError{Message: "failed to read original from blob store", Upstream: "blobstore", Err: err}
	}
	return data, nil
}

// DeleteAsset deletes the primary blob and every variant blob best-effort,
// then deletes the metadata row regardless of how many blob deletions failed.
func (s *assetService) DeleteAsset(ctx context.Context, ownerID, assetID string) error {
	if err := s.authorizer.CanAccessAsset(ctx, ownerID, assetID); err != nil {
		return err
	}

	asset, err := s.assetRepo.GetByIDOnly(ctx, assetID)
	if err != nil {
		return err
	}

	refs := []models.BlobRef{asset.Primary()}
	for _, v := range asset.Variants {
		refs = append(refs, models.BlobRef{URL: v.URL, DeletionHandle: v.DeletionHandle, Category: models.CategoryImage})
	}

	failed := s.deleteBlobs(ctx, refs, asset.ID)

	if err := s.assetRepo.Delete(ctx, asset.ID, asset.OwnerID); err != nil {
		return err
	}

	s.logger.Info("asset deleted",
		"id", asset.ID,
		"owner_id", asset.OwnerID,
		"blobs", len(refs),
		"blob_failures", failed,
	)

	return nil
}

// deleteBlobs deletes refs concurrently and returns how many failed.
// Failures are logged, never returned.
func (s *assetService) deleteBlobs(ctx context.Context, refs []models.BlobRef, assetID string) int {
	var failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deleteConcurrency)

	for _, ref := range refs {
		g.Go(func() error {
			if !s.deleteBlobBestEffort(gctx, ref, assetID) {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(failed.Load())
}

func (s *assetService) deleteBlobBestEffort(ctx context.Context, ref models.BlobRef, assetID string) bool {
	if ref.DeletionHandle == "" {
		return true
	}
	if err := s.blobs.Delete(ctx, ref); err != nil {
		s.logger.Warn("blob deletion failed, leaving orphan",
			"asset_id", assetID,
			"url", ref.URL,
			"error", err,
		)
		return false
	}
	return true
}

// validateCreateRequest validates asset metadata
func (s *assetService) validateCreateRequest(req *librarySvc.CreateAssetRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.FileName, validation.Required, validation.RuneLength(1, config.MaxFileNameLength)),
		validation.Field(&req.ContentType, validation.Required),
		validation.Field(&req.Kind, validation.Required),
		validation.Field(&req.SizeBytes, validation.Min(int64(0))),
		validation.Field(&req.Blob, validation.By(func(value interface{}) error {
			blob, _ := value.(models.BlobRef)
			if blob.URL == "" {
				return errors.New("blob url is required")
			}
			if !blob.Category.Valid() {
				return fmt.Errorf("unknown blob category %q", blob.Category)
			}
			return nil
		})),
	)
}

func validateTargetSize(size int) error {
	if size < config.MinVariantSize || size > config.MaxVariantSize {
		return &domain.ValidationError{
			Message: fmt.Sprintf("target size must be between %d and %d pixels", config.MinVariantSize, config.MaxVariantSize),
		}
	}
	return nil
}

func variantExists(assetID string, size int) *domain.ConflictError {
	return &domain.ConflictError{
		Message:      fmt.Sprintf("version with %dpx already exists", size),
		ResourceType: "variant",
		ResourceID:   fmt.Sprintf("%s/%d", assetID, size),
	}
}

func notResizable(asset *models.Asset) *domain.UnsupportedMediaError {
	return &domain.UnsupportedMediaError{
		Message:     fmt.Sprintf("only images can be resized, %q is %s", asset.FileName, asset.Kind),
		ContentType: asset.ContentType,
	}
}
