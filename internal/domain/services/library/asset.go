package library

import (
	"context"

	"medialib/internal/domain/models/library"
)

// AssetService owns asset metadata, primary blobs and variants
type AssetService interface {
	// CreateAsset persists metadata for an already-uploaded primary blob
	CreateAsset(ctx context.Context, req *CreateAssetRequest) (*library.Asset, error)

	// GetAsset retrieves one asset of the caller
	GetAsset(ctx context.Context, ownerID, assetID string) (*library.Asset, error)

	// ListAssets lists the assets of exactly one scope; nil folderID means
	// unfiled assets only
	ListAssets(ctx context.Context, ownerID string, folderID *string) ([]library.Asset, error)

	// AddVariant records a manually produced variant; duplicate sizes conflict
	AddVariant(ctx context.Context, assetID string, targetSize int, blob library.BlobRef) (*library.Asset, error)

	// SetAutoThumbnails records the upload-time thumbnails that were produced.
	// Sizes that already exist are left untouched; blobs it does not record
	// are deleted.
	SetAutoThumbnails(ctx context.Context, assetID string, thumbs map[int]library.BlobRef) (*library.Asset, error)

	// ResizeAsset produces and records a variant of targetSize on demand
	ResizeAsset(ctx context.Context, ownerID, assetID string, targetSize int) (*library.Asset, error)

	// DeleteAsset deletes every blob (best effort) and then the metadata row
	DeleteAsset(ctx context.Context, ownerID, assetID string) error
}

// CreateAssetRequest represents the metadata of a freshly uploaded file
type CreateAssetRequest struct {
	OwnerID     string
	FolderID    *string
	Blob        library.BlobRef
	ContentType string
	Kind        library.MediaKind
	FileName    string
	SizeBytes   int64
}
