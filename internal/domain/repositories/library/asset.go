package library

import (
	"context"

	"medialib/internal/domain/models/library"
)

// AssetRepository defines data access operations for assets and their variants
type AssetRepository interface {
	// Create persists asset metadata (the primary blob must already exist)
	Create(ctx context.Context, asset *library.Asset) error

	// GetByID retrieves an asset owned by ownerID, variants included
	GetByID(ctx context.Context, id, ownerID string) (*library.Asset, error)

	// GetByIDOnly retrieves an asset regardless of owner
	GetByIDOnly(ctx context.Context, id string) (*library.Asset, error)

	// ListByFolder lists assets in exactly one scope: folderID nil means
	// assets with no folder, never "all assets"
	ListByFolder(ctx context.Context, folderID *string, ownerID string) ([]library.Asset, error)

	// AddVariant inserts a variant; fails with a ConflictError if the
	// (asset, size) pair already exists
	AddVariant(ctx context.Context, variant *library.Variant) error

	// AddVariantIfAbsent inserts a variant unless its size already exists.
	// Returns false when the size was already present.
	AddVariantIfAbsent(ctx context.Context, variant *library.Variant) (bool, error)

	// ListVariants lists an asset's variants ordered by size
	ListVariants(ctx context.Context, assetID string) ([]library.Variant, error)

	// Delete deletes the asset row and its variant rows
	Delete(ctx context.Context, id, ownerID string) error
}
