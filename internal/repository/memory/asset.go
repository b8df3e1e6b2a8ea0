package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"medialib/internal/domain"
	models "medialib/internal/domain/models/library"
	libraryRepo "medialib/internal/domain/repositories/library"
)

// AssetRepository implements the AssetRepository interface over a Store
type AssetRepository struct {
	store *Store
}

// NewAssetRepository creates an asset repository backed by store
func NewAssetRepository(store *Store) libraryRepo.AssetRepository {
	return &AssetRepository{store: store}
}

// Create inserts asset metadata, assigning its id and timestamps
func (r *AssetRepository) Create(ctx context.Context, asset *models.Asset) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if asset.FolderID != nil {
		if _, ok := s.folders[*asset.FolderID]; !ok {
			return &domain.NotFoundError{Message: "folder not found"}
		}
	}

	now := time.Now()
	asset.ID = newID()
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = now
	}
	if asset.UpdatedAt.IsZero() {
		asset.UpdatedAt = now
	}
	asset.SetVariants(nil)

	stored := *asset
	stored.FolderID = cloneString(asset.FolderID)
	stored.Variants = nil
	stored.Thumbnail256 = nil
	stored.Thumbnail512 = nil
	s.assets[stored.ID] = stored
	s.track(stored.ID)

	return nil
}

// GetByID retrieves an asset owned by ownerID
func (r *AssetRepository) GetByID(ctx context.Context, id, ownerID string) (*models.Asset, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	a, ok := r.store.assets[id]
	if !ok || a.OwnerID != ownerID {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("asset %s not found", id)}
	}
	out := r.store.assetWithVariants(a)
	return &out, nil
}

// GetByIDOnly retrieves an asset regardless of owner
func (r *AssetRepository) GetByIDOnly(ctx context.Context, id string) (*models.Asset, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	a, ok := r.store.assets[id]
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("asset %s not found", id)}
	}
	out := r.store.assetWithVariants(a)
	return &out, nil
}

// ListByFolder lists the assets of exactly one scope; nil means unfiled only
func (r *AssetRepository) ListByFolder(ctx context.Context, folderID *string, ownerID string) ([]models.Asset, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	assets := []models.Asset{}
	for _, a := range s.assets {
		if a.OwnerID == ownerID && sameParent(a.FolderID, folderID) {
			assets = append(assets, s.assetWithVariants(a))
		}
	}
	sort.Slice(assets, func(i, j int) bool {
		return s.newerFirst(assets[i].ID, assets[i].CreatedAt, assets[j].ID, assets[j].CreatedAt)
	})

	return assets, nil
}

// AddVariant inserts a variant; a duplicate size is a ConflictError
func (r *AssetRepository) AddVariant(ctx context.Context, variant *models.Variant) error {
	inserted, err := r.AddVariantIfAbsent(ctx, variant)
	if err != nil {
		return err
	}
	if !inserted {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("version with %dpx already exists", variant.TargetSize),
			ResourceType: "variant",
			ResourceID:   fmt.Sprintf("%s/%d", variant.AssetID, variant.TargetSize),
		}
	}
	return nil
}

// AddVariantIfAbsent atomically inserts a variant unless its size exists
func (r *AssetRepository) AddVariantIfAbsent(ctx context.Context, variant *models.Variant) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[variant.AssetID]
	if !ok {
		return false, &domain.NotFoundError{Message: fmt.Sprintf("asset %s not found", variant.AssetID)}
	}

	bySize := s.variants[variant.AssetID]
	if bySize == nil {
		bySize = make(map[int]models.Variant)
		s.variants[variant.AssetID] = bySize
	}
	if _, exists := bySize[variant.TargetSize]; exists {
		return false, nil
	}

	if variant.CreatedAt.IsZero() {
		variant.CreatedAt = time.Now()
	}
	bySize[variant.TargetSize] = *variant

	a.UpdatedAt = time.Now()
	s.assets[a.ID] = a

	return true, nil
}

// ListVariants lists an asset's variants ordered by size
func (r *AssetRepository) ListVariants(ctx context.Context, assetID string) ([]models.Variant, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	variants := []models.Variant{}
	for _, v := range r.store.variants[assetID] {
		variants = append(variants, v)
	}
	sort.Slice(variants, func(i, j int) bool { return variants[i].TargetSize < variants[j].TargetSize })

	return variants, nil
}

// Delete removes the asset row and its variants
func (r *AssetRepository) Delete(ctx context.Context, id, ownerID string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[id]
	if !ok || a.OwnerID != ownerID {
		return &domain.NotFoundError{Message: fmt.Sprintf("asset %s not found", id)}
	}

	delete(s.assets, id)
	delete(s.variants, id)
	delete(s.seq, id)
	return nil
}
