package library

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medialib/internal/domain"
	models "medialib/internal/domain/models/library"
	libraryRepo "medialib/internal/domain/repositories/library"
	"medialib/internal/repository/postgres"
)

const assetColumns = "id, owner_id, folder_id, url, deletion_handle, blob_category, content_type, kind, file_name, size_bytes, created_at, updated_at"

// PostgresAssetRepository implements the AssetRepository interface
type PostgresAssetRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(config *postgres.RepositoryConfig) libraryRepo.AssetRepository {
	return &PostgresAssetRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create persists asset metadata
func (r *PostgresAssetRepository) Create(ctx context.Context, asset *models.Asset) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (owner_id, folder_id, url, deletion_handle, blob_category, content_type, kind, file_name, size_bytes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`, r.tables.Assets)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		asset.OwnerID,
		asset.FolderID,
		asset.URL,
		asset.DeletionHandle,
		string(asset.BlobCategory),
		asset.ContentType,
		string(asset.Kind),
		asset.FileName,
		asset.SizeBytes,
		asset.CreatedAt,
		asset.UpdatedAt,
	).Scan(&asset.ID, &asset.CreatedAt, &asset.UpdatedAt)

	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return &domain.NotFoundError{Message: "folder not found"}
		}
		return fmt.Errorf("create asset: %w", err)
	}

	asset.SetVariants(nil)
	return nil
}

// GetByID retrieves an asset owned by ownerID
func (r *PostgresAssetRepository) GetByID(ctx context.Context, id, ownerID string) (*models.Asset, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND owner_id = $2
	`, assetColumns, r.tables.Assets)

	return r.getOne(ctx, id, query, id, ownerID)
}

// GetByIDOnly retrieves an asset by UUID only (no owner scoping)
func (r *PostgresAssetRepository) GetByIDOnly(ctx context.Context, id string) (*models.Asset, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1
	`, assetColumns, r.tables.Assets)

	return r.getOne(ctx, id, query, id)
}

func (r *PostgresAssetRepository) getOne(ctx context.Context, id, query string, args ...interface{}) (*models.Asset, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	asset, err := scanAsset(executor.QueryRow(ctx, query, args...))
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidTextError(err) {
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("asset %s not found", id)}
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}

	variants, err := r.ListVariants(ctx, asset.ID)
	if err != nil {
		return nil, err
	}
	asset.SetVariants(variants)

	return asset, nil
}

// ListByFolder lists the assets of exactly one scope. A nil folderID selects
// unfiled assets (folder_id IS NULL), not every asset.
func (r *PostgresAssetRepository) ListByFolder(ctx context.Context, folderID *string, ownerID string) ([]models.Asset, error) {
	var query string
	var args []interface{}

	if folderID == nil {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE owner_id = $1 AND folder_id IS NULL
			ORDER BY created_at DESC
		`, assetColumns, r.tables.Assets)
		args = append(args, ownerID)
	} else {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE owner_id = $1 AND folder_id = $2
			ORDER BY created_at DESC
		`, assetColumns, r.tables.Assets)
		args = append(args, ownerID, *folderID)
	}

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	assets := []models.Asset{}
	ids := []string{}
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, *asset)
		ids = append(ids, asset.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}

	if len(assets) == 0 {
		return assets, nil
	}

	byAsset, err := r.listVariantsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range assets {
		assets[i].SetVariants(byAsset[assets[i].ID])
	}

	return assets, nil
}

// AddVariant inserts a variant; the (asset_id, target_size) primary key
// turns a concurrent duplicate into a ConflictError.
func (r *PostgresAssetRepository) AddVariant(ctx context.Context, variant *models.Variant) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (asset_id, target_size, url, deletion_handle, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, r.tables.AssetVariants)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		variant.AssetID,
		variant.TargetSize,
		variant.URL,
		variant.DeletionHandle,
		string(variant.Source),
		variant.CreatedAt,
	).Scan(&variant.CreatedAt)

	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return variantConflict(variant)
		}
		if postgres.IsPgForeignKeyError(err) {
			return &domain.NotFoundError{Message: fmt.Sprintf("asset %s not found", variant.AssetID)}
		}
		return fmt.Errorf("add variant: %w", err)
	}

	if err := r.touch(ctx, variant.AssetID); err != nil {
		return err
	}
	return nil
}

// AddVariantIfAbsent inserts a variant unless the size already exists
func (r *PostgresAssetRepository) AddVariantIfAbsent(ctx context.Context, variant *models.Variant) (bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (asset_id, target_size, url, deletion_handle, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (asset_id, target_size) DO NOTHING
	`, r.tables.AssetVariants)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		variant.AssetID,
		variant.TargetSize,
		variant.URL,
		variant.DeletionHandle,
		string(variant.Source),
		variant.CreatedAt,
	)
	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return false, &domain.NotFoundError{Message: fmt.Sprintf("asset %s not found", variant.AssetID)}
		}
		return false, fmt.Errorf("add variant: %w", err)
	}

	if result.RowsAffected() == 0 {
		return false, nil
	}
	if err := r.touch(ctx, variant.AssetID); err != nil {
		return true, err
	}
	return true, nil
}

// ListVariants lists an asset's variants ordered by size
func (r *PostgresAssetRepository) ListVariants(ctx context.Context, assetID string) ([]models.Variant, error) {
	byAsset, err := r.listVariantsFor(ctx, []string{assetID})
	if err != nil {
		return nil, err
	}
	return byAsset[assetID], nil
}

func (r *PostgresAssetRepository) listVariantsFor(ctx context.Context, assetIDs []string) (map[string][]models.Variant, error) {
	query := fmt.Sprintf(`
		SELECT asset_id, target_size, url, deletion_handle, source, created_at
		FROM %s
		WHERE asset_id = ANY($1::uuid[])
		ORDER BY asset_id, target_size ASC
	`, r.tables.AssetVariants)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, assetIDs)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	byAsset := make(map[string][]models.Variant, len(assetIDs))
	for rows.Next() {
		var v models.Variant
		var source string
		if err := rows.Scan(&v.AssetID, &v.TargetSize, &v.URL, &v.DeletionHandle, &source, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		v.Source = models.VariantSource(source)
		byAsset[v.AssetID] = append(byAsset[v.AssetID], v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}

	return byAsset, nil
}

// Delete deletes the asset row; variant rows go with it (ON DELETE CASCADE)
func (r *PostgresAssetRepository) Delete(ctx context.Context, id, ownerID string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = $1 AND owner_id = $2
	`, r.tables.Assets)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}

	if result.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("asset %s not found", id)}
	}

	return nil
}

func (r *PostgresAssetRepository) touch(ctx context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET updated_at = now() WHERE id = $1`, r.tables.Assets)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("touch asset: %w", err)
	}
	return nil
}

func variantConflict(variant *models.Variant) *domain.ConflictError {
	return &domain.ConflictError{
		Message:      fmt.Sprintf("version with %dpx already exists", variant.TargetSize),
		ResourceType: "variant",
		ResourceID:   fmt.Sprintf("%s/%d", variant.AssetID, variant.TargetSize),
	}
}

func scanAsset(row pgx.Row) (*models.Asset, error) {
	var asset models.Asset
	var category, kind string
	err := row.Scan(
		&asset.ID,
		&asset.OwnerID,
		&asset.FolderID,
		&asset.URL,
		&asset.DeletionHandle,
		&category,
		&asset.ContentType,
		&kind,
		&asset.FileName,
		&asset.SizeBytes,
		&asset.CreatedAt,
		&asset.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	asset.BlobCategory = models.BlobCategory(category)
	asset.Kind = models.MediaKind(kind)
	return &asset, nil
}
