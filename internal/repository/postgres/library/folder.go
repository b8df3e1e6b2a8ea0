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

const folderColumns = "id, owner_id, parent_id, name, created_at, updated_at"

// PostgresFolderRepository implements the FolderRepository interface
type PostgresFolderRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(config *postgres.RepositoryConfig) libraryRepo.FolderRepository {
	return &PostgresFolderRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create creates a new folder. Name uniqueness per (owner, parent) is
// enforced by a unique index, so concurrent creates cannot both succeed.
func (r *PostgresFolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (owner_id, parent_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		folder.OwnerID,
		folder.ParentID,
		folder.Name,
		folder.CreatedAt,
		folder.UpdatedAt,
	).Scan(&folder.ID, &folder.CreatedAt, &folder.UpdatedAt)

	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return r.conflict(ctx, folder)
		}
		if postgres.IsPgForeignKeyError(err) {
			return &domain.NotFoundError{Message: "parent folder not found"}
		}
		return fmt.Errorf("create folder: %w", err)
	}

	return nil
}

// GetByID retrieves a folder owned by ownerID
func (r *PostgresFolderRepository) GetByID(ctx context.Context, id, ownerID string) (*models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND owner_id = $2
	`, folderColumns, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	folder, err := scanFolder(executor.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidTextError(err) {
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("folder %s not found", id)}
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}

	return folder, nil
}

// GetByIDOnly retrieves a folder by UUID only (no owner scoping)
func (r *PostgresFolderRepository) GetByIDOnly(ctx context.Context, id string) (*models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1
	`, folderColumns, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	folder, err := scanFolder(executor.QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidTextError(err) {
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("folder %s not found", id)}
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}

	return folder, nil
}

// FindByName finds a folder by name under a parent; returns nil, nil when absent
func (r *PostgresFolderRepository) FindByName(ctx context.Context, ownerID string, parentID *string, name string) (*models.Folder, error) {
	var query string
	var args []interface{}

	if parentID == nil {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE owner_id = $1 AND name = $2 AND parent_id IS NULL
		`, folderColumns, r.tables.Folders)
		args = append(args, ownerID, name)
	} else {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE owner_id = $1 AND name = $2 AND parent_id = $3
		`, folderColumns, r.tables.Folders)
		args = append(args, ownerID, name, *parentID)
	}

	executor := postgres.GetExecutor(ctx, r.pool)
	folder, err := scanFolder(executor.QueryRow(ctx, query, args...))
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidTextError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get folder by name and parent: %w", err)
	}

	return folder, nil
}

// Update updates a folder's name and parent
func (r *PostgresFolderRepository) Update(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET parent_id = $1, name = $2, updated_at = $3
		WHERE id = $4 AND owner_id = $5
	`, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		folder.ParentID,
		folder.Name,
		folder.UpdatedAt,
		folder.ID,
		folder.OwnerID,
	)

	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return r.conflict(ctx, folder)
		}
		return fmt.Errorf("update folder: %w", err)
	}

	if result.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("folder %s not found", folder.ID)}
	}

	return nil
}

// Delete deletes a single folder row. Children and assets must already be gone.
func (r *PostgresFolderRepository) Delete(ctx context.Context, id, ownerID string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = $1 AND owner_id = $2
	`, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id, ownerID)
	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return &domain.ConflictError{
				Message:      "folder still has children",
				ResourceType: "folder",
				ResourceID:   id,
			}
		}
		return fmt.Errorf("delete folder: %w", err)
	}

	if result.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("folder %s not found", id)}
	}

	return nil
}

// ListChildren lists immediate child folders
func (r *PostgresFolderRepository) ListChildren(ctx context.Context, parentID *string, ownerID string) ([]models.Folder, error) {
	var query string
	var args []interface{}

	if parentID == nil {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE owner_id = $1 AND parent_id IS NULL
			ORDER BY name ASC
		`, folderColumns, r.tables.Folders)
		args = append(args, ownerID)
	} else {
		query = fmt.Sprintf(`
			SELECT %s
			FROM %s
			WHERE owner_id = $1 AND parent_id = $2
			ORDER BY name ASC
		`, folderColumns, r.tables.Folders)
		args = append(args, ownerID, *parentID)
	}

	return r.queryFolders(ctx, "list folder children", query, args...)
}

// ListByOwner retrieves all folders of an owner (flat list, newest first)
func (r *PostgresFolderRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, folderColumns, r.tables.Folders)

	return r.queryFolders(ctx, "list folders", query, ownerID)
}

func (r *PostgresFolderRepository) queryFolders(ctx context.Context, op, query string, args ...interface{}) ([]models.Folder, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, *folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}

	return folders, nil
}

// conflict builds a ConflictError pointing at the folder that holds the name
func (r *PostgresFolderRepository) conflict(ctx context.Context, folder *models.Folder) error {
	conflictErr := &domain.ConflictError{
		Message:      fmt.Sprintf("a folder named %q already exists in this location", folder.Name),
		ResourceType: "folder",
	}
	existing, err := r.FindByName(ctx, folder.OwnerID, folder.ParentID, folder.Name)
	if err != nil {
		r.logger.Warn("failed to look up conflicting folder", "name", folder.Name, "error", err)
	} else if existing != nil {
		conflictErr.ResourceID = existing.ID
	}
	return conflictErr
}

func scanFolder(row pgx.Row) (*models.Folder, error) {
	var folder models.Folder
	err := row.Scan(
		&folder.ID,
		&folder.OwnerID,
		&folder.ParentID,
		&folder.Name,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &folder, nil
}
