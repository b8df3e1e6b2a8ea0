package library

import (
	"context"

	"medialib/internal/domain/models/library"
)

// FolderRepository defines data access operations for folders.
// Every method except GetByIDOnly is scoped to an owner.
type FolderRepository interface {
	// Create creates a new folder; fails with a ConflictError when
	// (owner, parent, name) is already taken
	Create(ctx context.Context, folder *library.Folder) error

	// GetByID retrieves a folder owned by ownerID
	GetByID(ctx context.Context, id, ownerID string) (*library.Folder, error)

	// GetByIDOnly retrieves a folder regardless of owner (authorization is done by the caller)
	GetByIDOnly(ctx context.Context, id string) (*library.Folder, error)

	// FindByName finds the folder with the given name under parentID (nil = root).
	// Returns nil, nil when no folder matches.
	FindByName(ctx context.Context, ownerID string, parentID *string, name string) (*library.Folder, error)

	// Update persists a rename or move
	Update(ctx context.Context, folder *library.Folder) error

	// Delete deletes a single folder row
	Delete(ctx context.Context, id, ownerID string) error

	// ListChildren lists immediate child folders (nil = root level)
	ListChildren(ctx context.Context, parentID *string, ownerID string) ([]library.Folder, error)

	// ListByOwner lists every folder of an owner, most recently created first
	ListByOwner(ctx context.Context, ownerID string) ([]library.Folder, error)
}
