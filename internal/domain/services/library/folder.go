package library

import (
	"context"

	"medialib/internal/domain/models/library"
	"medialib/internal/httputil"
)

// FolderService handles folder business logic
type FolderService interface {
	// CreateFolder creates a new folder under an optional parent
	CreateFolder(ctx context.Context, req *CreateFolderRequest) (*library.Folder, error)

	// ListFolders lists every folder of the caller (flat; clients rebuild the tree)
	ListFolders(ctx context.Context, ownerID string) ([]library.Folder, error)

	// GetFolder retrieves a folder with its computed path
	GetFolder(ctx context.Context, ownerID, folderID string) (*library.Folder, error)

	// UpdateFolder renames and/or moves a folder
	UpdateFolder(ctx context.Context, ownerID, folderID string, req *UpdateFolderRequest) (*library.Folder, error)

	// DeleteFolder deletes a folder, its descendant folders and every asset inside them
	DeleteFolder(ctx context.Context, ownerID, folderID string) error

	// ListContents lists child folders and assets of a scope (nil = root)
	ListContents(ctx context.Context, ownerID string, folderID *string) (*FolderContents, error)
}

// CreateFolderRequest represents a folder creation request
type CreateFolderRequest struct {
	OwnerID  string  `json:"-"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"` // null for root
}

// UpdateFolderRequest represents a folder update request
type UpdateFolderRequest struct {
	Name     *string                 `json:"name,omitempty"`      // rename
	ParentID httputil.OptionalString `json:"parent_id,omitempty"` // move (null = root)
}

// FolderContents represents one scope of the library
type FolderContents struct {
	Folder  *library.Folder  `json:"folder,omitempty"` // null for root
	Folders []library.Folder `json:"folders"`
	Assets  []library.Asset  `json:"assets"`
}
