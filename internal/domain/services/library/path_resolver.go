package library

import (
	"context"
)

// PathResolver converts between human folder paths and folder ids
type PathResolver interface {
	// ResolvePath walks names from the root scope and returns the folder id.
	// An empty sequence resolves to the root scope (nil, nil).
	// Fails with a NotFoundError naming the first unmatched segment.
	ResolvePath(ctx context.Context, ownerID string, names []string) (*string, error)

	// ComputePath returns the "/"-joined names from the root down to folderID.
	// Fails with a CorruptionError if the ancestor chain is broken or cyclic.
	ComputePath(ctx context.Context, ownerID, folderID string) (string, error)

	// AncestorNames returns the folder names from the root down to folderID
	AncestorNames(ctx context.Context, ownerID, folderID string) ([]string, error)
}
