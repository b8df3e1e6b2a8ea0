package services

import "context"

// ResourceAuthorizer decides whether a caller may touch a folder or asset.
// Direct access to another owner's resource is Forbidden; using it as a
// scope (list or upload target) reads as NotFound.
type ResourceAuthorizer interface {
	CanAccessFolder(ctx context.Context, userID, folderID string) error
	CanAccessAsset(ctx context.Context, userID, assetID string) error

	// ResolveScope normalizes a folder scope ("" and nil both mean root)
	// and confirms the caller owns it.
	ResolveScope(ctx context.Context, userID string, folderID *string) (*string, error)
}
