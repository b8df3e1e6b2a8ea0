package auth

import (
	"context"
	"errors"
	"fmt"

	"medialib/internal/domain"
	libraryRepo "medialib/internal/domain/repositories/library"
)

// OwnerBasedAuthorizer implements ResourceAuthorizer using ownership checks.
// A user can access a folder or asset only if they own it.
type OwnerBasedAuthorizer struct {
	folderRepo libraryRepo.FolderRepository
	assetRepo  libraryRepo.AssetRepository
}

// NewOwnerBasedAuthorizer creates a new ownership-based authorizer
func NewOwnerBasedAuthorizer(
	folderRepo libraryRepo.FolderRepository,
	assetRepo libraryRepo.AssetRepository,
) *OwnerBasedAuthorizer {
	return &OwnerBasedAuthorizer{
		folderRepo: folderRepo,
		assetRepo:  assetRepo,
	}
}

// CanAccessFolder checks if user owns the folder.
// Missing folders are NotFound; folders of another owner are Forbidden.
func (a *OwnerBasedAuthorizer) CanAccessFolder(ctx context.Context, userID, folderID string) error {
	if userID == "" {
		return &domain.UnauthorizedError{Message: "missing caller identity"}
	}

	folder, err := a.folderRepo.GetByIDOnly(ctx, folderID)
	if err != nil {
		// A miss goes out as is; its message is the user-facing detail
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("get folder for auth: %w", err)
	}

	if folder.OwnerID != userID {
		return &domain.ForbiddenError{Message: fmt.Sprintf("access denied to folder %s", folderID)}
	}
	return nil
}

// CanAccessAsset checks if user owns the asset
func (a *OwnerBasedAuthorizer) CanAccessAsset(ctx context.Context, userID, assetID string) error {
	if userID == "" {
		return &domain.UnauthorizedError{Message: "missing caller identity"}
	}

	asset, err := a.assetRepo.GetByIDOnly(ctx, assetID)
	if err != nil {
		// A miss goes out as is; its message is the user-facing detail
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("get asset for auth: %w", err)
	}

	if asset.OwnerID != userID {
		return &domain.ForbiddenError{Message: fmt.Sprintf("access denied to asset %s", assetID)}
	}
	return nil
}

// ResolveScope returns nil for the root scope and the folder id otherwise
func (a *OwnerBasedAuthorizer) ResolveScope(ctx context.Context, userID string, folderID *string) (*string, error) {
	if userID == "" {
		return nil, &domain.UnauthorizedError{Message: "missing caller identity"}
	}
	if folderID == nil || *folderID == "" {
		return nil, nil
	}

	if _, err := a.folderRepo.GetByID(ctx, *folderID, userID); err != nil {
		return nil, err
	}
	return folderID, nil
}
