package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"medialib/internal/config"
	"medialib/internal/domain"
	models "medialib/internal/domain/models/library"
	"medialib/internal/domain/repositories"
	libraryRepo "medialib/internal/domain/repositories/library"
	"medialib/internal/domain/services"
	librarySvc "medialib/internal/domain/services/library"
)

var folderNamePattern = regexp.MustCompile(`^[^/]+$`)

type folderService struct {
	folderRepo   libraryRepo.FolderRepository
	assetRepo    libraryRepo.AssetRepository
	assetService librarySvc.AssetService // Asset deletion (blobs + row) is delegated
	pathResolver librarySvc.PathResolver
	txManager    repositories.TransactionManager
	authorizer   services.ResourceAuthorizer
	logger       *slog.Logger
}

// NewFolderService creates a new folder service
func NewFolderService(
	folderRepo libraryRepo.FolderRepository,
	assetRepo libraryRepo.AssetRepository,
	assetService librarySvc.AssetService,
	pathResolver librarySvc.PathResolver,
	txManager repositories.TransactionManager,
	authorizer services.ResourceAuthorizer,
	logger *slog.Logger,
) librarySvc.FolderService {
	return &folderService{
		folderRepo:   folderRepo,
		assetRepo:    assetRepo,
		assetService: assetService,
		pathResolver: pathResolver,
		txManager:    txManager,
		authorizer:   authorizer,
		logger:       logger,
	}
}

// CreateFolder creates a folder under an optional parent owned by the caller
func (s *folderService) CreateFolder(ctx context.Context, req *librarySvc.CreateFolderRequest) (*models.Folder, error) {
	if req.OwnerID == "" {
		return nil, &domain.UnauthorizedError{Message: "missing caller identity"}
	}

	// Normalize empty string to nil for root-level folders
	if req.ParentID != nil && *req.ParentID == "" {
		req.ParentID = nil
	}
	req.Name = strings.TrimSpace(req.Name)

	if err := s.validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	// Parent is a reference: a miss or someone else's folder reads as not found
	parentPath := ""
	if req.ParentID != nil {
		path, err := s.pathResolver.ComputePath(ctx, req.OwnerID, *req.ParentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, &domain.NotFoundError{Message: fmt.Sprintf("parent folder %s not found", *req.ParentID)}
			}
			return nil, err
		}
		if depth := strings.Count(path, "/") + 1; depth >= config.MaxPathDepth {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("folders cannot be nested deeper than %d levels", config.MaxPathDepth),
			}
		}
		parentPath = path
	}

	existing, err := s.folderRepo.FindByName(ctx, req.OwnerID, req.ParentID, req.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate names: %w", err)
	}
	if existing != nil {
		return nil, &domain.ConflictError{
			Message:      fmt.Sprintf("a folder named %q already exists in this location", req.Name),
			ResourceType: "folder",
			ResourceID:   existing.ID,
		}
	}

	now := time.Now()
	folder := &models.Folder{
		OwnerID:   req.OwnerID,
		ParentID:  req.ParentID,
		Name:      req.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The store's unique index closes the race with a concurrent create
	if err := s.folderRepo.Create(ctx, folder); err != nil {
		return nil, err
	}

	folder.Path = joinPath(parentPath, folder.Name)

	s.logger.Info("folder created",
		"id", folder.ID,
		"name", folder.Name,
		"owner_id", folder.OwnerID,
		"parent_id", folder.ParentID,
		"path", folder.Path,
	)

	return folder, nil
}

// ListFolders lists every folder of the caller, newest first, with display paths
func (s *folderService) ListFolders(ctx context.Context, ownerID string) ([]models.Folder, error) {
	if ownerID == "" {
		return nil, &domain.UnauthorizedError{Message: "missing caller identity"}
	}

	folders, err := s.folderRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	paths, broken := buildPaths(folders)
	for i := range folders {
		if p, ok := paths[folders[i].ID]; ok {
			folders[i].Path = p
		} else {
			folders[i].Path = folders[i].Name
		}
	}
	if len(broken) > 0 {
		s.logger.Error("folder hierarchy corrupted",
			"severity", "high",
			"owner_id", ownerID,
			"folder_ids", broken,
		)
	}

	return folders, nil
}

// GetFolder retrieves a folder with its computed path
func (s *folderService) GetFolder(ctx context.Context, ownerID, folderID string) (*models.Folder, error) {
	if err := s.authorizer.CanAccessFolder(ctx, ownerID, folderID); err != nil {
		return nil, err
	}

	folder, err := s.folderRepo.GetByIDOnly(ctx, folderID)
	if err != nil {
		return nil, err
	}

	path, err := s.pathResolver.ComputePath(ctx, ownerID, folder.ID)
	if err != nil {
		return nil, err
	}
	folder.Path = path

	return folder, nil
}

// UpdateFolder renames and/or moves a folder
func (s *folderService) UpdateFolder(ctx context.Context, ownerID, folderID string, req *librarySvc.UpdateFolderRequest) (*models.Folder, error) {
	if err := s.authorizer.CanAccessFolder(ctx, ownerID, folderID); err != nil {
		return nil, err
	}

	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if err := s.validateUpdateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var folder *models.Folder
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		folder, err = s.folderRepo.GetByIDOnly(ctx, folderID)
		if err != nil {
			return err
		}

		if req.Name != nil {
			folder.Name = *req.Name
		}

		// Tri-state: only move when parent_id was present in the request
		if req.ParentID.Present {
			if !req.ParentID.Cleared() && *req.ParentID.Value != "" {
				newParentID := *req.ParentID.Value
				if err := s.validateNoCircularReference(ctx, ownerID, folderID, newParentID); err != nil {
					return err
				}
				if err := s.validateMoveDepth(ctx, ownerID, folderID, newParentID); err != nil {
					return err
				}
				folder.ParentID = &newParentID
				s.logger.Debug("moving folder to new parent", "folder_id", folderID, "parent_id", newParentID)
			} else {
				folder.ParentID = nil
				s.logger.Debug("moving folder to root", "folder_id", folderID)
			}
		}

		existing, err := s.folderRepo.FindByName(ctx, ownerID, folder.ParentID, folder.Name)
		if err != nil {
			return fmt.Errorf("failed to check for duplicate names: %w", err)
		}
		if existing != nil && existing.ID != folder.ID {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("a folder named %q already exists in this location", folder.Name),
				ResourceType: "folder",
				ResourceID:   existing.ID,
			}
		}

		folder.UpdatedAt = time.Now()
		return s.folderRepo.Update(ctx, folder)
	})
	if err != nil {
		return nil, err
	}

	path, err := s.pathResolver.ComputePath(ctx, ownerID, folder.ID)
	if err != nil {
		return nil, err
	}
	folder.Path = path

	s.logger.Info("folder updated",
		"id", folder.ID,
		"name", folder.Name,
		"parent_id", folder.ParentID,
		"path", folder.Path,
	)

	return folder, nil
}

// validateNoCircularReference rejects moving folderID under itself or one of
// its descendants by walking the new parent's ancestor chain.
func (s *folderService) validateNoCircularReference(ctx context.Context, ownerID, folderID, newParentID string) error {
	if newParentID == folderID {
		return &domain.ValidationError{Message: "cannot move a folder into itself"}
	}

	parent, err := s.folderRepo.GetByID(ctx, newParentID, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.NotFoundError{Message: fmt.Sprintf("parent folder %s not found", newParentID)}
		}
		return err
	}

	visited := map[string]bool{parent.ID: true}
	for current := parent; current.ParentID != nil; {
		ancestorID := *current.ParentID
		if ancestorID == folderID {
			return &domain.ValidationError{Message: "cannot move a folder into one of its descendants"}
		}
		if visited[ancestorID] {
			return &domain.CorruptionError{
				Message:    fmt.Sprintf("folder %s has a cyclic ancestor chain", newParentID),
				ResourceID: newParentID,
			}
		}
		visited[ancestorID] = true

		current, err = s.folderRepo.GetByID(ctx, ancestorID, ownerID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return &domain.CorruptionError{
					Message:    fmt.Sprintf("folder %s references missing parent %s", newParentID, ancestorID),
					ResourceID: newParentID,
				}
			}
			return err
		}
	}

	return nil
}

// validateMoveDepth rejects a move that would push the deepest folder of
// the moved subtree past MaxPathDepth
func (s *folderService) validateMoveDepth(ctx context.Context, ownerID, folderID, newParentID string) error {
	ancestors, err := s.pathResolver.AncestorNames(ctx, ownerID, newParentID)
	if err != nil {
		return err
	}
	height, err := s.subtreeHeight(ctx, ownerID, folderID)
	if err != nil {
		return err
	}

	if len(ancestors)+height > config.MaxPathDepth {
		return &domain.ValidationError{
			Message: fmt.Sprintf("move would nest folders %d levels deep, maximum is %d", len(ancestors)+height, config.MaxPathDepth),
		}
	}
	return nil
}

// subtreeHeight counts the levels of rootID's subtree, rootID included
func (s *folderService) subtreeHeight(ctx context.Context, ownerID, rootID string) (int, error) {
	level := []string{rootID}
	visited := map[string]bool{rootID: true}
	height := 0

	for len(level) > 0 {
		height++
		if height > config.MaxPathDepth {
			// Deeper than any valid tree; the caller rejects it anyway
			return height, nil
		}

		var next []string
		for _, id := range level {
			children, err := s.folderRepo.ListChildren(ctx, &id, ownerID)
			if err != nil {
				return 0, fmt.Errorf("failed to list child folders: %w", err)
			}
			for _, child := range children {
				if !visited[child.ID] {
					visited[child.ID] = true
					next = append(next, child.ID)
				}
			}
		}
		level = next
	}
	return height, nil
}

// DeleteFolder deletes a folder, every descendant folder and every asset in
// them. Assets go first (through the asset service, so their blobs are
// cleaned up), then folders bottom-up.
func (s *folderService) DeleteFolder(ctx context.Context, ownerID, folderID string) error {
	if err := s.authorizer.CanAccessFolder(ctx, ownerID, folderID); err != nil {
		return err
	}

	folder, err := s.folderRepo.GetByIDOnly(ctx, folderID)
	if err != nil {
		return err
	}

	order, err := s.collectSubtree(ctx, ownerID, folderID)
	if err != nil {
		return err
	}

	// Assets go outside the transaction: their blob deletes must not run in it
	deletedAssets := 0
	for _, id := range order {
		assets, err := s.assetRepo.ListByFolder(ctx, &id, ownerID)
		if err != nil {
			return fmt.Errorf("failed to list assets of folder %s: %w", id, err)
		}
		for _, asset := range assets {
			if err := s.assetService.DeleteAsset(ctx, ownerID, asset.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("failed to delete asset %q: %w", asset.FileName, err)
			}
			deletedAssets++
		}
	}

	err = s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		for _, id := range order {
			if err := s.folderRepo.Delete(ctx, id, ownerID); err != nil {
				return fmt.Errorf("failed to delete folder %s: %w", id, err)
			}
			s.logger.Debug("deleted folder", "id", id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("folder deleted",
		"id", folderID,
		"name", folder.Name,
		"owner_id", ownerID,
		"folders", len(order),
		"assets", deletedAssets,
	)

	return nil
}

// collectSubtree returns rootID and all its descendants in post-order
// (children before parents) using an explicit stack.
func (s *folderService) collectSubtree(ctx context.Context, ownerID, rootID string) ([]string, error) {
	preorder := []string{}
	visited := map[string]bool{}
	stack := []string{rootID}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		preorder = append(preorder, id)

		children, err := s.folderRepo.ListChildren(ctx, &id, ownerID)
		if err != nil {
			return nil, fmt.Errorf("failed to list child folders: %w", err)
		}
		for _, child := range children {
			stack = append(stack, child.ID)
		}
	}

	// Reversed pre-order puts every child before its parent
	for i, j := 0, len(preorder)-1; i < j; i, j = i+1, j-1 {
		preorder[i], preorder[j] = preorder[j], preorder[i]
	}
	return preorder, nil
}

// ListContents lists the child folders and assets of one scope (nil = root)
func (s *folderService) ListContents(ctx context.Context, ownerID string, folderID *string) (*librarySvc.FolderContents, error) {
	if ownerID == "" {
		return nil, &domain.UnauthorizedError{Message: "missing caller identity"}
	}
	if folderID != nil && *folderID == "" {
		folderID = nil
	}

	var folder *models.Folder
	basePath := ""
	if folderID != nil {
		var err error
		folder, err = s.GetFolder(ctx, ownerID, *folderID)
		if err != nil {
			return nil, err
		}
		basePath = folder.Path
	}

	children, err := s.folderRepo.ListChildren(ctx, folderID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list child folders: %w", err)
	}
	for i := range children {
		children[i].Path = joinPath(basePath, children[i].Name)
	}

	assets, err := s.assetRepo.ListByFolder(ctx, folderID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	return &librarySvc.FolderContents{
		Folder:  folder,
		Folders: children,
		Assets:  assets,
	}, nil
}

// validateCreateRequest validates a folder creation request
func (s *folderService) validateCreateRequest(req *librarySvc.CreateFolderRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name,
			validation.Required,
			validation.RuneLength(1, config.MaxFolderNameLength),
			validation.Match(folderNamePattern).Error("folder name cannot contain slashes"),
		),
	)
}

// validateUpdateRequest validates a folder update request
func (s *folderService) validateUpdateRequest(req *librarySvc.UpdateFolderRequest) error {
	// At least one field must be provided
	if req.Name == nil && !req.ParentID.Present {
		return fmt.Errorf("at least one field must be provided")
	}

	if req.Name == nil {
		return nil
	}

	return validation.ValidateStruct(req,
		validation.Field(&req.Name,
			validation.Required,
			validation.RuneLength(1, config.MaxFolderNameLength),
			validation.Match(folderNamePattern).Error("folder name cannot contain slashes"),
		),
	)
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
