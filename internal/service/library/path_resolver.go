package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"medialib/internal/config"
	"medialib/internal/domain"
	models "medialib/internal/domain/models/library"
	libraryRepo "medialib/internal/domain/repositories/library"
	librarySvc "medialib/internal/domain/services/library"
)

// pathResolver implements the PathResolver interface
type pathResolver struct {
	folderRepo libraryRepo.FolderRepository
	logger     *slog.Logger
}

// NewPathResolver creates a new path resolver
func NewPathResolver(folderRepo libraryRepo.FolderRepository, logger *slog.Logger) librarySvc.PathResolver {
	return &pathResolver{
		folderRepo: folderRepo,
		logger:     logger,
	}
}

// ResolvePath walks names from the root scope, one lookup per segment
func (r *pathResolver) ResolvePath(ctx context.Context, ownerID string, names []string) (*string, error) {
	if ownerID == "" {
		return nil, &domain.UnauthorizedError{Message: "missing caller identity"}
	}
	if len(names) > config.MaxPathDepth {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("path has %d segments, maximum is %d", len(names), config.MaxPathDepth)}
	}

	var current *string
	for i, name := range names {
		if name == "" {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("path segment %d is empty", i+1)}
		}

		folder, err := r.folderRepo.FindByName(ctx, ownerID, current, name)
		if err != nil {
			return nil, fmt.Errorf("resolve segment %q: %w", name, err)
		}
		if folder == nil {
			return nil, &domain.NotFoundError{
				Message: fmt.Sprintf("folder %q not found at path segment %d (/%s)", name, i+1, strings.Join(names[:i+1], "/")),
			}
		}

		id := folder.ID
		current = &id
	}

	return current, nil
}

// ComputePath returns the "/"-joined folder names from the root down to folderID
func (r *pathResolver) ComputePath(ctx context.Context, ownerID, folderID string) (string, error) {
	names, err := r.AncestorNames(ctx, ownerID, folderID)
	if err != nil {
		return "", err
	}
	return strings.Join(names, "/"), nil
}

// AncestorNames walks parent links upward with a visited set, so a cycle or
// a dangling parent fails with a CorruptionError instead of looping.
func (r *pathResolver) AncestorNames(ctx context.Context, ownerID, folderID string) ([]string, error) {
	if ownerID == "" {
		return nil, &domain.UnauthorizedError{Message: "missing caller identity"}
	}

	folder, err := r.folderRepo.GetByID(ctx, folderID, ownerID)
	if err != nil {
		return nil, err
	}

	names := []string{folder.Name}
	visited := map[string]bool{folder.ID: true}

	for folder.ParentID != nil {
		parentID := *folder.ParentID
		if visited[parentID] {
			return nil, r.corruption(folderID, fmt.Sprintf("folder %s has a cyclic ancestor chain", folderID))
		}
		if len(names) >= config.MaxPathDepth {
			return nil, r.corruption(folderID, fmt.Sprintf("folder %s is nested deeper than %d levels", folderID, config.MaxPathDepth))
		}
		visited[parentID] = true

		parent, err := r.folderRepo.GetByID(ctx, parentID, ownerID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, r.corruption(folderID, fmt.Sprintf("folder %s references missing parent %s", folderID, parentID))
			}
			return nil, fmt.Errorf("load ancestor %s: %w", parentID, err)
		}

		names = append(names, parent.Name)
		folder = parent
	}

	// Collected leaf to root
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names, nil
}

func (r *pathResolver) corruption(folderID, msg string) error {
	r.logger.Error("folder hierarchy corrupted",
		"severity", "high",
		"folder_id", folderID,
		"detail", msg,
	)
	return &domain.CorruptionError{Message: msg, ResourceID: folderID}
}

// buildPaths computes display paths for a flat folder list in one pass,
// memoizing each ancestor. Folders whose chain is broken or cyclic are
// reported in the second return value and left out of the map.
func buildPaths(folders []models.Folder) (map[string]string, []string) {
	byID := make(map[string]*models.Folder, len(folders))
	for i := range folders {
		byID[folders[i].ID] = &folders[i]
	}

	paths := make(map[string]string, len(folders))
	broken := map[string]bool{}

	for i := range folders {
		start := folders[i].ID
		if _, done := paths[start]; done || broken[start] {
			continue
		}

		// Walk up until a memoized ancestor or the root
		chain := []string{}
		onChain := map[string]bool{}
		prefix := ""
		ok := true
		for id := start; ; {
			if p, done := paths[id]; done {
				prefix = p
				break
			}
			f, found := byID[id]
			if !found || broken[id] || onChain[id] || len(chain) >= config.MaxPathDepth {
				ok = false
				break
			}
			chain = append(chain, id)
			onChain[id] = true
			if f.ParentID == nil {
				break
			}
			id = *f.ParentID
		}

		if !ok {
			for _, id := range chain {
				broken[id] = true
			}
			continue
		}

		// Unwind root-most first
		for k := len(chain) - 1; k >= 0; k-- {
			name := byID[chain[k]].Name
			if prefix == "" {
				prefix = name
			} else {
				prefix = prefix + "/" + name
			}
			paths[chain[k]] = prefix
		}
	}

	brokenIDs := make([]string, 0, len(broken))
	for id := range broken {
		brokenIDs = append(brokenIDs, id)
	}
	return paths, brokenIDs
}
