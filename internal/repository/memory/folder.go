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

// FolderRepository implements the FolderRepository interface over a Store
type FolderRepository struct {
	store *Store
}

// NewFolderRepository creates a folder repository backed by store
func NewFolderRepository(store *Store) libraryRepo.FolderRepository {
	return &FolderRepository{store: store}
}

// Create inserts a folder, assigning its id and timestamps
func (r *FolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	if folder.Name == "" {
		return &domain.ValidationError{Message: "folder name cannot be empty"}
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if folder.ParentID != nil {
		if _, ok := s.folders[*folder.ParentID]; !ok {
			return &domain.NotFoundError{Message: "parent folder not found"}
		}
	}
	if existing := s.folderNameTaken(folder.OwnerID, folder.ParentID, folder.Name, ""); existing != "" {
		return folderConflict(folder.Name, existing)
	}

	now := time.Now()
	folder.ID = newID()
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = now
	}
	if folder.UpdatedAt.IsZero() {
		folder.UpdatedAt = now
	}

	stored := *folder
	stored.ParentID = cloneString(folder.ParentID)
	stored.Path = ""
	s.folders[stored.ID] = stored
	s.track(stored.ID)

	return nil
}

// GetByID retrieves a folder owned by ownerID
func (r *FolderRepository) GetByID(ctx context.Context, id, ownerID string) (*models.Folder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	f, ok := r.store.folders[id]
	if !ok || f.OwnerID != ownerID {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("folder %s not found", id)}
	}
	return copyFolder(f), nil
}

// GetByIDOnly retrieves a folder regardless of owner
func (r *FolderRepository) GetByIDOnly(ctx context.Context, id string) (*models.Folder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	f, ok := r.store.folders[id]
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("folder %s not found", id)}
	}
	return copyFolder(f), nil
}

// FindByName finds a folder by name under a parent; returns nil, nil when absent
func (r *FolderRepository) FindByName(ctx context.Context, ownerID string, parentID *string, name string) (*models.Folder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id := r.store.folderNameTaken(ownerID, parentID, name, "")
	if id == "" {
		return nil, nil
	}
	return copyFolder(r.store.folders[id]), nil
}

// Update persists a rename or move
func (r *FolderRepository) Update(ctx context.Context, folder *models.Folder) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.folders[folder.ID]
	if !ok || current.OwnerID != folder.OwnerID {
		return &domain.NotFoundError{Message: fmt.Sprintf("folder %s not found", folder.ID)}
	}
	if folder.ParentID != nil {
		if _, ok := s.folders[*folder.ParentID]; !ok {
			return &domain.NotFoundError{Message: "parent folder not found"}
		}
	}
	if existing := s.folderNameTaken(folder.OwnerID, folder.ParentID, folder.Name, folder.ID); existing != "" {
		return folderConflict(folder.Name, existing)
	}

	current.Name = folder.Name
	current.ParentID = cloneString(folder.ParentID)
	current.UpdatedAt = folder.UpdatedAt
	s.folders[folder.ID] = current

	return nil
}

// Delete removes a single folder row. Like the Postgres foreign keys, it
// refuses while child folders or assets still reference the folder.
func (r *FolderRepository) Delete(ctx context.Context, id, ownerID string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.folders[id]
	if !ok || f.OwnerID != ownerID {
		return &domain.NotFoundError{Message: fmt.Sprintf("folder %s not found", id)}
	}

	for _, child := range s.folders {
		if child.ParentID != nil && *child.ParentID == id {
			return &domain.ConflictError{Message: "folder still has children", ResourceType: "folder", ResourceID: id}
		}
	}
	for _, a := range s.assets {
		if a.FolderID != nil && *a.FolderID == id {
			return &domain.ConflictError{Message: "folder still has children", ResourceType: "folder", ResourceID: id}
		}
	}

	delete(s.folders, id)
	delete(s.seq, id)
	return nil
}

// ListChildren lists immediate child folders ordered by name
func (r *FolderRepository) ListChildren(ctx context.Context, parentID *string, ownerID string) ([]models.Folder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	folders := []models.Folder{}
	for _, f := range r.store.folders {
		if f.OwnerID == ownerID && sameParent(f.ParentID, parentID) {
			folders = append(folders, *copyFolder(f))
		}
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })

	return folders, nil
}

// ListByOwner lists every folder of an owner, newest first
func (r *FolderRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Folder, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	folders := []models.Folder{}
	for _, f := range s.folders {
		if f.OwnerID == ownerID {
			folders = append(folders, *copyFolder(f))
		}
	}
	sort.Slice(folders, func(i, j int) bool {
		return s.newerFirst(folders[i].ID, folders[i].CreatedAt, folders[j].ID, folders[j].CreatedAt)
	})

	return folders, nil
}

func copyFolder(f models.Folder) *models.Folder {
	f.ParentID = cloneString(f.ParentID)
	return &f
}

func folderConflict(name, existingID string) *domain.ConflictError {
	return &domain.ConflictError{
		Message:      fmt.Sprintf("a folder named %q already exists in this location", name),
		ResourceType: "folder",
		ResourceID:   existingID,
	}
}
