// Package memory is an in-process metadata store used in dev mode and tests.
// It keeps folders and assets in flat id-indexed tables and enforces the same
// constraints as the Postgres schema: (owner, parent, name) uniqueness,
// (asset, size) uniqueness and parent/folder references.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	models "medialib/internal/domain/models/library"
)

// Store holds every table. Repositories created from the same Store share state.
type Store struct {
	mu       sync.RWMutex
	folders  map[string]models.Folder
	assets   map[string]models.Asset
	variants map[string]map[int]models.Variant // asset id -> size -> variant
	seq      map[string]uint64                 // insertion order, breaks created_at ties
	next     uint64

	txMu sync.Mutex
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		folders:  make(map[string]models.Folder),
		assets:   make(map[string]models.Asset),
		variants: make(map[string]map[int]models.Variant),
		seq:      make(map[string]uint64),
	}
}

func newID() string {
	return uuid.NewString()
}

// track records the insertion order of id. Caller holds mu.
func (s *Store) track(id string) {
	s.next++
	s.seq[id] = s.next
}

// newerFirst orders by created_at DESC, then insertion order DESC. Caller holds mu.
func (s *Store) newerFirst(aID string, aCreated time.Time, bID string, bCreated time.Time) bool {
	if !aCreated.Equal(bCreated) {
		return aCreated.After(bCreated)
	}
	return s.seq[aID] > s.seq[bID]
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// folderNameTaken returns the id of the folder holding name under parent, if any.
// Caller holds mu.
func (s *Store) folderNameTaken(ownerID string, parentID *string, name, exceptID string) string {
	for id, f := range s.folders {
		if id == exceptID {
			continue
		}
		if f.OwnerID == ownerID && f.Name == name && sameParent(f.ParentID, parentID) {
			return id
		}
	}
	return ""
}

// assetWithVariants copies a stored asset and attaches its variants. Caller holds mu.
func (s *Store) assetWithVariants(a models.Asset) models.Asset {
	a.FolderID = cloneString(a.FolderID)
	bySize := s.variants[a.ID]
	variants := make([]models.Variant, 0, len(bySize))
	for _, v := range bySize {
		variants = append(variants, v)
	}
	a.SetVariants(variants)
	return a
}
