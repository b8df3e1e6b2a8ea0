package library

import (
	"time"
)

type Folder struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	ParentID  *string   `json:"parent_id" db:"parent_id"` // NULL = root level
	Name      string    `json:"name" db:"name"`
	Path      string    `json:"path,omitempty"` // Computed display path, not stored in DB
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsRoot reports whether the folder sits directly in the owner's root scope
func (f *Folder) IsRoot() bool {
	return f.ParentID == nil
}
