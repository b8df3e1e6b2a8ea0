package library

import (
	"sort"
	"time"
)

// Sizes populated automatically at upload time for image assets
const (
	ThumbnailSmall = 256
	ThumbnailLarge = 512
)

// AutoThumbnailSizes lists the sizes requested from the resize worker at upload
var AutoThumbnailSizes = []int{ThumbnailSmall, ThumbnailLarge}

// VariantSource records which code path produced a variant
type VariantSource string

const (
	VariantSourceAuto   VariantSource = "auto"
	VariantSourceManual VariantSource = "manual"
)

// Variant is a resized rendition of an image asset.
// (AssetID, TargetSize) is unique.
type Variant struct {
	AssetID        string        `json:"asset_id" db:"asset_id"`
	TargetSize     int           `json:"target_size" db:"target_size"`
	URL            string        `json:"url" db:"url"`
	DeletionHandle string        `json:"-" db:"deletion_handle"`
	Source         VariantSource `json:"source" db:"source"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

type Asset struct {
	ID             string       `json:"id" db:"id"`
	OwnerID        string       `json:"owner_id" db:"owner_id"`
	FolderID       *string      `json:"folder_id" db:"folder_id"` // NULL = root (unfiled) scope
	URL            string       `json:"url" db:"url"`
	DeletionHandle string       `json:"-" db:"deletion_handle"`
	BlobCategory   BlobCategory `json:"blob_category" db:"blob_category"`
	ContentType    string       `json:"content_type" db:"content_type"`
	Kind           MediaKind    `json:"kind" db:"kind"`
	FileName       string       `json:"file_name" db:"file_name"`
	SizeBytes      int64        `json:"size_bytes" db:"size_bytes"`
	Variants       []Variant    `json:"variants"`
	Thumbnail256   *string      `json:"thumbnail_256"` // Derived from Variants
	Thumbnail512   *string      `json:"thumbnail_512"` // Derived from Variants
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// IsImage reports whether the asset can be resized
func (a *Asset) IsImage() bool {
	return a.Kind == KindImage
}

// Primary returns the blob reference of the uploaded original
func (a *Asset) Primary() BlobRef {
	return BlobRef{URL: a.URL, DeletionHandle: a.DeletionHandle, Category: a.BlobCategory}
}

// HasVariant reports whether a variant of the given size exists
func (a *Asset) HasVariant(size int) bool {
	return a.Variant(size) != nil
}

// Variant returns the variant of the given size, or nil
func (a *Asset) Variant(size int) *Variant {
	for i := range a.Variants {
		if a.Variants[i].TargetSize == size {
			return &a.Variants[i]
		}
	}
	return nil
}

// SetVariants replaces the variant list (ordered by size) and refreshes the
// thumbnail convenience fields.
func (a *Asset) SetVariants(variants []Variant) {
	sort.Slice(variants, func(i, j int) bool { return variants[i].TargetSize < variants[j].TargetSize })
	if variants == nil {
		variants = []Variant{}
	}
	a.Variants = variants
	a.Thumbnail256 = nil
	a.Thumbnail512 = nil
	if v := a.Variant(ThumbnailSmall); v != nil {
		url := v.URL
		a.Thumbnail256 = &url
	}
	if v := a.Variant(ThumbnailLarge); v != nil {
		url := v.URL
		a.Thumbnail512 = &url
	}
}
