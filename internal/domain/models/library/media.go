package library

// MediaKind is the classification of an uploaded file
type MediaKind string

const (
	KindImage    MediaKind = "image"
	KindVideo    MediaKind = "video"
	KindAudio    MediaKind = "audio"
	KindPDF      MediaKind = "pdf"
	KindJSON     MediaKind = "json"
	KindDocument MediaKind = "office-document"
	KindArchive  MediaKind = "archive"
	KindText     MediaKind = "text"
	KindOther    MediaKind = "other"
)

// BlobCategory selects the blob store handling for a payload
type BlobCategory string

const (
	CategoryImage BlobCategory = "image" // image-like: images and PDFs
	CategoryVideo BlobCategory = "video" // video and audio
	CategoryRaw   BlobCategory = "raw"   // opaque binary
)

// Valid reports whether c is a known category
func (c BlobCategory) Valid() bool {
	switch c {
	case CategoryImage, CategoryVideo, CategoryRaw:
		return true
	}
	return false
}

// Classification is the outcome of classifying one upload
type Classification struct {
	Kind        MediaKind    `json:"kind"`
	Category    BlobCategory `json:"category"`
	ContentType string       `json:"content_type"` // Normalized MIME type
	Thumbnail   bool         `json:"thumbnail"`    // Whether auto thumbnails are attempted
}

// BlobRef points at a payload in the blob store
type BlobRef struct {
	URL            string       `json:"url"`
	DeletionHandle string       `json:"-"`
	Category       BlobCategory `json:"category"`
}
