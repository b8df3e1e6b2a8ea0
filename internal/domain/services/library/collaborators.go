package library

import (
	"context"
	"io"

	"medialib/internal/domain/models/library"
)

// BlobStore is the durable object storage capability
type BlobStore interface {
	// Put stores data and returns its retrieval URL and deletion handle
	Put(ctx context.Context, data []byte, contentType string, category library.BlobCategory) (library.BlobRef, error)

	// Open reads a stored payload back by deletion handle
	Open(ctx context.Context, ref library.BlobRef) (io.ReadCloser, error)

	// Delete removes a payload; callers treat failures as best effort
	Delete(ctx context.Context, ref library.BlobRef) error
}

// ResizeWorker converts an image into resized renditions.
// Implementations must be idempotent per input and may be unreachable.
type ResizeWorker interface {
	// Resize returns one blob per requested size
	Resize(ctx context.Context, image []byte, fileName string, sizes []int) (map[int]library.BlobRef, error)
}

// Classifier maps an upload to a media kind and blob category
type Classifier interface {
	Classify(contentType, fileName string, head []byte) library.Classification
}
