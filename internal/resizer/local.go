package resizer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"medialib/internal/domain"
	models "medialib/internal/domain/models/library"
	librarySvc "medialib/internal/domain/services/library"
)

const jpegQuality = 85

// Local resizes in process and writes renditions through the blob store.
// Each size is a square center crop encoded as JPEG.
type Local struct {
	blobs  librarySvc.BlobStore
	logger *slog.Logger
}

// NewLocal creates an in-process resizer
func NewLocal(blobs librarySvc.BlobStore, logger *slog.Logger) *Local {
	logger.Info("in-process resizer initialized")
	return &Local{blobs: blobs, logger: logger}
}

// Resize decodes the image once and stores one rendition per size. Blobs
// already written are removed when a later size fails.
func (l *Local) Resize(ctx context.Context, data []byte, fileName string, sizes []int) (map[int]models.BlobRef, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &domain.UnsupportedMediaError{Message: fmt.Sprintf("cannot decode image %q: %v", fileName, err)}
	}

	refs := make(map[int]models.BlobRef, len(sizes))
	for _, size := range sizes {
		if err := ctx.Err(); err != nil {
			l.discard(refs)
			return nil, &domain.UpstreamUnavailableError{Message: "resize canceled", Upstream: "resizer", Err: err}
		}

		ref, err := l.render(ctx, src, size)
		if err != nil {
			l.discard(refs)
			return nil, err
		}
		refs[size] = ref
	}

	l.logger.Debug("image resized", "file_name", fileName, "sizes", sizes)
	return refs, nil
}

func (l *Local) render(ctx context.Context, src image.Image, size int) (models.BlobRef, error) {
	dst := imaging.Fill(src, size, size, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return models.BlobRef{}, fmt.Errorf("encode %dpx rendition: %w", size, err)
	}

	ref, err := l.blobs.Put(ctx, buf.Bytes(), "image/jpeg", models.CategoryImage)
	if err != nil {
		return models.BlobRef{}, &domain.UpstreamUnavailableError{
			Message:  fmt.Sprintf("failed to store %dpx rendition", size),
			Upstream: "blobstore",
			Err:      err,
		}
	}
	return ref, nil
}

func (l *Local) discard(refs map[int]models.BlobRef) {
	for size, ref := range refs {
		if err := l.blobs.Delete(context.Background(), ref); err != nil {
			l.logger.Warn("failed to remove partial rendition", "target_size", size, "url", ref.URL, "error", err)
		}
	}
}
