package blobstore

import (
	"context"
	"io"
	"time"

	models "medialib/internal/domain/models/library"
	librarySvc "medialib/internal/domain/services/library"
	"medialib/internal/observability"
)

// Observed records latency, failures and written bytes of a BlobStore
type Observed struct {
	next     librarySvc.BlobStore
	observer observability.Observer
}

// WithObserver wraps next. A nil observer returns next unchanged.
func WithObserver(next librarySvc.BlobStore, observer observability.Observer) librarySvc.BlobStore {
	if observer == nil {
		return next
	}
	return &Observed{next: next, observer: observer}
}

func (o *Observed) Put(ctx context.Context, data []byte, contentType string, category models.BlobCategory) (models.BlobRef, error) {
	start := time.Now()
	ref, err := o.next.Put(ctx, data, contentType, category)
	o.observer.RecordBlob("put", string(category), time.Since(start), len(data), err)
	return ref, err
}

func (o *Observed) Open(ctx context.Context, ref models.BlobRef) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := o.next.Open(ctx, ref)
	o.observer.RecordBlob("open", string(ref.Category), time.Since(start), 0, err)
	return rc, err
}

func (o *Observed) Delete(ctx context.Context, ref models.BlobRef) error {
	start := time.Now()
	err := o.next.Delete(ctx, ref)
	o.observer.RecordBlob("delete", string(ref.Category), time.Since(start), 0, err)
	return err
}
