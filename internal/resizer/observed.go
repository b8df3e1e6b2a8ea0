package resizer

import (
	"context"
	"time"

	models "medialib/internal/domain/models/library"
	librarySvc "medialib/internal/domain/services/library"
	"medialib/internal/observability"
)

// Observed records latency, failures and returned renditions of a ResizeWorker
type Observed struct {
	next     librarySvc.ResizeWorker
	source   string
	observer observability.Observer
}

// WithObserver wraps next, labelling its metrics with source ("remote" or
// "local"). A nil observer returns next unchanged.
func WithObserver(next librarySvc.ResizeWorker, source string, observer observability.Observer) librarySvc.ResizeWorker {
	if observer == nil {
		return next
	}
	return &Observed{next: next, source: source, observer: observer}
}

func (o *Observed) Resize(ctx context.Context, image []byte, fileName string, sizes []int) (map[int]models.BlobRef, error) {
	start := time.Now()
	refs, err := o.next.Resize(ctx, image, fileName, sizes)
	o.observer.RecordResize(o.source, len(refs), time.Since(start), err)
	return refs, err
}
