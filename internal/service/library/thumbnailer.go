package library

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"medialib/internal/config"
	models "medialib/internal/domain/models/library"
	librarySvc "medialib/internal/domain/services/library"
)

// Thumbnailer produces the automatic 256/512 variants of freshly uploaded
// images. Failures are logged and leave the thumbnails absent; they never
// fail the upload.
//
// In sync mode Process waits for the resize worker. In async mode Process
// queues the job for a bounded worker pool and returns the asset unchanged.
type Thumbnailer struct {
	assets  librarySvc.AssetService
	resizer librarySvc.ResizeWorker
	timeout time.Duration
	mode    string
	logger  *slog.Logger

	jobs    chan thumbnailJob
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

type thumbnailJob struct {
	asset models.Asset
	data  []byte
}

// ThumbnailerConfig configures a Thumbnailer
type ThumbnailerConfig struct {
	Mode      string        // config.ThumbnailModeSync or config.ThumbnailModeAsync
	Timeout   time.Duration // Per resize call
	Workers   int           // Async mode only
	QueueSize int           // Async mode only; defaults to 16 per worker
}

// NewThumbnailer creates a thumbnailer. In async mode the worker pool starts
// immediately; call Close to drain it.
func NewThumbnailer(
	assets librarySvc.AssetService,
	resizer librarySvc.ResizeWorker,
	cfg ThumbnailerConfig,
	logger *slog.Logger,
) *Thumbnailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultResizeTimeout
	}
	if cfg.Mode != config.ThumbnailModeAsync {
		cfg.Mode = config.ThumbnailModeSync
	}

	t := &Thumbnailer{
		assets:  assets,
		resizer: resizer,
		timeout: cfg.Timeout,
		mode:    cfg.Mode,
		logger:  logger,
	}

	if t.mode == config.ThumbnailModeAsync {
		if cfg.Workers <= 0 {
			cfg.Workers = 1
		}
		if cfg.QueueSize <= 0 {
			cfg.QueueSize = cfg.Workers * 16
		}
		t.jobs = make(chan thumbnailJob, cfg.QueueSize)
		for i := 0; i < cfg.Workers; i++ {
			t.wg.Add(1)
			go t.worker()
		}
		logger.Info("thumbnail worker pool started", "workers", cfg.Workers, "queue", cfg.QueueSize)
	}

	return t
}

// Process produces auto thumbnails for asset from its original bytes. It
// returns the asset as it should be reported to the caller and whether every
// automatic size is present.
func (t *Thumbnailer) Process(ctx context.Context, asset *models.Asset, data []byte) (*models.Asset, bool) {
	if t.mode == config.ThumbnailModeAsync {
		t.enqueue(asset, data)
		return asset, false
	}
	return t.generate(ctx, asset, data)
}

func (t *Thumbnailer) enqueue(asset *models.Asset, data []byte) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.stopped {
		t.logger.Warn("thumbnailer stopped, skipping thumbnails", "asset_id", asset.ID)
		return
	}

	select {
	case t.jobs <- thumbnailJob{asset: *asset, data: data}:
		t.logger.Debug("thumbnail job queued", "asset_id", asset.ID)
	default:
		t.logger.Warn("thumbnail queue full, skipping thumbnails", "asset_id", asset.ID)
	}
}

func (t *Thumbnailer) worker() {
	defer t.wg.Done()
	for job := range t.jobs {
		t.generate(context.Background(), &job.asset, job.data)
	}
}

func (t *Thumbnailer) generate(ctx context.Context, asset *models.Asset, data []byte) (*models.Asset, bool) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	thumbs, err := t.resizer.Resize(ctx, data, asset.FileName, models.AutoThumbnailSizes)
	if err != nil {
		t.logger.Warn("thumbnail generation failed, continuing without thumbnails",
			"asset_id", asset.ID,
			"file_name", asset.FileName,
			"error", err,
		)
		return asset, false
	}

	// Unrequested sizes are discarded by SetAutoThumbnails along with the rest
	wanted := 0
	for _, size := range models.AutoThumbnailSizes {
		if ref, ok := thumbs[size]; ok && ref.URL != "" {
			wanted++
		}
	}

	updated, err := t.assets.SetAutoThumbnails(ctx, asset.ID, thumbs)
	if err != nil {
		t.logger.Warn("failed to record thumbnails",
			"asset_id", asset.ID,
			"error", err,
		)
		return asset, false
	}
	if wanted == 0 {
		t.logger.Warn("resize worker returned no thumbnails", "asset_id", asset.ID)
		return updated, false
	}

	complete := wanted == len(models.AutoThumbnailSizes)
	t.logger.Debug("thumbnails recorded", "asset_id", asset.ID, "sizes", wanted, "complete", complete)
	return updated, complete
}

// Close stops accepting jobs and waits for queued ones to finish
func (t *Thumbnailer) Close() error {
	if t.jobs == nil {
		return nil
	}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	close(t.jobs)
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Info("thumbnail worker pool stopped")
	return nil
}
