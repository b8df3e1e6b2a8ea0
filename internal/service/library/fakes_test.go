package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"medialib/internal/config"
	models "medialib/internal/domain/models/library"
	libraryRepo "medialib/internal/domain/repositories/library"
	librarySvc "medialib/internal/domain/services/library"
	"medialib/internal/media"
	"medialib/internal/repository/memory"
	authService "medialib/internal/service/auth"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func strPtr(s string) *string { return &s }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBlobStore keeps payloads in memory keyed by deletion handle
type fakeBlobStore struct {
	mu         sync.Mutex
	blobs      map[string][]byte
	seq        int
	failPut    func(data []byte) bool
	failDelete bool
	deletes    []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(ctx context.Context, data []byte, contentType string, category models.BlobCategory) (models.BlobRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failPut != nil && f.failPut(data) {
		return models.BlobRef{}, errors.New("blob store unavailable")
	}
	f.seq++
	handle := fmt.Sprintf("%s/blob-%d", category, f.seq)
	f.blobs[handle] = append([]byte(nil), data...)
	return models.BlobRef{URL: "https://blobs.test/" + handle, DeletionHandle: handle, Category: category}, nil
}

func (f *fakeBlobStore) Open(ctx context.Context, ref models.BlobRef) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.blobs[ref.DeletionHandle]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", ref.DeletionHandle)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, ref models.BlobRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletes = append(f.deletes, ref.DeletionHandle)
	if f.failDelete {
		return errors.New("delete failed")
	}
	delete(f.blobs, ref.DeletionHandle)
	return nil
}

func (f *fakeBlobStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blobs)
}

func (f *fakeBlobStore) deleteCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deletes)
}

// fakeResizer stores one small blob per requested size
type fakeResizer struct {
	blobs *fakeBlobStore
	err   error
	delay time.Duration
	omit  map[int]bool
	calls atomic.Int32
	sizes chan []int
	// release, when set, holds each call until it is closed or signalled
	release chan struct{}
}

func (f *fakeResizer) Resize(ctx context.Context, image []byte, fileName string, sizes []int) (map[int]models.BlobRef, error) {
	f.calls.Add(1)
	if f.sizes != nil {
		f.sizes <- sizes
	}
	if f.release != nil {
		<-f.release
	}
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	out := make(map[int]models.BlobRef, len(sizes))
	for _, size := range sizes {
		if f.omit[size] {
			continue
		}
		ref, err := f.blobs.Put(ctx, []byte(fmt.Sprintf("%s@%d", fileName, size)), "image/jpeg", models.CategoryImage)
		if err != nil {
			return nil, err
		}
		out[size] = ref
	}
	return out, nil
}

// hidingFolderRepo makes one folder id invisible to lookups
type hidingFolderRepo struct {
	libraryRepo.FolderRepository
	hidden string
}

func (r *hidingFolderRepo) GetByID(ctx context.Context, id, ownerID string) (*models.Folder, error) {
	if id == r.hidden {
		return r.FolderRepository.GetByID(ctx, "missing-"+id, ownerID)
	}
	return r.FolderRepository.GetByID(ctx, id, ownerID)
}

type testEnv struct {
	folderRepo  libraryRepo.FolderRepository
	assetRepo   libraryRepo.AssetRepository
	blobs       *fakeBlobStore
	resizer     *fakeResizer
	paths       librarySvc.PathResolver
	assets      librarySvc.AssetService
	folders     librarySvc.FolderService
	thumbnailer *Thumbnailer
	ingest      librarySvc.IngestService
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithMode(t, config.ThumbnailModeSync)
}

func newTestEnvWithMode(t *testing.T, mode string) *testEnv {
	t.Helper()

	logger := discardLogger()
	store := memory.NewStore()
	folderRepo := memory.NewFolderRepository(store)
	assetRepo := memory.NewAssetRepository(store)
	txManager := memory.NewTransactionManager(store)
	authorizer := authService.NewOwnerBasedAuthorizer(folderRepo, assetRepo)

	blobs := newFakeBlobStore()
	resizer := &fakeResizer{blobs: blobs}

	registry := mustRegistry(t)

	paths := NewPathResolver(folderRepo, logger)
	assets := NewAssetService(assetRepo, folderRepo, blobs, resizer, authorizer, 5*time.Second, logger)
	folders := NewFolderService(folderRepo, assetRepo, assets, paths, txManager, authorizer, logger)
	thumbnailer := NewThumbnailer(assets, resizer, ThumbnailerConfig{Mode: mode, Timeout: 5 * time.Second, Workers: 2}, logger)
	t.Cleanup(func() { _ = thumbnailer.Close() })
	ingest := NewIngestService(registry, blobs, assets, folderRepo, thumbnailer, nil, IngestLimits{MaxFileBytes: 1 << 20, MaxFiles: 5}, logger)

	return &testEnv{
		folderRepo:  folderRepo,
		assetRepo:   assetRepo,
		blobs:       blobs,
		resizer:     resizer,
		paths:       paths,
		assets:      assets,
		folders:     folders,
		thumbnailer: thumbnailer,
		ingest:      ingest,
	}
}

func mustRegistry(t *testing.T) *media.Registry {
	t.Helper()
	registry, err := media.NewRegistry()
	require.NoError(t, err)
	return registry
}

func (e *testEnv) mkdir(t *testing.T, owner, name string, parent *string) *models.Folder {
	t.Helper()
	f, err := e.folders.CreateFolder(context.Background(), &librarySvc.CreateFolderRequest{OwnerID: owner, Name: name, ParentID: parent})
	require.NoError(t, err)
	return f
}

// upload ingests a single file and returns its asset
func (e *testEnv) upload(t *testing.T, owner, fileName, contentType string, data []byte, folder *string) *models.Asset {
	t.Helper()
	res, err := e.ingest.Ingest(context.Background(), owner, []librarySvc.UploadedFile{
		{FileName: fileName, ContentType: contentType, Content: bytes.NewReader(data)},
	}, folder)
	require.NoError(t, err)
	require.Len(t, res.Assets, 1, "errors: %+v", res.Errors)
	return &res.Assets[0]
}
