// Package blobstore stores primary uploads and resized renditions.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	models "medialib/internal/domain/models/library"
)

// ErrForeignBlob marks a reference this store did not issue, such as a
// rendition hosted by a remote resize worker
var ErrForeignBlob = errors.New("blob is not held by this store")

// DiskStore keeps blobs under a root directory as <category>/<uuid><ext>.
// The key doubles as the deletion handle; the URL is baseURL + "/" + key.
type DiskStore struct {
	root    string
	baseURL string
	logger  *slog.Logger
}

// NewDiskStore creates the root directory if needed
func NewDiskStore(root, baseURL string, logger *slog.Logger) (*DiskStore, error) {
	if root == "" {
		return nil, errors.New("blob directory cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}

	logger.Info("disk blob store ready", "root", abs, "base_url", baseURL)

	return &DiskStore{
		root:    abs,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}, nil
}

// Root returns the directory blobs are written to
func (s *DiskStore) Root() string {
	return s.root
}

// Put writes data atomically and returns its reference
func (s *DiskStore) Put(ctx context.Context, data []byte, contentType string, category models.BlobCategory) (models.BlobRef, error) {
	if err := ctx.Err(); err != nil {
		return models.BlobRef{}, err
	}
	if !category.Valid() {
		return models.BlobRef{}, fmt.Errorf("unknown blob category %q", category)
	}

	key := path.Join(string(category), uuid.NewString()+extensionFor(contentType, data))
	dest := filepath.Join(s.root, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return models.BlobRef{}, fmt.Errorf("create category directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return models.BlobRef{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return models.BlobRef{}, fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return models.BlobRef{}, fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return models.BlobRef{}, fmt.Errorf("commit blob: %w", err)
	}

	s.logger.Debug("blob stored", "key", key, "bytes", len(data))

	return models.BlobRef{
		URL:            s.baseURL + "/" + key,
		DeletionHandle: key,
		Category:       category,
	}, nil
}

// Open reads a blob back by its deletion handle
func (s *DiskStore) Open(ctx context.Context, ref models.BlobRef) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.pathFor(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", ref.DeletionHandle, err)
	}
	return f, nil
}

// Delete removes a blob. Deleting a blob that is already gone succeeds;
// a reference issued elsewhere fails with ErrForeignBlob.
func (s *DiskStore) Delete(ctx context.Context, ref models.BlobRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.pathFor(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob %s: %w", ref.DeletionHandle, err)
	}
	s.logger.Debug("blob deleted", "key", ref.DeletionHandle)
	return nil
}

// pathFor maps a reference to a file inside root, refusing escapes and
// handles that do not have the <category>/<name> shape Put issues
func (s *DiskStore) pathFor(ref models.BlobRef) (string, error) {
	handle := ref.DeletionHandle
	if handle == "" {
		return "", errors.New("empty deletion handle")
	}
	clean := path.Clean("/" + handle)[1:]
	if clean == "" || clean != handle {
		return "", fmt.Errorf("invalid deletion handle %q", handle)
	}

	category, name, ok := strings.Cut(clean, "/")
	if !ok || strings.Contains(name, "/") || !models.BlobCategory(category).Valid() {
		return "", fmt.Errorf("%w: handle %q", ErrForeignBlob, handle)
	}
	if ref.URL != "" && !strings.HasSuffix(ref.URL, "/"+clean) {
		return "", fmt.Errorf("%w: url %q", ErrForeignBlob, ref.URL)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// extensionFor picks a file extension from the declared type, falling back
// to content sniffing
func extensionFor(contentType string, data []byte) string {
	if contentType != "" {
		base, _, _ := strings.Cut(contentType, ";")
		if m := mimetype.Lookup(strings.TrimSpace(strings.ToLower(base))); m != nil && m.Extension() != "" {
			return m.Extension()
		}
	}
	return mimetype.Detect(data).Extension()
}
