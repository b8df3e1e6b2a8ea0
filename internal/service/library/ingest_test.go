package library

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medialib/internal/config"
	"medialib/internal/domain"
	models "medialib/internal/domain/models/library"
	librarySvc "medialib/internal/domain/services/library"
)

func file(name, contentType string, data []byte) librarySvc.UploadedFile {
	return librarySvc.UploadedFile{FileName: name, ContentType: contentType, Content: bytes.NewReader(data)}
}

func TestIngest_PartialFailureContinues(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.blobs.failPut = func(data []byte) bool { return string(data) == "second" }

	res, err := env.ingest.Ingest(ctx, "alice", []librarySvc.UploadedFile{
		file("one.txt", "text/plain", []byte("first")),
		file("two.txt", "text/plain", []byte("second")),
		file("three.txt", "text/plain", []byte("third")),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Summary.TotalFiles)
	assert.Equal(t, 2, res.Summary.Succeeded)
	assert.Equal(t, 1, res.Summary.Failed)
	assert.False(t, res.AllFailed())

	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, "two.txt", res.Errors[0].File)
	assert.Equal(t, StageUpload, res.Errors[0].Stage)

	require.Len(t, res.Assets, 2)
	assert.Equal(t, "one.txt", res.Assets[0].FileName)
	assert.Equal(t, "three.txt", res.Assets[1].FileName)

	listed, err := env.assets.ListAssets(ctx, "alice", nil)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestIngest_ImageIntoNestedFolder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	photos := env.mkdir(t, "alice", "Photos", nil)
	year := env.mkdir(t, "alice", "2024", &photos.ID)

	id, err := env.paths.ResolvePath(ctx, "alice", []string{"Photos", "2024"})
	require.NoError(t, err)
	require.Equal(t, year.ID, *id)

	res, err := env.ingest.Ingest(ctx, "alice", []librarySvc.UploadedFile{
		file("beach.png", "image/png", pngHeader),
	}, id)
	require.NoError(t, err)
	require.Len(t, res.Assets, 1)

	asset := res.Assets[0]
	assert.Equal(t, year.ID, *asset.FolderID)
	assert.Equal(t, models.KindImage, asset.Kind)
	assert.Equal(t, models.CategoryImage, asset.BlobCategory)
	require.NotNil(t, asset.Thumbnail256)
	require.NotNil(t, asset.Thumbnail512)
	assert.Equal(t, 1, res.Summary.Thumbnailed)
	for _, v := range asset.Variants {
		assert.Equal(t, models.VariantSourceAuto, v.Source)
	}
}

func TestIngest_ResizerDownStillSucceeds(t *testing.T) {
	env := newTestEnv(t)
	env.resizer.err = errors.New("resize worker unreachable")

	res, err := env.ingest.Ingest(context.Background(), "alice", []librarySvc.UploadedFile{
		file("cat.png", "image/png", pngHeader),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Summary.Succeeded)
	assert.Equal(t, 0, res.Summary.Thumbnailed)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Assets, 1)
	assert.Nil(t, res.Assets[0].Thumbnail256)
	assert.Nil(t, res.Assets[0].Thumbnail512)
	assert.Empty(t, res.Assets[0].Variants)
}

func TestIngest_PartialThumbnails(t *testing.T) {
	env := newTestEnv(t)
	env.resizer.omit = map[int]bool{models.ThumbnailLarge: true}

	res, err := env.ingest.Ingest(context.Background(), "alice", []librarySvc.UploadedFile{
		file("cat.png", "image/png", pngHeader),
	}, nil)
	require.NoError(t, err)
	require.Len(t, res.Assets, 1)

	assert.NotNil(t, res.Assets[0].Thumbnail256)
	assert.Nil(t, res.Assets[0].Thumbnail512)
	assert.Equal(t, 0, res.Summary.Thumbnailed)
}

func TestIngest_NonImageSkipsResizer(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.ingest.Ingest(context.Background(), "alice", []librarySvc.UploadedFile{
		file("report.pdf", "application/pdf", []byte("%PDF-1.4\n%âãÏÓ\n")),
		file("notes.txt", "text/plain", []byte("plain words")),
	}, nil)
	require.NoError(t, err)
	require.Len(t, res.Assets, 2)

	assert.Equal(t, int32(0), env.resizer.calls.Load())
	for _, a := range res.Assets {
		assert.NotEqual(t, models.KindImage, a.Kind)
		assert.Nil(t, a.Thumbnail256)
	}
}

func TestIngest_UnrecognizedContentIsStoredAsOther(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.ingest.Ingest(context.Background(), "alice", []librarySvc.UploadedFile{
		file("payload.xyz", "application/x-made-up", []byte{0x00, 0x01, 0x02, 0x03}),
	}, nil)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Assets, 1)

	assert.Equal(t, models.KindOther, res.Assets[0].Kind)
	assert.Equal(t, models.CategoryRaw, res.Assets[0].BlobCategory)
	assert.Equal(t, int32(0), env.resizer.calls.Load())
}

func TestIngest_FileFailures(t *testing.T) {
	env := newTestEnv(t)
	big := bytes.Repeat([]byte("x"), (1<<20)+1)

	res, err := env.ingest.Ingest(context.Background(), "alice", []librarySvc.UploadedFile{
		file("empty.txt", "text/plain", nil),
		file("big.txt", "text/plain", big),
		file("  ", "text/plain", []byte("nameless")),
		file(strings.Repeat("n", config.MaxFileNameLength+1), "text/plain", []byte("long")),
	}, nil)
	require.NoError(t, err)

	assert.True(t, res.AllFailed())
	require.Len(t, res.Errors, 4)
	for i, e := range res.Errors {
		assert.Equal(t, i, e.Index)
		assert.Equal(t, StageRead, e.Stage)
	}
	assert.Contains(t, res.Errors[0].Error, "empty")
	assert.Contains(t, res.Errors[1].Error, "limit")
	assert.Equal(t, 0, env.blobs.count())
}

func TestIngest_MetadataFailureRemovesBlob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	photos := env.mkdir(t, "alice", "Photos", nil)
	// The folder disappears between the batch check and the metadata write
	hidden := &hidingFolderRepo{FolderRepository: env.folderRepo, hidden: photos.ID}
	assets := NewAssetService(env.assetRepo, hidden, env.blobs, env.resizer, nil, 0, discardLogger())
	ingest := NewIngestService(mustRegistry(t), env.blobs, assets, env.folderRepo, nil, nil, IngestLimits{}, discardLogger())

	res, err := ingest.Ingest(ctx, "alice", []librarySvc.UploadedFile{
		file("a.txt", "text/plain", []byte("a")),
	}, &photos.ID)
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, StageMetadata, res.Errors[0].Stage)
	assert.Equal(t, 0, env.blobs.count())
	assert.Equal(t, 1, env.blobs.deleteCalls())
}

func TestIngest_BatchValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bobs := env.mkdir(t, "bob", "Private", nil)

	one := func() []librarySvc.UploadedFile {
		return []librarySvc.UploadedFile{file("a.txt", "text/plain", []byte("a"))}
	}
	tooMany := make([]librarySvc.UploadedFile, 6)
	for i := range tooMany {
		tooMany[i] = file("a.txt", "text/plain", []byte("a"))
	}

	tests := []struct {
		name    string
		owner   string
		files   []librarySvc.UploadedFile
		folder  *string
		wantErr error
	}{
		{"missing owner", "", one(), nil, domain.ErrUnauthorized},
		{"no files", "alice", nil, nil, domain.ErrValidation},
		{"too many files", "alice", tooMany, nil, domain.ErrValidation},
		{"unknown folder", "alice", one(), strPtr("missing"), domain.ErrNotFound},
		{"foreign folder", "alice", one(), &bobs.ID, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.ingest.Ingest(ctx, tt.owner, tt.files, tt.folder)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
	assert.Equal(t, 0, env.blobs.count())
}

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"photo.png":             "photo.png",
		"  photo.png  ":         "photo.png",
		"../../etc/passwd":      "passwd",
		`C:\Users\me\photo.jpg`: "photo.jpg",
		"dir/":                  "dir",
		"":                      "",
		"/":                     "",
		".":                     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFileName(in), "input %q", in)
	}
}
