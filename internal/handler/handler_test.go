package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medialib/internal/blobstore"
	"medialib/internal/config"
	"medialib/internal/httputil"
	"medialib/internal/media"
	"medialib/internal/repository/memory"
	"medialib/internal/resizer"
	authService "medialib/internal/service/auth"
	libraryService "medialib/internal/service/library"
)

const testUserHeader = "X-Test-User"

type testServer struct {
	t       *testing.T
	handler http.Handler
}

type serverOptions struct {
	maxFileBytes int64
	db           Pinger
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer wires the real services over the memory store, a disk blob
// store in a temp dir and the in-process resizer
func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	logger := discardLogger()
	if opts.maxFileBytes == 0 {
		opts.maxFileBytes = config.MaxUploadFileBytes
	}

	dir := t.TempDir()
	blobs, err := blobstore.NewDiskStore(dir, "http://blobs.test/blobs", logger)
	require.NoError(t, err)
	resize := resizer.NewLocal(blobs, logger)

	registry, err := media.NewRegistry()
	require.NoError(t, err)

	store := memory.NewStore()
	folderRepo := memory.NewFolderRepository(store)
	assetRepo := memory.NewAssetRepository(store)
	txManager := memory.NewTransactionManager(store)
	authorizer := authService.NewOwnerBasedAuthorizer(folderRepo, assetRepo)

	pathResolver := libraryService.NewPathResolver(folderRepo, logger)
	assetService := libraryService.NewAssetService(assetRepo, folderRepo, blobs, resize, authorizer, 10*time.Second, logger)
	folderService := libraryService.NewFolderService(folderRepo, assetRepo, assetService, pathResolver, txManager, authorizer, logger)
	thumbnailer := libraryService.NewThumbnailer(assetService, resize, libraryService.ThumbnailerConfig{
		Mode:    config.ThumbnailModeSync,
		Timeout: 10 * time.Second,
	}, logger)
	t.Cleanup(func() { _ = thumbnailer.Close() })
	ingestService := libraryService.NewIngestService(registry, blobs, assetService, folderRepo, thumbnailer, nil,
		libraryService.IngestLimits{MaxFileBytes: opts.maxFileBytes, MaxFiles: 3}, logger)

	mux := http.NewServeMux()
	RegisterRoutes(mux, Handlers{
		Folders: NewFolderHandler(folderService, pathResolver, logger),
		Assets:  NewAssetHandler(assetService, logger),
		Uploads: NewUploadHandler(ingestService, opts.maxFileBytes, 3, logger),
		Health:  NewHealthHandler(opts.db, logger),
		Blobs:   BlobFileServer("/blobs/", dir),
	})

	// Stands in for the auth middleware
	withUser := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := r.Header.Get(testUserHeader); user != "" {
			r = httputil.WithUserID(r, user)
		}
		mux.ServeHTTP(w, r)
	})

	return &testServer{t: t, handler: withUser}
}

func (s *testServer) do(method, path, user string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	s.t.Helper()
	r := httptest.NewRequest(method, path, body)
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	if user != "" {
		r.Header.Set(testUserHeader, user)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

func (s *testServer) json(method, path, user, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	return s.do(method, path, user, reader, "application/json")
}

type upload struct {
	field       string
	name        string
	contentType string
	data        []byte
}

func (s *testServer) upload(path, user string, files []upload, fields map[string]string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(s.t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		if f.contentType != "" {
			h.Set("Content-Type", f.contentType)
		}
		part, err := mw.CreatePart(h)
		require.NoError(s.t, err)
		_, err = part.Write(f.data)
		require.NoError(s.t, err)
	}
	require.NoError(s.t, mw.Close())
	return s.do(http.MethodPost, path, user, &buf, mw.FormDataContentType())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func pngImage(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeConfig(b []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	return cfg, err
}

type folderJSON struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parent_id"`
	Name     string  `json:"name"`
	Path     string  `json:"path"`
}

type variantJSON struct {
	TargetSize int    `json:"target_size"`
	URL        string `json:"url"`
	Source     string `json:"source"`
}

type assetJSON struct {
	ID           string        `json:"id"`
	FolderID     *string       `json:"folder_id"`
	URL          string        `json:"url"`
	Kind         string        `json:"kind"`
	FileName     string        `json:"file_name"`
	Variants     []variantJSON `json:"variants"`
	Thumbnail256 *string       `json:"thumbnail_256"`
	Thumbnail512 *string       `json:"thumbnail_512"`
}

type problemJSON struct {
	Status       int    `json:"status"`
	Detail       string `json:"detail"`
	ResourceID   string `json:"resource_id"`
	ResourceType string `json:"resource_type"`
	Stage        string `json:"stage"`
}

func TestFolderEndpoints(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	w := srv.json(http.MethodPost, "/api/folders", "alice", `{"name":"Photos"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	photos := decode[folderJSON](t, w)
	assert.Nil(t, photos.ParentID)

	t.Run("duplicate name returns the existing folder", func(t *testing.T) {
		w := srv.json(http.MethodPost, "/api/folders", "alice", `{"name":"Photos"}`)
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, photos.ID, decode[folderJSON](t, w).ID)
	})

	w = srv.json(http.MethodPost, "/api/folders", "alice", `{"name":"2024","parent_id":"`+photos.ID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	year := decode[folderJSON](t, w)

	t.Run("get includes the computed path", func(t *testing.T) {
		w := srv.json(http.MethodGet, "/api/folders/"+year.ID, "alice", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Photos/2024", decode[folderJSON](t, w).Path)
	})

	t.Run("path endpoint", func(t *testing.T) {
		w := srv.json(http.MethodGet, "/api/folders/"+year.ID+"/path", "alice", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Photos/2024", decode[map[string]string](t, w)["path"])
	})

	t.Run("resolve walks names from the root", func(t *testing.T) {
		w := srv.json(http.MethodPost, "/api/folders/resolve", "alice", `{"path":["Photos","2024"]}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[struct {
			FolderID *string `json:"folder_id"`
			FullPath string  `json:"full_path"`
		}](t, w)
		require.NotNil(t, resp.FolderID)
		assert.Equal(t, year.ID, *resp.FolderID)
		assert.Equal(t, "Photos/2024", resp.FullPath)

		w = srv.json(http.MethodPost, "/api/folders/resolve", "alice", `{"path":[]}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"folder_id":null`)

		w = srv.json(http.MethodPost, "/api/folders/resolve", "alice", `{"path":["Photos","2025"]}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("root contents", func(t *testing.T) {
		w := srv.json(http.MethodGet, "/api/folders/root/contents", "alice", "")
		require.Equal(t, http.StatusOK, w.Code)
		contents := decode[struct {
			Folders []folderJSON `json:"folders"`
		}](t, w)
		require.Len(t, contents.Folders, 1)
		assert.Equal(t, photos.ID, contents.Folders[0].ID)
	})

	t.Run("list is newest first", func(t *testing.T) {
		w := srv.json(http.MethodGet, "/api/folders", "alice", "")
		require.Equal(t, http.StatusOK, w.Code)
		folders := decode[[]folderJSON](t, w)
		require.Len(t, folders, 2)
		assert.Equal(t, year.ID, folders[0].ID)
		assert.Empty(t, decode[[]folderJSON](t, srv.json(http.MethodGet, "/api/folders", "bob", "")))
	})

	t.Run("another owner is forbidden", func(t *testing.T) {
		w := srv.json(http.MethodGet, "/api/folders/"+photos.ID, "bob", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	})

	t.Run("bad bodies", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, srv.json(http.MethodPost, "/api/folders", "alice", `{"name":`).Code)
		assert.Equal(t, http.StatusBadRequest, srv.json(http.MethodPost, "/api/folders", "alice", "").Code)
		assert.Equal(t, http.StatusBadRequest, srv.json(http.MethodPost, "/api/folders", "alice", `{"name":"a/b"}`).Code)
	})

	t.Run("moving under a descendant is rejected", func(t *testing.T) {
		w := srv.json(http.MethodPatch, "/api/folders/"+photos.ID, "alice", `{"parent_id":"`+year.ID+`"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rename", func(t *testing.T) {
		w := srv.json(http.MethodPatch, "/api/folders/"+year.ID, "alice", `{"name":"2023"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "2023", decode[folderJSON](t, w).Name)
	})

	t.Run("delete cascades", func(t *testing.T) {
		w := srv.json(http.MethodDelete, "/api/folders/"+photos.ID, "alice", "")
		require.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, http.StatusNotFound, srv.json(http.MethodGet, "/api/folders/"+year.ID, "alice", "").Code)
	})
}

func TestAssetEndpoints(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	folder := decode[folderJSON](t, srv.json(http.MethodPost, "/api/folders", "alice", `{"name":"Photos"}`))

	w := srv.upload("/api/assets/upload", "alice", []upload{
		{field: "file", name: "beach.png", contentType: "image/png", data: pngImage(t, 600, 400)},
	}, map[string]string{"folder_id": folder.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	asset := decode[assetJSON](t, w)
	assert.Equal(t, "image", asset.Kind)
	require.NotNil(t, asset.FolderID)
	assert.Equal(t, folder.ID, *asset.FolderID)
	require.NotNil(t, asset.Thumbnail256)
	require.NotNil(t, asset.Thumbnail512)
	require.Len(t, asset.Variants, 2)

	t.Run("list is scoped to one folder", func(t *testing.T) {
		w := srv.json(http.MethodGet, "/api/assets?folder_id="+folder.ID, "alice", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]assetJSON](t, w), 1)

		for _, scope := range []string{"", "?folder_id=null", "?folder_id=root"} {
			w := srv.json(http.MethodGet, "/api/assets"+scope, "alice", "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, decode[[]assetJSON](t, w), scope)
		}

		w = srv.json(http.MethodGet, "/api/assets?folder_id="+folder.ID, "bob", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("stored blob is served", func(t *testing.T) {
		u, err := url.Parse(*asset.Thumbnail256)
		require.NoError(t, err)
		w := srv.do(http.MethodGet, u.Path, "", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		cfg, err := decodeConfig(w.Body.Bytes())
		require.NoError(t, err)
		assert.Equal(t, 256, cfg.Width)
		assert.Equal(t, 256, cfg.Height)

		assert.Equal(t, http.StatusNotFound, srv.do(http.MethodGet, "/blobs/image/", "", nil, "").Code)
	})

	t.Run("manual resize", func(t *testing.T) {
		w := srv.json(http.MethodPost, "/api/assets/"+asset.ID+"/resize", "alice", `{"target_size":128}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resized := decode[assetJSON](t, w)
		require.Len(t, resized.Variants, 3)
		assert.Equal(t, 128, resized.Variants[0].TargetSize)
		assert.Equal(t, "manual", resized.Variants[0].Source)
	})

	t.Run("resize errors", func(t *testing.T) {
		w := srv.json(http.MethodPost, "/api/assets/"+asset.ID+"/resize", "alice", `{"target_size":256}`)
		require.Equal(t, http.StatusConflict, w.Code)
		p := decode[problemJSON](t, w)
		assert.Equal(t, asset.ID+"/256", p.ResourceID)
		assert.Equal(t, "variant", p.ResourceType)

		assert.Equal(t, http.StatusBadRequest,
			srv.json(http.MethodPost, "/api/assets/"+asset.ID+"/resize", "alice", `{"target_size":8}`).Code)
		assert.Equal(t, http.StatusBadRequest,
			srv.json(http.MethodPost, "/api/assets/"+asset.ID+"/resize", "alice", `{}`).Code)
		assert.Equal(t, http.StatusForbidden,
			srv.json(http.MethodPost, "/api/assets/"+asset.ID+"/resize", "bob", `{"target_size":64}`).Code)
	})

	t.Run("non-image resize is unsupported", func(t *testing.T) {
		w := srv.upload("/api/assets/upload", "alice", []upload{
			{field: "file", name: "notes.txt", contentType: "text/plain", data: []byte("hello")},
		}, nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		notes := decode[assetJSON](t, w)
		assert.Nil(t, notes.FolderID)
		assert.Empty(t, notes.Variants)

		w = srv.json(http.MethodPost, "/api/assets/"+notes.ID+"/resize", "alice", `{"target_size":128}`)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("get and delete", func(t *testing.T) {
		require.Equal(t, http.StatusOK, srv.json(http.MethodGet, "/api/assets/"+asset.ID, "alice", "").Code)
		assert.Equal(t, http.StatusForbidden, srv.json(http.MethodDelete, "/api/assets/"+asset.ID, "bob", "").Code)
		require.Equal(t, http.StatusNoContent, srv.json(http.MethodDelete, "/api/assets/"+asset.ID, "alice", "").Code)
		assert.Equal(t, http.StatusNotFound, srv.json(http.MethodGet, "/api/assets/"+asset.ID, "alice", "").Code)

		u, err := url.Parse(asset.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, srv.do(http.MethodGet, u.Path, "", nil, "").Code)
	})
}

func TestUploadSingle(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	t.Run("legacy image field", func(t *testing.T) {
		w := srv.upload("/api/assets/upload", "alice", []upload{
			{field: "image", name: "a.png", contentType: "image/png", data: pngImage(t, 32, 32)},
		}, nil)
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("folder from query", func(t *testing.T) {
		folder := decode[folderJSON](t, srv.json(http.MethodPost, "/api/folders", "alice", `{"name":"Docs"}`))
		w := srv.upload("/api/assets/upload?folder_id="+folder.ID, "alice", []upload{
			{field: "file", name: "a.txt", contentType: "text/plain", data: []byte("a")},
		}, nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		got := decode[assetJSON](t, w)
		require.NotNil(t, got.FolderID)
		assert.Equal(t, folder.ID, *got.FolderID)
	})

	t.Run("empty file fails the read stage", func(t *testing.T) {
		w := srv.upload("/api/assets/upload", "alice", []upload{
			{field: "file", name: "empty.txt", contentType: "text/plain"},
		}, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		p := decode[problemJSON](t, w)
		assert.Equal(t, libraryService.StageRead, p.Stage)
	})

	t.Run("no file", func(t *testing.T) {
		w := srv.upload("/api/assets/upload", "alice", nil, map[string]string{"folder_id": "x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown folder", func(t *testing.T) {
		w := srv.upload("/api/assets/upload", "alice", []upload{
			{field: "file", name: "a.txt", contentType: "text/plain", data: []byte("a")},
		}, map[string]string{"folder_id": "missing"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		w := srv.json(http.MethodPost, "/api/assets/upload", "alice", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUploadMultiple(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	type report struct {
		Success bool `json:"success"`
		Summary struct {
			Succeeded  int `json:"succeeded"`
			Failed     int `json:"failed"`
			TotalFiles int `json:"total_files"`
		} `json:"summary"`
		Errors []struct {
			Index int    `json:"index"`
			File  string `json:"file"`
			Stage string `json:"stage"`
		} `json:"errors"`
		Assets []assetJSON `json:"assets"`
	}

	t.Run("all succeed", func(t *testing.T) {
		w := srv.upload("/api/assets/upload-multiple", "alice", []upload{
			{field: "files", name: "a.txt", contentType: "text/plain", data: []byte("a")},
			{field: "files", name: "b.png", contentType: "image/png", data: pngImage(t, 40, 20)},
		}, nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		r := decode[report](t, w)
		assert.True(t, r.Success)
		assert.Equal(t, 2, r.Summary.Succeeded)
		assert.Len(t, r.Assets, 2)
		assert.Empty(t, r.Errors)
	})

	t.Run("partial failure", func(t *testing.T) {
		w := srv.upload("/api/assets/upload-multiple", "alice", []upload{
			{field: "images", name: "a.txt", contentType: "text/plain", data: []byte("a")},
			{field: "images", name: "empty.txt", contentType: "text/plain"},
		}, nil)
		require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())
		r := decode[report](t, w)
		assert.False(t, r.Success)
		assert.Equal(t, 1, r.Summary.Succeeded)
		assert.Equal(t, 1, r.Summary.Failed)
		require.Len(t, r.Errors, 1)
		assert.Equal(t, 1, r.Errors[0].Index)
		assert.Equal(t, "empty.txt", r.Errors[0].File)
	})

	t.Run("all fail", func(t *testing.T) {
		w := srv.upload("/api/assets/upload-multiple", "alice", []upload{
			{field: "files", name: "x.txt", contentType: "text/plain"},
			{field: "files", name: "y.txt", contentType: "text/plain"},
		}, nil)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		assert.Equal(t, 2, decode[report](t, w).Summary.Failed)
	})

	t.Run("too many files", func(t *testing.T) {
		files := make([]upload, 4)
		for i := range files {
			files[i] = upload{field: "files", name: "f.txt", contentType: "text/plain", data: []byte("f")}
		}
		w := srv.upload("/api/assets/upload-multiple", "alice", files, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUpload_BodyTooLarge(t *testing.T) {
	srv := newTestServer(t, serverOptions{maxFileBytes: 1024})

	w := srv.upload("/api/assets/upload", "alice", []upload{
		{field: "file", name: "big.bin", data: bytes.Repeat([]byte{1}, 2<<20)},
	}, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = srv.upload("/api/assets/upload", "alice", []upload{
		{field: "file", name: "medium.bin", data: bytes.Repeat([]byte{1}, 2048)},
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, libraryService.StageRead, decode[problemJSON](t, w).Stage)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthCheck(t *testing.T) {
	w := newTestServer(t, serverOptions{}).do(http.MethodGet, "/health", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]interface{}](t, w)["status"])

	w = newTestServer(t, serverOptions{db: stubPinger{}}).do(http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = newTestServer(t, serverOptions{db: stubPinger{err: errors.New("down")}}).do(http.MethodGet, "/health", "", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decode[map[string]interface{}](t, w)["status"])
}

func TestScopeParam(t *testing.T) {
	for _, v := range []string{"", "null", "root"} {
		assert.Nil(t, scopeParam(v), v)
	}
	got := scopeParam("f1")
	require.NotNil(t, got)
	assert.Equal(t, "f1", *got)
}

func TestMissingIdentity(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	assert.Equal(t, http.StatusUnauthorized, srv.json(http.MethodGet, "/api/folders", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, srv.json(http.MethodGet, "/api/assets", "", "").Code)
}
