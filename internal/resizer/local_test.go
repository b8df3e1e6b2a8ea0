package resizer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medialib/internal/blobstore"
	"medialib/internal/domain"
	"medialib/internal/observability"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newDiskStore(t *testing.T) *blobstore.DiskStore {
	t.Helper()
	store, err := blobstore.NewDiskStore(t.TempDir(), "http://blobs.test", discardLogger())
	require.NoError(t, err)
	return store
}

func TestLocal_Resize(t *testing.T) {
	store := newDiskStore(t)
	local := NewLocal(store, discardLogger())
	ctx := context.Background()

	refs, err := local.Resize(ctx, testPNG(t, 300, 200), "wide.png", []int{64, 128})
	require.NoError(t, err)
	require.Len(t, refs, 2)

	for size, ref := range refs {
		rc, err := store.Open(ctx, ref)
		require.NoError(t, err)
		img, err := imaging.Decode(rc)
		rc.Close()
		require.NoError(t, err)

		assert.Equal(t, size, img.Bounds().Dx(), "width of %dpx rendition", size)
		assert.Equal(t, size, img.Bounds().Dy(), "height of %dpx rendition", size)
		assert.Contains(t, ref.DeletionHandle, ".jpg")
	}
}

func TestLocal_UndecodableImage(t *testing.T) {
	local := NewLocal(newDiskStore(t), discardLogger())

	_, err := local.Resize(context.Background(), []byte("not an image"), "fake.png", []int{64})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnsupportedMedia))
}

func TestLocal_CanceledContext(t *testing.T) {
	local := NewLocal(newDiskStore(t), discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := local.Resize(ctx, testPNG(t, 32, 32), "small.png", []int{16})
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
}

func TestObserved_RecordsRenditions(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := observability.NewPrometheusObserver("test", reg)
	require.NoError(t, err)

	worker := WithObserver(NewLocal(newDiskStore(t), discardLogger()), "local", obs)
	_, err = worker.Resize(context.Background(), testPNG(t, 64, 64), "a.png", []int{16, 32})
	require.NoError(t, err)
	_, err = worker.Resize(context.Background(), []byte("junk"), "b.png", []int{16})
	require.Error(t, err)

	expected := `
# HELP test_resize_renditions_total Resized renditions returned by the resize worker.
# TYPE test_resize_renditions_total counter
test_resize_renditions_total 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, bytes.NewBufferString(expected), "test_resize_renditions_total"))

	count, err := testutil.GatherAndCount(reg, "test_resize_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
