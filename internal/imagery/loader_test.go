package imagery

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/impact-globe/model"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 30, G: 144, B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type memStore map[string][]byte

func (m memStore) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	data, ok := m[bucket+"/"+key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestLoadFallsThroughToFirstDecodable(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.jpg")
	good := filepath.Join(dir, "good.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))
	require.NoError(t, os.WriteFile(good, pngBytes(t, 4, 2), 0o600))

	l := NewLoader(nil, time.Second, nil)
	img, err := l.Load(context.Background(), []string{
		"file://" + filepath.Join(dir, "missing.jpg"),
		"file://" + bad,
		"file://" + good,
	})
	require.NoError(t, err)
	assert.Equal(t, "file://"+good, img.Source)
	assert.Equal(t, "png", img.Format)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, 2, img.Height)
}

func TestLoadHTTP(t *testing.T) {
	payload := pngBytes(t, 8, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	l := NewLoader(nil, time.Second, nil)
	img, err := l.Load(context.Background(), []string{srv.URL + "/missing.jpg", srv.URL + "/earth.png"})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/earth.png", img.Source)
}

func TestLoadObjectStore(t *testing.T) {
	store := memStore{"textures/earth_atmos_2048.jpg": pngBytes(t, 2, 2)}
	l := NewLoader(store, time.Second, nil)

	img, err := l.Load(context.Background(), []string{
		"minio://textures/absent.jpg",
		"minio://textures/earth_atmos_2048.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, img.Width)
}

func TestLoadAllFail(t *testing.T) {
	l := NewLoader(nil, time.Second, nil)
	_, err := l.Load(context.Background(), []string{
		"minio://textures/earth.jpg",
		"gopher://example/earth.jpg",
		"file:///definitely/not/here.jpg",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoImagery)

	_, err = l.Load(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoImagery)
}

func TestChainOrder(t *testing.T) {
	low := Chain(model.ProfileFor(model.TierLow), "/srv/textures", []string{"https://cdn/earth.jpg"})
	assert.Equal(t, []string{
		"file:///srv/textures/earth_atmos_512.jpg",
		"file:///srv/textures/land_ocean_ice_cloud_512.jpg",
		"file:///srv/textures/earth_atmos_2048.jpg",
		"file:///srv/textures/land_ocean_ice_cloud_2048.jpg",
		"https://cdn/earth.jpg",
	}, low)

	high := Chain(model.ProfileFor(model.TierHigh), "minio://textures/", nil)
	assert.Equal(t, []string{
		"minio://textures/earth_atmos_2048.jpg",
		"minio://textures/land_ocean_ice_cloud_2048.jpg",
	}, high)

	assert.Equal(t, DefaultRemoteSources, Chain(model.ProfileFor(model.TierMedium), "", DefaultRemoteSources))
}
