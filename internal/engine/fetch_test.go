package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"Multipost/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMediaServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("video-bytes"))
	})
	mux.HandleFunc("/c.jpg", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("cover-bytes"))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestMediaFetcher_PreservesNameAndType(t *testing.T) {
	srv := newMediaServer(t)
	f, err := NewMediaFetcher()
	require.NoError(t, err)

	asset, err := f.Fetch(context.Background(), types.MediaRef{URL: srv.URL + "/v.mp4", Name: "v.mp4", MimeType: "video/quicktime"}, AssetVideo)
	require.NoError(t, err)
	assert.Equal(t, "v.mp4", asset.Name)
	assert.Equal(t, "video/quicktime", asset.MimeType)
	assert.Equal(t, []byte("video-bytes"), asset.Data)

	file := asset.File()
	assert.Equal(t, "v.mp4", file.Name)
	assert.Equal(t, "video/quicktime", file.MimeType)
}

func TestMediaFetcher_CoverDefaultsToJPEG(t *testing.T) {
	srv := newMediaServer(t)
	f, err := NewMediaFetcher()
	require.NoError(t, err)

	asset, err := f.Fetch(context.Background(), types.MediaRef{URL: srv.URL + "/c.jpg", Name: "c.jpg"}, AssetCover)
	require.NoError(t, err)
	assert.Equal(t, "c.jpg", asset.Name)
	assert.Equal(t, DefaultCoverMimeType, asset.File().MimeType)
}

func TestMediaFetcher_TransferErrors(t *testing.T) {
	srv := newMediaServer(t)
	f, err := NewMediaFetcher()
	require.NoError(t, err)

	for _, path := range []string{"/empty", "/missing"} {
		_, err := f.Fetch(context.Background(), types.MediaRef{URL: srv.URL + path, Name: "x"}, AssetVideo)
		require.Error(t, err, path)
		assert.ErrorIs(t, err, ErrTransfer, path)
	}

	var te *TransferError
	_, err = f.Fetch(context.Background(), types.MediaRef{URL: srv.URL + "/missing", Name: "x"}, AssetVideo)
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusNotFound, te.StatusCode)

	_, err = f.Fetch(context.Background(), types.MediaRef{URL: "http://127.0.0.1:1/unreachable", Name: "x"}, AssetCover)
	assert.ErrorIs(t, err, ErrTransfer)
}

type stubStore struct {
	bucket, key string
	data        []byte
}

func (s *stubStore) get(_ context.Context, bucket, key string) ([]byte, error) {
	s.bucket, s.key = bucket, key
	return s.data, nil
}

func TestMediaFetcher_ObjectStore(t *testing.T) {
	f, err := NewMediaFetcher()
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), types.MediaRef{URL: "s3://media/videos/v.mp4", Name: "v.mp4"}, AssetVideo)
	assert.ErrorIs(t, err, ErrTransfer)

	store := &stubStore{data: []byte("object")}
	f.store = store
	asset, err := f.Fetch(context.Background(), types.MediaRef{URL: "s3://media/videos/v.mp4", Name: "v.mp4"}, AssetVideo)
	require.NoError(t, err)
	assert.Equal(t, "media", store.bucket)
	assert.Equal(t, "videos/v.mp4", store.key)
	assert.Equal(t, DefaultVideoMimeType, asset.MimeType)

	_, err = f.Fetch(context.Background(), types.MediaRef{URL: "s3://media", Name: "v.mp4"}, AssetVideo)
	assert.ErrorIs(t, err, ErrTransfer)
}

func TestDescribeImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 9))))
	assert.Equal(t, "16x9 png", describeImage(buf.Bytes()))
	assert.Empty(t, describeImage([]byte("not an image")))
}
