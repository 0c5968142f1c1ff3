package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"Multipost/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func startServer(t *testing.T) *MediaServer {
	t.Helper()
	s := NewMediaServer()
	require.NoError(t, s.Start("127.0.0.1:0"))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func get(t *testing.T, u string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestMediaServer_ServesRegisteredFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "clip.mp4", "video-bytes")
	s := startServer(t)

	u, err := s.Register(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://127.0.0.1:"))
	assert.True(t, strings.HasSuffix(u, "/clip.mp4"))

	resp, body := get(t, u)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
	assert.Equal(t, "video-bytes", body)
}

func TestMediaServer_OnlyRegisteredFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "secret.txt", "nope")
	s := startServer(t)

	for _, p := range []string{"/", "/media/unknown/secret.txt", "/secret.txt"} {
		resp, _ := get(t, s.baseURL+p)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, p)
	}
}

func TestMediaServer_RejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.png", "png")
	s := NewMediaServer()
	s.baseURL = "http://local"
	u, err := s.Register(path)
	require.NoError(t, err)
	id := strings.Split(strings.TrimPrefix(u, "http://local/media/"), "/")[0]

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/media/"+id+"/x", nil)
	req.URL.Path = "/media/" + id + "/../a.png"
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/"+id+"/other.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/"+id+"/a.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestMediaServer_Resolve(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cover.webp", "webp")
	s := startServer(t)

	ref := &types.MediaRef{URL: "file://" + path}
	require.NoError(t, s.Resolve(ref))
	assert.True(t, strings.HasPrefix(ref.URL, s.baseURL+"/media/"))
	assert.Equal(t, "cover.webp", ref.Name)
	assert.Equal(t, "image/webp", ref.MimeType)

	remote := &types.MediaRef{URL: "https://cdn/v.mp4", Name: "v.mp4"}
	require.NoError(t, s.Resolve(remote))
	assert.Equal(t, "https://cdn/v.mp4", remote.URL)

	object := &types.MediaRef{URL: "s3://bucket/v.mp4"}
	require.NoError(t, s.Resolve(object))
	assert.Equal(t, "s3://bucket/v.mp4", object.URL)

	require.NoError(t, s.Resolve(nil))
	assert.Error(t, s.Resolve(&types.MediaRef{URL: filepath.Join(dir, "missing.mp4")}))
}

func TestMediaServer_RegisterBeforeStart(t *testing.T) {
	_, err := NewMediaServer().Register("x")
	assert.Error(t, err)
}

func TestMediaServer_CloseStopsServing(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewMediaServer()
	require.NoError(t, s.Start("127.0.0.1:0"))
	require.NoError(t, s.Close(context.Background()))
	http.DefaultClient.CloseIdleConnections()

	_, err := http.Get(s.baseURL + "/media/x/y")
	assert.Error(t, err)
}
