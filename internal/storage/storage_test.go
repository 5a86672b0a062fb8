package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+3] = 255
	}
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestObjectKey(t *testing.T) {
	key, publicID := objectKey(UploadOptions{Folder: "engravings", PublicID: "abc", Format: "png"})
	assert.Equal(t, "engravings/abc.png", key)
	assert.Equal(t, "abc", publicID)

	key, publicID = objectKey(UploadOptions{PublicID: "abc"})
	assert.Equal(t, "abc", key)
	assert.Equal(t, "abc", publicID)
}

func TestObjectKeyGeneratesPublicID(t *testing.T) {
	_, first := objectKey(UploadOptions{Folder: "engravings"})
	_, second := objectKey(UploadOptions{Folder: "engravings"})

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestMemoryStoreUpload(t *testing.T) {
	store := NewMemoryStore()
	data := encodeTestPNG(t, 12, 8)

	result, err := store.Upload(context.Background(), data, UploadOptions{
		Folder:   "engravings",
		PublicID: "pet-1",
		Format:   "png",
	})
	require.NoError(t, err)

	assert.Equal(t, "memory://engravings/pet-1.png", result.URL)
	assert.Equal(t, "pet-1", result.PublicID)
	assert.Equal(t, len(data), result.Bytes)
	assert.Equal(t, 12, result.Width)
	assert.Equal(t, 8, result.Height)

	stored, ok := store.Get("engravings/pet-1.png")
	require.True(t, ok)
	assert.Equal(t, data, stored)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreCopiesPayload(t *testing.T) {
	store := NewMemoryStore()
	data := []byte("not an image")

	result, err := store.Upload(context.Background(), data, UploadOptions{PublicID: "raw"})
	require.NoError(t, err)
	assert.Zero(t, result.Width)

	data[0] = 'X'
	stored, ok := store.Get("raw")
	require.True(t, ok)
	assert.Equal(t, byte('n'), stored[0])
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Upload(ctx, []byte("data"), UploadOptions{PublicID: "x"})
	require.Error(t, err)

	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "memory", uploadErr.Backend)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCDNStoreUpload(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "engravings", r.FormValue("folder"))
		assert.NotEmpty(t, r.FormValue("public_id"))

		json.NewEncoder(w).Encode(cdnUploadResponse{
			SecureURL: "https://cdn.example.com/engravings/pet-1.png",
			PublicID:  "engravings/pet-1",
			Width:     100,
			Height:    80,
			Bytes:     4096,
		})
	}))
	defer server.Close()

	store := NewCDNStore(CDNConfig{BaseURL: server.URL, APIKey: "secret"}, nil)
	result, err := store.Upload(context.Background(), []byte("payload"), UploadOptions{
		Folder:   "engravings",
		PublicID: "pet-1",
		Format:   "png",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "https://cdn.example.com/engravings/pet-1.png", result.URL)
	assert.Equal(t, "engravings/pet-1", result.PublicID)
	assert.Equal(t, 100, result.Width)
	assert.Equal(t, 80, result.Height)
	assert.Equal(t, 4096, result.Bytes)
}

func TestCDNStoreServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	store := NewCDNStore(CDNConfig{BaseURL: server.URL}, nil)
	_, err := store.Upload(context.Background(), []byte("payload"), UploadOptions{PublicID: "x"})
	require.Error(t, err)

	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "cdn", uploadErr.Backend)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestUploadErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &UploadError{Backend: "s3", Key: "k", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.True(t, strings.Contains(err.Error(), "s3"))
	assert.True(t, strings.Contains(err.Error(), "k"))
}
