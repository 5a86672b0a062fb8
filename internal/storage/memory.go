package storage

import (
	"bytes"
	"context"
	"image"
	"sync"

	_ "image/jpeg"
	_ "image/png"
)

// MemoryStore keeps uploads in process memory. It backs tests and dry runs
// where publishing to a real CDN would be wasteful.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Upload(ctx context.Context, data []byte, opts UploadOptions) (*UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &UploadError{Backend: "memory", Key: opts.PublicID, Err: err}
	}
	key, publicID := objectKey(opts)

	stored := make([]byte, len(data))
	copy(stored, data)

	m.mu.Lock()
	m.blobs[key] = stored
	m.mu.Unlock()

	w, h := probeDimensions(data)
	return &UploadResult{
		URL:      "memory://" + key,
		PublicID: publicID,
		Bytes:    len(data),
		Width:    w,
		Height:   h,
	}, nil
}

// Get returns the stored payload for a key, or false when absent.
func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	return data, ok
}

// Len reports how many blobs the store holds.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// probeDimensions decodes only the image header; zero values mean the payload
// was not a recognizable image, which is not an error for storage purposes.
func probeDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
