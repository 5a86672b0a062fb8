// Package storage abstracts the blob stores the pipeline publishes rendered
// assets to. Backends share one contract so the pipeline, server, and CLI do
// not care whether results land in memory, behind a media CDN, or in S3.
package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// UploadOptions controls where and under what name a blob is stored.
type UploadOptions struct {
	// Folder is the logical prefix (e.g. "engravings", "pendants").
	Folder string
	// PublicID is the stable identifier within the folder. When empty the
	// backend generates a random one.
	PublicID string
	// Format is the encoded format of the payload ("png", "jpeg").
	Format string
}

// UploadResult describes a stored blob.
type UploadResult struct {
	URL      string
	PublicID string
	Bytes    int
	Width    int
	Height   int
}

// BlobStore is the capability every storage backend implements. Upload is
// expected to be safe for concurrent use; the pipeline fans styles out in
// parallel against a single store.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, opts UploadOptions) (*UploadResult, error)
}

// UploadError wraps a backend failure with the destination that failed.
type UploadError struct {
	Backend string
	Key     string
	Err     error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s upload of %q failed: %v", e.Backend, e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// objectKey builds the storage key from options, generating a public ID when
// none was supplied.
func objectKey(opts UploadOptions) (key, publicID string) {
	publicID = opts.PublicID
	if publicID == "" {
		publicID = uuid.NewString()
	}
	key = publicID
	if opts.Folder != "" {
		key = opts.Folder + "/" + publicID
	}
	if opts.Format != "" {
		key += "." + opts.Format
	}
	return key, publicID
}
