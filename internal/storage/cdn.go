package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

// CDNConfig configures the hosted media-CDN backend.
type CDNConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultCDNConfig returns production defaults for the media-CDN backend.
func DefaultCDNConfig() CDNConfig {
	return CDNConfig{Timeout: 30 * time.Second}
}

// CDNStore publishes blobs to a hosted media CDN over its multipart upload
// endpoint.
type CDNStore struct {
	config CDNConfig
	client *http.Client
	logger *slog.Logger
}

// NewCDNStore builds a CDN-backed blob store.
func NewCDNStore(config CDNConfig, logger *slog.Logger) *CDNStore {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CDNStore{
		config: config,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type cdnUploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bytes     int    `json:"bytes"`
}

func (c *CDNStore) Upload(ctx context.Context, data []byte, opts UploadOptions) (*UploadResult, error) {
	key, publicID := objectKey(opts)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", key)
	if err != nil {
		return nil, &UploadError{Backend: "cdn", Key: key, Err: err}
	}
	if _, err := part.Write(data); err != nil {
		return nil, &UploadError{Backend: "cdn", Key: key, Err: err}
	}
	if opts.Folder != "" {
		if err := writer.WriteField("folder", opts.Folder); err != nil {
			return nil, &UploadError{Backend: "cdn", Key: key, Err: err}
		}
	}
	if err := writer.WriteField("public_id", publicID); err != nil {
		return nil, &UploadError{Backend: "cdn", Key: key, Err: err}
	}
	if err := writer.Close(); err != nil {
		return nil, &UploadError{Backend: "cdn", Key: key, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/upload", &body)
	if err != nil {
		return nil, &UploadError{Backend: "cdn", Key: key, Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UploadError{Backend: "cdn", Key: key, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &UploadError{
			Backend: "cdn",
			Key:     key,
			Err:     fmt.Errorf("unexpected status %d: %s", resp.StatusCode, payload),
		}
	}

	var parsed cdnUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &UploadError{Backend: "cdn", Key: key, Err: err}
	}

	c.logger.Debug("uploaded blob to CDN",
		"key", key,
		"bytes", len(data),
		"duration", time.Since(start))

	result := &UploadResult{
		URL:      parsed.SecureURL,
		PublicID: parsed.PublicID,
		Bytes:    parsed.Bytes,
		Width:    parsed.Width,
		Height:   parsed.Height,
	}
	if result.PublicID == "" {
		result.PublicID = publicID
	}
	if result.Bytes == 0 {
		result.Bytes = len(data)
	}
	return result, nil
}
