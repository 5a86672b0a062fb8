// Package bgremoval calls the optional background-removal microservice. The
// service is an acceleration path, never a dependency: any failure returns
// the caller's original bytes untouched.
package bgremoval

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Config configures the microservice client.
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{Timeout: 60 * time.Second}
}

// Client calls the background-removal service.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// NewClient builds a background-removal client. An empty BaseURL disables the
// service; Remove then always returns the original bytes.
func NewClient(config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		config: config,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type removeRequest struct {
	Image string `json:"image"`
}

type removeResponse struct {
	Success bool   `json:"success"`
	Image   string `json:"image"`
}

// Remove strips the background from the image. On any failure (service
// disabled, unreachable, error response, undecodable payload) it returns the
// original bytes and logs the degradation; it never returns an error.
func (c *Client) Remove(ctx context.Context, original []byte) []byte {
	if c.config.BaseURL == "" {
		return original
	}

	processed, err := c.call(ctx, original)
	if err != nil {
		c.logger.Warn("background removal unavailable, keeping original image", "error", err)
		return original
	}
	c.logger.Debug("background removed", "originalBytes", len(original), "processedBytes", len(processed))
	return processed
}

func (c *Client) call(ctx context.Context, original []byte) ([]byte, error) {
	payload, err := json.Marshal(removeRequest{
		Image: base64.StdEncoding.EncodeToString(original),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/remove-background", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("service returned status %d: %s", resp.StatusCode, body)
	}

	var parsed removeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("service reported failure")
	}

	decoded, err := base64.StdEncoding.DecodeString(parsed.Image)
	if err != nil {
		return nil, fmt.Errorf("decode result payload: %w", err)
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("service returned empty image")
	}
	return decoded, nil
}
