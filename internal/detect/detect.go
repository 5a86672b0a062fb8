// Package detect talks to the external pet-face detector and supplies the
// deterministic fallback used when the detector is unreachable.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pupring/engrave/internal/facecrop"
)

// ConfidenceThreshold is the minimum detector confidence the pipeline accepts.
// Detections below it are terminal rejections, not fallbacks.
const ConfidenceThreshold = 0.65

const (
	fallbackConfidence = 0.75
	staticConfidence   = 0.70
	customConfidence   = 1.0
)

// Source records where a bounding box came from.
type Source string

const (
	SourceDetector Source = "detector"
	SourceFallback Source = "fallback"
	SourceCustom   Source = "custom"
)

// Result is an accepted detection together with its provenance.
type Result struct {
	Box    facecrop.BoundingBox
	Source Source
}

// LowConfidenceError reports a detector response below the acceptance gate.
// It is a terminal rejection: the photo, not the system, is the problem.
type LowConfidenceError struct {
	Confidence float64
	HasPet     bool
}

func (e *LowConfidenceError) Error() string {
	if !e.HasPet {
		return "no pet detected in image"
	}
	return fmt.Sprintf("detection confidence %.2f below threshold %.2f", e.Confidence, ConfidenceThreshold)
}

// Config configures the detector client.
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns production defaults for the detector client.
func DefaultConfig() Config {
	return Config{Timeout: 30 * time.Second}
}

// Client calls the external detector over HTTP.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// NewClient builds a detector client.
func NewClient(config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config: config,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type detectRequest struct {
	Image string `json:"image"`
}

type detectResponse struct {
	HasPet      bool    `json:"hasPet"`
	Confidence  float64 `json:"confidence"`
	Coordinates *struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"coordinates"`
}

// Detect asks the external detector for a pet-face bounding box. Transport
// failures and malformed responses degrade to the deterministic fallback; a
// successful response below the confidence gate is a terminal rejection.
func (c *Client) Detect(ctx context.Context, imageURL string, imageWidth, imageHeight int) (*Result, error) {
	resp, err := c.call(ctx, imageURL)
	if err != nil {
		c.logger.Warn("detector unavailable, using fallback detection", "error", err)
		return &Result{Box: FallbackBox(imageWidth, imageHeight), Source: SourceFallback}, nil
	}

	if !resp.HasPet || resp.Confidence < ConfidenceThreshold {
		return nil, &LowConfidenceError{Confidence: resp.Confidence, HasPet: resp.HasPet}
	}

	if resp.Coordinates == nil {
		c.logger.Warn("detector returned no coordinates, using fallback geometry",
			"confidence", resp.Confidence)
		return &Result{Box: FallbackBox(imageWidth, imageHeight), Source: SourceFallback}, nil
	}

	box := facecrop.BoundingBox{
		CenterX:    resp.Coordinates.X,
		CenterY:    resp.Coordinates.Y,
		Width:      resp.Coordinates.Width,
		Height:     resp.Coordinates.Height,
		Confidence: resp.Confidence,
	}
	if !box.Valid() {
		c.logger.Warn("detector returned degenerate box, using fallback geometry",
			"confidence", resp.Confidence)
		return &Result{Box: FallbackBox(imageWidth, imageHeight), Source: SourceFallback}, nil
	}

	c.logger.Debug("pet face detected",
		"confidence", resp.Confidence,
		"centerX", box.CenterX,
		"centerY", box.CenterY)
	return &Result{Box: box, Source: SourceDetector}, nil
}

func (c *Client) call(ctx context.Context, imageURL string) (*detectResponse, error) {
	payload, err := json.Marshal(detectRequest{Image: imageURL})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/detect", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detector returned status %d: %s", resp.StatusCode, body)
	}

	var parsed detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode detector response: %w", err)
	}
	return &parsed, nil
}

// FallbackBox estimates a centered detection from image dimensions alone: a
// square at 25% of the smaller dimension. Without dimensions it falls back to
// a static box sized for typical uploads.
func FallbackBox(imageWidth, imageHeight int) facecrop.BoundingBox {
	if imageWidth <= 0 || imageHeight <= 0 {
		return facecrop.BoundingBox{
			CenterX:    300,
			CenterY:    300,
			Width:      200,
			Height:     200,
			Confidence: staticConfidence,
		}
	}
	minDim := imageWidth
	if imageHeight < minDim {
		minDim = imageHeight
	}
	size := float64(minDim) * 0.25
	return facecrop.BoundingBox{
		CenterX:    float64(imageWidth) / 2,
		CenterY:    float64(imageHeight) / 2,
		Width:      size,
		Height:     size,
		Confidence: fallbackConfidence,
	}
}

// CustomBox wraps caller-supplied coordinates as a pre-validated detection
// that bypasses the external detector entirely.
func CustomBox(centerX, centerY, width, height float64) *Result {
	return &Result{
		Box: facecrop.BoundingBox{
			CenterX:    centerX,
			CenterY:    centerY,
			Width:      width,
			Height:     height,
			Confidence: customConfidence,
		},
		Source: SourceCustom,
	}
}
