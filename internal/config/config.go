// Package config defines the application configuration and its loading rules.
// Values come from a YAML file, ENGRAVE_* environment variables, and
// command-line flags, in ascending precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pupring/engrave/internal/bgremoval"
	"github.com/pupring/engrave/internal/compositor"
	"github.com/pupring/engrave/internal/detect"
	"github.com/pupring/engrave/internal/engraving"
	"github.com/pupring/engrave/internal/pipeline"
	"github.com/pupring/engrave/internal/storage"
)

// Config represents the complete configuration for the engrave application.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Pipeline orchestration settings
	Pipeline pipeline.Config `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// External collaborators
	Detector  detect.Config    `mapstructure:"detector" yaml:"detector" json:"detector"`
	BgRemoval bgremoval.Config `mapstructure:"bg_removal" yaml:"bg_removal" json:"bg_removal"`

	// Blob storage
	Storage StorageConfig `mapstructure:"storage" yaml:"storage" json:"storage"`

	// Pendant compositing
	Compositor   compositor.Config `mapstructure:"compositor" yaml:"compositor" json:"compositor"`
	TemplatesDir string            `mapstructure:"templates_dir" yaml:"templates_dir" json:"templates_dir"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// StorageConfig selects and configures the blob storage backend.
type StorageConfig struct {
	// Backend is one of "memory", "cdn", "s3".
	Backend string            `mapstructure:"backend" yaml:"backend" json:"backend"`
	CDN     storage.CDNConfig `mapstructure:"cdn" yaml:"cdn" json:"cdn"`
	S3      storage.S3Config  `mapstructure:"s3" yaml:"s3" json:"s3"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host" json:"host"`
	Port            int           `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string        `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int           `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int           `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimitPerMin int           `mapstructure:"rate_limit_per_min" yaml:"rate_limit_per_min" json:"rate_limit_per_min"`
}

// DefaultConfig returns the configuration with all defaults applied.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:   "info",
		Verbose:    false,
		Pipeline:   pipeline.DefaultConfig(),
		Detector:   detect.DefaultConfig(),
		BgRemoval:  bgremoval.DefaultConfig(),
		Compositor: compositor.DefaultConfig(),
		Storage: StorageConfig{
			Backend: "memory",
			CDN:     storage.DefaultCDNConfig(),
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     25,
			TimeoutSec:      120,
			ShutdownTimeout: 10 * time.Second,
			RateLimitPerMin: 30,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.LogLevel)
	}

	if _, err := engraving.NewStrategy(c.Pipeline.Strategy); err != nil {
		return err
	}
	if c.Pipeline.CacheCapacity <= 0 {
		return fmt.Errorf("pipeline cache capacity must be > 0, got %d", c.Pipeline.CacheCapacity)
	}
	if c.Pipeline.OptimizeMaxSize <= 0 {
		return fmt.Errorf("pipeline optimize max size must be > 0, got %d", c.Pipeline.OptimizeMaxSize)
	}

	switch c.Storage.Backend {
	case "memory":
	case "cdn":
		if c.Storage.CDN.BaseURL == "" {
			return fmt.Errorf("storage backend %q requires cdn.base_url", c.Storage.Backend)
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage backend %q requires s3.bucket", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server max upload must be > 0, got %d MB", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("server timeout must be > 0, got %d", c.Server.TimeoutSec)
	}
	return nil
}

// BuildStore constructs the configured blob storage backend.
func (c *Config) BuildStore() (storage.BlobStore, error) {
	switch c.Storage.Backend {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "cdn":
		return storage.NewCDNStore(c.Storage.CDN, nil), nil
	case "s3":
		return storage.NewS3Store(c.Storage.S3, nil)
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}
}
