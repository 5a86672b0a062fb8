package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "engrave"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "ENGRAVE"
)

// Loader handles loading configuration from files, environment variables, and
// flag bindings.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader backed by the global viper
// instance so cobra flag bindings take effect.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// Load loads configuration from files, environment variables, and defaults,
// then validates it.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.load("")
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFile loads configuration from a specific file path, falling back to
// the search paths when the path is empty.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}
	cfg, err := l.load(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) load(configFile string) (*Config, error) {
	if configFile != "" {
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// A missing config file is fine when searching; defaults and env vars
		// carry the configuration. An explicit file must exist and parse.
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for flag binding.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}

	l.v.AddConfigPath("/etc/engrave")

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		l.v.AddConfigPath(filepath.Join(configDir, "engrave"))
	} else if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "engrave"))
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)
	l.v.SetDefault("templates_dir", defaults.TemplatesDir)

	l.v.SetDefault("pipeline.strategy", defaults.Pipeline.Strategy)
	l.v.SetDefault("pipeline.cache_capacity", defaults.Pipeline.CacheCapacity)
	l.v.SetDefault("pipeline.upload_folder", defaults.Pipeline.UploadFolder)
	l.v.SetDefault("pipeline.composite_folder", defaults.Pipeline.CompositeFolder)
	l.v.SetDefault("pipeline.optimized_folder", defaults.Pipeline.OptimizedFolder)
	l.v.SetDefault("pipeline.optimize_max_size", defaults.Pipeline.OptimizeMaxSize)
	l.v.SetDefault("pipeline.composite_template", defaults.Pipeline.CompositeTemplate)

	l.v.SetDefault("detector.base_url", defaults.Detector.BaseURL)
	l.v.SetDefault("detector.timeout", defaults.Detector.Timeout)
	l.v.SetDefault("bg_removal.base_url", defaults.BgRemoval.BaseURL)
	l.v.SetDefault("bg_removal.timeout", defaults.BgRemoval.Timeout)

	l.v.SetDefault("storage.backend", defaults.Storage.Backend)
	l.v.SetDefault("storage.cdn.base_url", defaults.Storage.CDN.BaseURL)
	l.v.SetDefault("storage.cdn.timeout", defaults.Storage.CDN.Timeout)
	l.v.SetDefault("storage.s3.region", defaults.Storage.S3.Region)
	l.v.SetDefault("storage.s3.bucket", defaults.Storage.S3.Bucket)

	l.v.SetDefault("compositor.draw_labels", defaults.Compositor.DrawLabels)
	l.v.SetDefault("compositor.label_opacity", defaults.Compositor.LabelOpacity)

	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_limit_per_min", defaults.Server.RateLimitPerMin)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
		paths = append(paths, filepath.Join(home, ".config", "engrave"))
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "engrave"))
	}

	paths = append(paths, "/etc/engrave")

	return paths
}
