package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/pupring/engrave/internal/compositor"
	"github.com/pupring/engrave/internal/detect"
	"github.com/pupring/engrave/internal/engraving"
	"github.com/pupring/engrave/internal/facecrop"
	"github.com/pupring/engrave/internal/storage"
)

// Detector is the external face detector the pipeline consumes.
type Detector interface {
	Detect(ctx context.Context, imageURL string, imageWidth, imageHeight int) (*detect.Result, error)
}

// BackgroundRemover is the optional preprocessing collaborator. It never
// fails; it returns the original bytes when it cannot improve them.
type BackgroundRemover interface {
	Remove(ctx context.Context, original []byte) []byte
}

// Config holds orchestrator configuration.
type Config struct {
	Strategy          string           `mapstructure:"strategy"`
	CacheCapacity     int              `mapstructure:"cache_capacity"`
	UploadFolder      string           `mapstructure:"upload_folder"`
	CompositeFolder   string           `mapstructure:"composite_folder"`
	OptimizedFolder   string           `mapstructure:"optimized_folder"`
	OptimizeMaxSize   int              `mapstructure:"optimize_max_size"`
	CompositeTemplate string           `mapstructure:"composite_template"`
	CropProfile       facecrop.Profile `mapstructure:"-"`
	Generator         engraving.GeneratorConfig
}

// DefaultConfig returns orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		Strategy:          engraving.StrategyCleanSimple,
		CacheCapacity:     10,
		UploadFolder:      "uploads",
		CompositeFolder:   "composites",
		OptimizedFolder:   "optimized",
		OptimizeMaxSize:   1200,
		CompositeTemplate: "locket",
		CropProfile:       facecrop.StandardProfile(),
		Generator:         engraving.DefaultGeneratorConfig(),
	}
}

// Builder constructs an Orchestrator with fluent configuration.
type Builder struct {
	cfg           Config
	store         storage.BlobStore
	detector      Detector
	remover       BackgroundRemover
	comp          *compositor.Compositor
	templateImage image.Image
	listener      ProgressListener
	logger        *slog.Logger
}

// NewBuilder creates a new orchestrator builder with defaults.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithStore sets the blob storage backend (mandatory).
func (b *Builder) WithStore(store storage.BlobStore) *Builder {
	b.store = store
	return b
}

// WithDetector sets the external face detector (mandatory).
func (b *Builder) WithDetector(d Detector) *Builder {
	b.detector = d
	return b
}

// WithBackgroundRemover sets the optional background-removal collaborator.
func (b *Builder) WithBackgroundRemover(r BackgroundRemover) *Builder {
	b.remover = r
	return b
}

// WithCompositor enables per-style pendant previews using the given
// compositor and template artwork. Without it the compositing stage is
// skipped.
func (b *Builder) WithCompositor(c *compositor.Compositor, template image.Image) *Builder {
	b.comp = c
	b.templateImage = template
	return b
}

// WithStrategy selects the engraving strategy by name.
func (b *Builder) WithStrategy(name string) *Builder {
	if name != "" {
		b.cfg.Strategy = name
	}
	return b
}

// WithCacheCapacity bounds the shared result cache.
func (b *Builder) WithCacheCapacity(capacity int) *Builder {
	if capacity > 0 {
		b.cfg.CacheCapacity = capacity
	}
	return b
}

// WithListener registers a progress listener.
func (b *Builder) WithListener(l ProgressListener) *Builder {
	b.listener = l
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Validate checks that mandatory collaborators are wired.
func (b *Builder) Validate() error {
	if b.store == nil {
		return errors.New("blob store is required")
	}
	if b.detector == nil {
		return errors.New("detector is required")
	}
	if b.cfg.OptimizeMaxSize <= 0 {
		return errors.New("optimize max size must be > 0")
	}
	return nil
}

// Build initializes the orchestrator.
func (b *Builder) Build() (*Orchestrator, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	strategy, err := engraving.NewStrategy(b.cfg.Strategy)
	if err != nil {
		return nil, fmt.Errorf("resolve engraving strategy: %w", err)
	}
	cache, err := NewResultCache(b.cfg.CacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("init result cache: %w", err)
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	listener := b.listener
	if listener == nil {
		listener = NoopListener{}
	}

	return &Orchestrator{
		cfg:           b.cfg,
		store:         b.store,
		detector:      b.detector,
		remover:       b.remover,
		comp:          b.comp,
		templateImage: b.templateImage,
		strategy:      strategy,
		generator:     engraving.NewGenerator(b.cfg.Generator, strategy, b.store, logger),
		cache:         cache,
		listener:      listener,
		logger:        logger,
	}, nil
}

// Orchestrator wires the pipeline collaborators together and runs requests.
type Orchestrator struct {
	cfg           Config
	store         storage.BlobStore
	detector      Detector
	remover       BackgroundRemover
	comp          *compositor.Compositor
	templateImage image.Image
	strategy      *engraving.Strategy
	generator     *engraving.Generator
	cache         *ResultCache
	listener      ProgressListener
	logger        *slog.Logger
}

// Config returns a copy of the orchestrator configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// Cache exposes the shared result cache.
func (o *Orchestrator) Cache() *ResultCache { return o.cache }

// Info returns key orchestrator properties for diagnostics endpoints.
func (o *Orchestrator) Info() map[string]interface{} {
	return map[string]interface{}{
		"strategy":           o.strategy.Name,
		"styles":             o.strategy.StyleNames(),
		"cache_capacity":     o.cfg.CacheCapacity,
		"cache_entries":      o.cache.Len(),
		"compositing":        o.comp != nil && o.templateImage != nil,
		"composite_template": o.cfg.CompositeTemplate,
		"background_removal": o.remover != nil,
	}
}
