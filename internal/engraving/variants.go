package engraving

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pupring/engrave/internal/storage"
	"github.com/pupring/engrave/internal/utils"
)

// StyleOutput is one published engraving variant. Raster keeps the rendered
// pixels available for downstream compositing without a re-render.
type StyleOutput struct {
	Style    string        `json:"style"`
	URL      string        `json:"url"`
	PublicID string        `json:"publicId"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Raster   *utils.Raster `json:"-"`
}

// StyleError records a per-style failure. A failed style never aborts its
// siblings; the caller decides based on how many styles survived.
type StyleError struct {
	Style string `json:"style"`
	Err   error  `json:"-"`
}

func (e StyleError) Error() string {
	return fmt.Sprintf("style %q failed: %v", e.Style, e.Err)
}

func (e StyleError) Unwrap() error { return e.Err }

// VariantsResult aggregates all styles of one generation run. Success means at
// least one style rendered and uploaded.
type VariantsResult struct {
	Success  bool
	Strategy string
	Styles   map[string]StyleOutput
	Errors   []StyleError
	Elapsed  time.Duration
}

// GeneratorConfig tunes the variant generator.
type GeneratorConfig struct {
	Folder      string `mapstructure:"folder"`
	Concurrency int    `mapstructure:"concurrency"`
}

// DefaultGeneratorConfig returns production defaults.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Folder:      "engravings",
		Concurrency: 3,
	}
}

// Generator renders every style of a strategy and publishes the results.
type Generator struct {
	config   GeneratorConfig
	strategy *Strategy
	store    storage.BlobStore
	logger   *slog.Logger
}

// NewGenerator builds a generator for the given strategy and blob store.
func NewGenerator(config GeneratorConfig, strategy *Strategy, store storage.BlobStore, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	return &Generator{
		config:   config,
		strategy: strategy,
		store:    store,
		logger:   logger,
	}
}

// Generate renders all styles of the strategy from the prepared source image
// and uploads each as a PNG. Styles run concurrently; individual failures are
// collected rather than propagated so the surviving styles still publish.
func (g *Generator) Generate(ctx context.Context, img image.Image, baseID string) (*VariantsResult, error) {
	start := time.Now()
	result := &VariantsResult{
		Strategy: g.strategy.Name,
		Styles:   make(map[string]StyleOutput),
	}

	if g.strategy.AliasStyles {
		if err := g.generateAliased(ctx, img, baseID, result); err != nil {
			return nil, err
		}
		result.Success = len(result.Styles) > 0
		result.Elapsed = time.Since(start)
		return result, nil
	}

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.config.Concurrency)

	for _, filter := range g.strategy.Filters {
		filter := filter
		eg.Go(func() error {
			output, err := g.renderAndUpload(egCtx, filter, img, baseID, filter.Name())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				g.logger.Warn("engraving style failed",
					"style", filter.Name(),
					"strategy", g.strategy.Name,
					"error", err)
				result.Errors = append(result.Errors, StyleError{Style: filter.Name(), Err: err})
				return nil
			}
			result.Styles[filter.Name()] = *output
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	result.Success = len(result.Styles) > 0
	result.Elapsed = time.Since(start)
	g.logger.Info("engraving variants generated",
		"strategy", g.strategy.Name,
		"styles", len(result.Styles),
		"failures", len(result.Errors),
		"duration", result.Elapsed)
	return result, nil
}

// generateAliased renders the first filter once and publishes that single
// result under every advertised style name.
func (g *Generator) generateAliased(ctx context.Context, img image.Image, baseID string, result *VariantsResult) error {
	if len(g.strategy.Filters) == 0 {
		return nil
	}
	primary := g.strategy.Filters[0]
	output, err := g.renderAndUpload(ctx, primary, img, baseID, g.strategy.Name)
	if err != nil {
		for _, name := range g.strategy.StyleNames() {
			result.Errors = append(result.Errors, StyleError{Style: name, Err: err})
		}
		return nil
	}
	for _, name := range g.strategy.StyleNames() {
		aliased := *output
		aliased.Style = name
		result.Styles[name] = aliased
	}
	return nil
}

func (g *Generator) renderAndUpload(ctx context.Context, filter StyleFilter, img image.Image, baseID, uploadName string) (*StyleOutput, error) {
	raster, err := filter.Apply(img)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	encoded, err := utils.EncodePNG(raster.Image())
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	publicID := uploadName
	if baseID != "" {
		publicID = baseID + "-" + uploadName
	}
	uploaded, err := g.store.Upload(ctx, encoded, storage.UploadOptions{
		Folder:   g.config.Folder,
		PublicID: publicID,
		Format:   "png",
	})
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	return &StyleOutput{
		Style:    filter.Name(),
		URL:      uploaded.URL,
		PublicID: uploaded.PublicID,
		Width:    raster.Width,
		Height:   raster.Height,
		Raster:   raster,
	}, nil
}
