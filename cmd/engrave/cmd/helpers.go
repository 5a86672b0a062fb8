package cmd

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pupring/engrave/internal/bgremoval"
	"github.com/pupring/engrave/internal/compositor"
	"github.com/pupring/engrave/internal/config"
	"github.com/pupring/engrave/internal/detect"
	"github.com/pupring/engrave/internal/pipeline"
	"github.com/pupring/engrave/internal/utils"
)

// buildOrchestrator assembles the pipeline from the configuration. arts maps
// template names to pendant artwork; compositing is enabled when the
// configured composite template has artwork.
func buildOrchestrator(cfg *config.Config, strategy string, listener pipeline.ProgressListener,
	comp *compositor.Compositor, arts map[string]image.Image,
) (*pipeline.Orchestrator, error) {
	store, err := cfg.BuildStore()
	if err != nil {
		return nil, fmt.Errorf("build storage backend: %w", err)
	}

	builder := pipeline.NewBuilder().
		WithConfig(cfg.Pipeline).
		WithStore(store).
		WithDetector(detect.NewClient(cfg.Detector, slog.Default())).
		WithStrategy(strategy)

	if cfg.BgRemoval.BaseURL != "" {
		builder = builder.WithBackgroundRemover(bgremoval.NewClient(cfg.BgRemoval, slog.Default()))
	}
	if comp != nil {
		if art, ok := arts[cfg.Pipeline.CompositeTemplate]; ok {
			builder = builder.WithCompositor(comp, art)
		}
	}
	if listener != nil {
		builder = builder.WithListener(listener)
	}

	return builder.Build()
}

// loadTemplateArtwork loads pendant artwork files named <template>.png from
// dir. Templates without artwork are skipped.
func loadTemplateArtwork(dir string) map[string]image.Image {
	arts := make(map[string]image.Image)
	if dir == "" {
		return arts
	}
	for _, name := range compositor.TemplateNames() {
		path := filepath.Join(dir, name+".png")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		img, _, err := utils.LoadImage(path)
		if err != nil {
			slog.Warn("skipping unreadable template artwork", "path", path, "error", err)
			continue
		}
		arts[name] = img
	}
	return arts
}
