package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pupring/engrave/internal/compositor"
	"github.com/pupring/engrave/internal/facecrop"
	"github.com/pupring/engrave/internal/pipeline"
	"github.com/pupring/engrave/internal/utils"
)

// processCmd runs one photo through the full pipeline and writes the
// engraving styles to disk.
var processCmd = &cobra.Command{
	Use:   "process [image]",
	Short: "Process a pet photo into engraving styles",
	Long: `Process a pet photo: detect the face, crop, render the engraving styles,
and write each style as a PNG next to the pendant preview URLs.

Examples:
  engrave process photo.jpg
  engrave process photo.jpg --pet-name Rex --strategy uniform
  engrave process photo.jpg --center-x 320 --center-y 240 --width 150 --height 120`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	inputPath := args[0]
	if !utils.IsSupportedImage(inputPath) {
		return fmt.Errorf("unsupported image file: %s", inputPath)
	}
	data, err := os.ReadFile(inputPath) //nolint:gosec // G304: user-supplied CLI path
	if err != nil {
		return fmt.Errorf("read input image: %w", err)
	}
	info, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("stat input image: %w", err)
	}

	strategy, _ := cmd.Flags().GetString("strategy")
	petName, _ := cmd.Flags().GetString("pet-name")
	outputDir, _ := cmd.Flags().GetString("output")
	artworkDir, _ := cmd.Flags().GetString("templates-dir")
	if !cmd.Flags().Changed("templates-dir") && cfg.TemplatesDir != "" {
		artworkDir = cfg.TemplatesDir
	}

	box, err := customBoxFromFlags(cmd)
	if err != nil {
		return err
	}

	arts := loadTemplateArtwork(artworkDir)
	var comp *compositor.Compositor
	if len(arts) > 0 {
		comp = compositor.New(cfg.Compositor, slog.Default())
	}

	listener := pipeline.NewLogListener(slog.Default(), slog.LevelInfo)
	orch, err := buildOrchestrator(cfg, strategy, listener, comp, arts)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	res := orch.Process(context.Background(), pipeline.Request{
		Filename:     filepath.Base(inputPath),
		Data:         data,
		Size:         info.Size(),
		LastModified: info.ModTime(),
		PetName:      petName,
		CustomBox:    box,
	})

	if !res.Success {
		if res.RequiresNewImage {
			return fmt.Errorf("photo rejected: %s", res.Error)
		}
		return fmt.Errorf("processing failed: %s", res.Error)
	}

	if err := writeStyleFiles(res, inputPath, outputDir); err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}

// customBoxFromFlags assembles the optional pre-validated face box. The four
// coordinate flags are all-or-nothing.
func customBoxFromFlags(cmd *cobra.Command) (*facecrop.BoundingBox, error) {
	names := []string{"center-x", "center-y", "width", "height"}
	provided := 0
	values := make([]float64, len(names))
	for i, name := range names {
		if cmd.Flags().Changed(name) {
			values[i], _ = cmd.Flags().GetFloat64(name)
			provided++
		}
	}
	switch provided {
	case 0:
		return nil, nil
	case len(names):
		box := facecrop.BoundingBox{
			CenterX: values[0],
			CenterY: values[1],
			Width:   values[2],
			Height:  values[3],
		}
		if !box.Valid() {
			return nil, fmt.Errorf("custom coordinates must have positive width and height")
		}
		return &box, nil
	default:
		return nil, fmt.Errorf("custom coordinates require all of --center-x, --center-y, --width, --height")
	}
}

// writeStyleFiles writes each rendered style next to the input file name.
func writeStyleFiles(res *pipeline.Result, inputPath, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))

	for name, out := range res.Styles {
		if out.Raster == nil {
			continue
		}
		encoded, err := utils.EncodePNG(out.Raster.Image())
		if err != nil {
			return fmt.Errorf("encode style %s: %w", name, err)
		}
		path := filepath.Join(outputDir, base+"-"+name+".png")
		if err := os.WriteFile(path, encoded, 0o600); err != nil {
			return fmt.Errorf("write style %s: %w", name, err)
		}
		slog.Info("wrote engraving style", "style", name, "path", path)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().StringP("output", "o", ".", "output directory for rendered styles")
	processCmd.Flags().String("strategy", "", "engraving strategy (clean-simple, feature, uniform)")
	processCmd.Flags().String("pet-name", "", "pet name drawn under pendant slots")
	processCmd.Flags().String("templates-dir", "", "directory with pendant template artwork (<name>.png)")
	processCmd.Flags().Float64("center-x", 0, "face center X, bypasses detection")
	processCmd.Flags().Float64("center-y", 0, "face center Y, bypasses detection")
	processCmd.Flags().Float64("width", 0, "face width, bypasses detection")
	processCmd.Flags().Float64("height", 0, "face height, bypasses detection")
}
