package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pupring/engrave/internal/compositor"
	"github.com/pupring/engrave/internal/utils"
)

// compositeCmd places already-rendered engravings into a pendant template.
var compositeCmd = &cobra.Command{
	Use:   "composite [engravings...]",
	Short: "Compose engravings into a pendant template",
	Long: `Compose one or more engraving images into a pendant template and write
the rendered preview.

The number of engravings must not exceed the template's slot count.

Examples:
  engrave composite rex.png --artwork locket.png
  engrave composite rex.png bella.png --template double --artwork double.png --names Rex,Bella`,
	Args: cobra.MinimumNArgs(1),
	RunE: runComposite,
}

func runComposite(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	templateName, _ := cmd.Flags().GetString("template")
	artworkPath, _ := cmd.Flags().GetString("artwork")
	namesCSV, _ := cmd.Flags().GetString("names")
	outputPath, _ := cmd.Flags().GetString("output")

	if _, err := compositor.TemplateByName(templateName); err != nil {
		return err
	}
	art, _, err := utils.LoadImage(artworkPath)
	if err != nil {
		return fmt.Errorf("load template artwork: %w", err)
	}

	var names []string
	if namesCSV != "" {
		names = strings.Split(namesCSV, ",")
	}

	pets := make([]compositor.PetEngraving, 0, len(args))
	for i, path := range args {
		img, _, err := utils.LoadImage(path)
		if err != nil {
			return fmt.Errorf("load engraving %s: %w", path, err)
		}
		pet := compositor.PetEngraving{Image: img}
		if i < len(names) {
			pet.Name = strings.TrimSpace(names[i])
		}
		pets = append(pets, pet)
	}

	comp := compositor.New(cfg.Compositor, slog.Default())
	rendered, err := comp.Composite(art, templateName, pets)
	if err != nil {
		return fmt.Errorf("composite: %w", err)
	}

	encoded, err := utils.EncodePNG(rendered)
	if err != nil {
		return fmt.Errorf("encode composite: %w", err)
	}
	if err := os.WriteFile(outputPath, encoded, 0o600); err != nil {
		return fmt.Errorf("write composite: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d engravings, template %s)\n",
		outputPath, len(pets), templateName)
	return nil
}

func init() {
	rootCmd.AddCommand(compositeCmd)
	compositeCmd.Flags().String("template", "locket", "pendant template name")
	compositeCmd.Flags().String("artwork", "", "pendant artwork image file")
	compositeCmd.Flags().StringP("output", "o", "pendant.png", "output file for the rendered pendant")
	compositeCmd.Flags().String("names", "", "comma-separated pet names drawn under the slots")
	_ = compositeCmd.MarkFlagRequired("artwork")
}
