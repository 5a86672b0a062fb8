package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pupring/engrave/internal/common"
	"github.com/pupring/engrave/internal/engraving"
	"github.com/pupring/engrave/internal/utils"
)

// benchCmd measures per-style filter throughput on a real photo. Useful when
// tuning style parameters.
var benchCmd = &cobra.Command{
	Use:   "bench [image]",
	Short: "Benchmark the engraving style filters on an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategyName, _ := cmd.Flags().GetString("strategy")
		iterations, _ := cmd.Flags().GetInt("iterations")

		data, err := os.ReadFile(args[0]) //nolint:gosec // G304: user-supplied CLI path
		if err != nil {
			return fmt.Errorf("read input image: %w", err)
		}
		img, _, err := utils.DecodeImage(data)
		if err != nil {
			return fmt.Errorf("decode input image: %w", err)
		}

		strategy, err := engraving.NewStrategy(strategyName)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "strategy %s, %dx%d input, %d iterations per style\n",
			strategy.Name, img.Bounds().Dx(), img.Bounds().Dy(), iterations)

		for _, filter := range strategy.Filters {
			result := common.RunBenchmark(filter.Name(), iterations, func() error {
				_, err := filter.Apply(img)
				return err
			})
			_, _ = fmt.Fprintln(out, result.String())
			if result.Error != nil {
				return result.Error
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().String("strategy", "", "engraving strategy (clean-simple, feature, uniform)")
	benchCmd.Flags().IntP("iterations", "n", 10, "iterations per style filter")
}
