package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pupring/engrave/internal/compositor"
	"github.com/pupring/engrave/internal/engraving"
)

// stylesCmd lists the engraving strategies and pendant templates.
var stylesCmd = &cobra.Command{
	Use:   "styles",
	Short: "List engraving strategies and pendant templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		_, _ = fmt.Fprintln(out, "Engraving strategies:")
		for _, name := range []string{
			engraving.StrategyCleanSimple,
			engraving.StrategyFeature,
			engraving.StrategyUniform,
		} {
			strategy, err := engraving.NewStrategy(name)
			if err != nil {
				return err
			}
			note := ""
			if strategy.AliasStyles {
				note = " (single rendering shared by all styles)"
			}
			_, _ = fmt.Fprintf(out, "  %-13s styles: %s%s\n",
				name, strings.Join(strategy.StyleNames(), ", "), note)
		}

		_, _ = fmt.Fprintln(out, "\nPendant templates:")
		for _, name := range compositor.TemplateNames() {
			tmpl, err := compositor.TemplateByName(name)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "  %-13s %d slot(s)\n", name, len(tmpl.Slots))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stylesCmd)
}
