package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
	"github.com/melih/lighthouse-deploy/internal/recipe"
)

var (
	renderPort   int
	renderMode   string
	renderOutput string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the Dockerfile generated from the recipe",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadRecipe(renderPort)
		if err != nil {
			return err
		}
		if renderMode != "" {
			r.Mode = domain.LaunchMode(renderMode)
		}
		out, err := recipe.Render(r)
		if err != nil {
			return err
		}
		if renderOutput == "" || renderOutput == "-" {
			_, err = cmd.OutOrStdout().Write(out)
			return err
		}
		if err := os.WriteFile(renderOutput, out, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", renderOutput, err)
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().IntVarP(&renderPort, "port", "p", 0, "override the recipe port")
	renderCmd.Flags().StringVar(&renderMode, "mode", "", "launch mode: exec (literal port) or env (port from $PORT)")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "write to a file instead of stdout")
}
