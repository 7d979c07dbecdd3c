package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/melih/lighthouse-deploy/internal/recipe"
)

var lintManifest string

var lintCmd = &cobra.Command{
	Use:   "lint [DOCKERFILE]",
	Short: "Check a Dockerfile against the build-and-launch contract",
	Long: `Check that a Dockerfile installs dependencies before copying the source,
exposes exactly one port, and launches the app on that port on all interfaces.
Reads ./Dockerfile by default, or stdin when the argument is "-".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "Dockerfile"
		if len(args) == 1 {
			path = args[0]
		}
		var (
			content []byte
			err     error
		)
		if path == "-" {
			content, err = io.ReadAll(cmd.InOrStdin())
		} else {
			content, err = os.ReadFile(path)
		}
		if err != nil {
			return err
		}

		r, err := loadRecipe(0)
		if err != nil {
			return err
		}
		opts := recipe.OptionsFor(r)
		if lintManifest != "" {
			opts.Manifest = lintManifest
		}

		p, err := recipe.Parse(bytes.NewReader(content))
		if err != nil {
			return err
		}
		violations := recipe.Lint(p, opts)
		for _, v := range violations {
			fmt.Fprintf(cmd.OutOrStdout(), "%s:%d: %s [%s] %s\n", path, v.Line, v.Severity, v.Rule, v.Message)
		}
		if recipe.HasErrors(violations) {
			return errors.New("lint failed")
		}
		return nil
	},
}

func init() {
	lintCmd.Flags().StringVar(&lintManifest, "manifest", "", "dependency manifest path (default from the recipe)")
}
