// Command lighthouse renders, lints, builds and runs Python web apps as
// containers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/melih/lighthouse-deploy/internal/config"
	"github.com/melih/lighthouse-deploy/internal/core/domain"
	"github.com/melih/lighthouse-deploy/internal/logging"
)

var (
	recipeFile string
	logLevel   string
	logFormat  string

	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "lighthouse",
	Short:         "Build and run Python web apps as containers",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		log, err = logging.New(logLevel, logFormat)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&recipeFile, "recipe", "f", os.Getenv("LIGHTHOUSE_RECIPE_FILE"), "recipe file (YAML); defaults apply when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	rootCmd.AddCommand(renderCmd, lintCmd, buildCmd, runCmd, launchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadRecipe reads --recipe and applies the port override when set.
func loadRecipe(port int) (domain.Recipe, error) {
	r, err := config.LoadRecipe(recipeFile)
	if err != nil {
		return domain.Recipe{}, err
	}
	if port != 0 {
		r.Port = port
		if err := r.Validate(); err != nil {
			return domain.Recipe{}, err
		}
	}
	return r, nil
}
