package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/melih/lighthouse-deploy/internal/launcher"
)

var launchCmd = &cobra.Command{
	Use:   "launch [-- COMMAND [ARGS...]]",
	Short: "Run the app in the foreground as the container entrypoint does",
	Long: `Run the app bound to $PORT on all interfaces, as lighthouse-launcher does.
Configuration comes from PORT and the LIGHTHOUSE_* environment variables.`,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		os.Exit(launcher.Main(cmd.Context(), args))
		return nil
	},
}
