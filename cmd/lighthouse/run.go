package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/melih/lighthouse-deploy/internal/adapters/docker"
	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

var (
	runName      string
	runPort      int
	runHostPort  int
	runEnv       []string
	runRestart   string
	runNoWait    bool
	runTimeout   time.Duration
	runReadyPath string
)

var runCmd = &cobra.Command{
	Use:   "run IMAGE",
	Short: "Start an app container and wait until it serves",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port := runPort
		if port == 0 && recipeFile != "" {
			r, err := loadRecipe(0)
			if err != nil {
				return err
			}
			port = r.WithDefaults().Port
		}
		env := map[string]string{}
		for _, kv := range runEnv {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return fmt.Errorf("invalid --env %q, want KEY=VALUE", kv)
			}
			env[k] = v
		}

		cli, err := docker.Client()
		if err != nil {
			return err
		}
		containers := docker.NewAdapter(cli, log.WithField("component", "docker"))
		inst, err := containers.StartContainer(cmd.Context(), domain.StartRequest{
			Image:         args[0],
			Name:          runName,
			Port:          port,
			HostPort:      runHostPort,
			Env:           env,
			RestartPolicy: runRestart,
		})
		if err != nil {
			return err
		}

		if !runNoWait {
			w := docker.NewWaiter(containers, "127.0.0.1", runReadyPath, runTimeout, log.WithField("component", "ready"))
			if err := w.WaitReady(cmd.Context(), inst); err != nil {
				return err
			}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(inst)
	},
}

func init() {
	runCmd.Flags().StringVar(&runName, "name", "", "container name, also the proxy subdomain")
	runCmd.Flags().IntVar(&runPort, "port", 0, "container port (default: the port the image exposes)")
	runCmd.Flags().IntVar(&runHostPort, "host-port", 0, "host port to publish on (0 picks a free one)")
	runCmd.Flags().StringArrayVarP(&runEnv, "env", "e", nil, "environment variable KEY=VALUE")
	runCmd.Flags().StringVar(&runRestart, "restart", "", "docker restart policy (default no)")
	runCmd.Flags().BoolVar(&runNoWait, "no-wait", false, "return once the container started")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 60*time.Second, "how long to wait for the app to accept connections")
	runCmd.Flags().StringVar(&runReadyPath, "ready-path", "", "HTTP path to probe instead of a TCP connect")
}
