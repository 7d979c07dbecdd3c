package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/melih/lighthouse-deploy/internal/adapters/builder"
	"github.com/melih/lighthouse-deploy/internal/adapters/docker"
	"github.com/melih/lighthouse-deploy/internal/adapters/gitsource"
	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

var (
	buildTag     string
	buildRepo    string
	buildRef     string
	buildNoCache bool
	buildQuiet   bool
)

var buildCmd = &cobra.Command{
	Use:   "build [DIR]",
	Short: "Build an app image from a local directory or a git repository",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadRecipe(0)
		if err != nil {
			return err
		}
		req := domain.BuildRequest{
			RepoURL: buildRepo,
			Ref:     buildRef,
			Tag:     buildTag,
			NoCache: buildNoCache,
			Recipe:  r,
		}
		if buildRepo == "" {
			req.SourceDir = "."
			if len(args) == 1 {
				req.SourceDir = args[0]
			}
		}

		cli, err := docker.Client()
		if err != nil {
			return err
		}
		var progress io.Writer = os.Stderr
		if buildQuiet {
			progress = io.Discard
		}
		b := builder.NewBuilderAdapter(cli,
			gitsource.NewFetcher(log.WithField("component", "git")),
			builder.WithLogger(log.WithField("component", "builder")),
			builder.WithProgress(progress),
		)

		res, err := b.BuildImage(cmd.Context(), req)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "image:     %s (%s)\n", res.Tag, res.ImageID)
		fmt.Fprintf(out, "manifest:  %s\n", res.ManifestDigest)
		fmt.Fprintf(out, "deps from cache: %t\n", res.DependencyLayerCached(r.WithDefaults().Manifest))
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVarP(&buildTag, "tag", "t", "lighthouse/app:latest", "image tag")
	buildCmd.Flags().StringVar(&buildRepo, "repo", "", "git repository to build instead of a directory")
	buildCmd.Flags().StringVar(&buildRef, "ref", "", "branch or tag of --repo")
	buildCmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "do not use the build cache")
	buildCmd.Flags().BoolVarP(&buildQuiet, "quiet", "q", false, "hide build output")
}
