// Package gitsource materialises app sources from git repositories.
package gitsource

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"
)

// Fetcher clones repositories with go-git.
type Fetcher struct {
	// Depth limits history; 0 clones everything.
	Depth    int
	Progress io.Writer
	Log      logrus.FieldLogger
}

// NewFetcher returns a Fetcher making shallow clones.
func NewFetcher(log logrus.FieldLogger) *Fetcher {
	return &Fetcher{Depth: 1, Log: log}
}

// Fetch clones repoURL into dir. A non-empty ref is tried as a branch, then
// as a tag; a ref starting with "refs/" is used as is.
func (f *Fetcher) Fetch(ctx context.Context, repoURL, ref, dir string) error {
	log := f.logger().WithField("repo", repoURL)
	candidates := refCandidates(ref)

	var lastErr error
	for _, name := range candidates {
		if lastErr != nil {
			if err := emptyDir(dir); err != nil {
				return err
			}
		}
		log.WithField("ref", name.String()).Info("cloning repository")
		_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:           repoURL,
			ReferenceName: name,
			SingleBranch:  name != "",
			Depth:         f.Depth,
			Progress:      f.Progress,
			Tags:          git.NoTags,
		})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("failed to clone repo: %w", ctx.Err())
		}
		lastErr = err
	}
	return fmt.Errorf("failed to clone repo: %w", lastErr)
}

func (f *Fetcher) logger() logrus.FieldLogger {
	if f.Log == nil {
		return logrus.StandardLogger()
	}
	return f.Log
}

func refCandidates(ref string) []plumbing.ReferenceName {
	switch {
	case ref == "":
		return []plumbing.ReferenceName{""}
	case strings.HasPrefix(ref, "refs/"):
		return []plumbing.ReferenceName{plumbing.ReferenceName(ref)}
	default:
		return []plumbing.ReferenceName{
			plumbing.NewBranchReferenceName(ref),
			plumbing.NewTagReferenceName(ref),
		}
	}
}

// emptyDir removes a failed attempt's leftovers so the next clone starts clean.
func emptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
