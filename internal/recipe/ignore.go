package recipe

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/moby/patternmatcher/ignorefile"
)

// DefaultExcludes keeps build artifacts, version-control metadata and secrets
// out of the image.
var DefaultExcludes = []string{
	".git",
	".hg",
	"**/__pycache__",
	"**/*.pyc",
	".venv",
	"venv",
	".env",
	"**/*.pem",
	"**/*.key",
	".streamlit/secrets.toml",
	"Dockerfile*",
	".dockerignore",
}

// Excludes returns the exclusion list for sourceDir: the defaults, the
// recipe's own patterns, then the source tree's .dockerignore.
func Excludes(sourceDir string, extra []string) ([]string, error) {
	out := append([]string{}, DefaultExcludes...)
	out = append(out, extra...)

	f, err := os.Open(filepath.Join(sourceDir, ".dockerignore"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("failed to open .dockerignore: %w", err)
	}
	defer f.Close()

	patterns, err := ignorefile.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read .dockerignore: %w", err)
	}
	return append(out, patterns...), nil
}
