package ports

import (
	"context"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

// BuilderService defines operations for building container images from source code.
type BuilderService interface {
	// BuildImage materialises the source, renders the recipe and builds the image.
	// A failed build returns an error and no result: there is no partial image.
	BuildImage(ctx context.Context, req domain.BuildRequest) (*domain.BuildResult, error)
}

// SourceFetcher materialises a remote source tree into a local directory.
type SourceFetcher interface {
	Fetch(ctx context.Context, repoURL, ref, dir string) error
}
