package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
	"github.com/melih/lighthouse-deploy/internal/core/ports"
	"github.com/melih/lighthouse-deploy/internal/manifest"
	"github.com/melih/lighthouse-deploy/internal/recipe"
	"github.com/melih/lighthouse-deploy/internal/telemetry"
)

// ImageBuilder is the slice of the Docker client the adapter needs.
type ImageBuilder interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
}

type Adapter struct {
	cli      ImageBuilder
	fetcher  ports.SourceFetcher
	log      logrus.FieldLogger
	progress io.Writer
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithProgress streams the build output to w.
func WithProgress(w io.Writer) Option {
	return func(a *Adapter) { a.progress = w }
}

// WithLogger sets the adapter's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(a *Adapter) { a.log = log }
}

func NewBuilderAdapter(cli ImageBuilder, fetcher ports.SourceFetcher, opts ...Option) *Adapter {
	a := &Adapter{
		cli:      cli,
		fetcher:  fetcher,
		log:      logrus.StandardLogger(),
		progress: io.Discard,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BuildImage materialises the source, renders and lints the recipe, then
// builds the image with the generated Dockerfile injected into the context.
func (a *Adapter) BuildImage(ctx context.Context, req domain.BuildRequest) (*domain.BuildResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "builder.BuildImage")
	defer span.End()
	span.SetAttributes(attribute.String("image.tag", req.Tag))

	res, err := a.build(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("image.id", res.ImageID))
	return res, nil
}

func (a *Adapter) build(ctx context.Context, req domain.BuildRequest) (*domain.BuildResult, error) {
	if req.Tag == "" {
		return nil, errors.New("image tag is required")
	}
	r := req.Recipe.WithDefaults()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	log := a.log.WithField("image", req.Tag)

	dir, cleanup, err := a.source(ctx, req)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	m, err := manifest.Load(filepath.Join(dir, filepath.FromSlash(r.Manifest)))
	if err != nil {
		return nil, err
	}
	log.WithField("requirements", len(m.Requirements)).Debug("manifest parsed")

	dockerfile, err := recipe.Render(r)
	if err != nil {
		return nil, err
	}
	if err := recipe.Check(dockerfile, recipe.OptionsFor(r)); err != nil {
		return nil, fmt.Errorf("generated recipe is invalid: %w", err)
	}

	excludes, err := recipe.Excludes(dir, r.Excludes)
	if err != nil {
		return nil, err
	}
	buildCtx, err := Context(dir, excludes, recipe.GeneratedDockerfile, dockerfile)
	if err != nil {
		return nil, err
	}
	defer buildCtx.Close()

	log.Info("building image")
	resp, err := a.cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        []string{req.Tag},
		Dockerfile:  recipe.GeneratedDockerfile,
		Remove:      true,
		ForceRemove: true,
		NoCache:     req.NoCache,
		Labels:      r.Labels,
		Version:     types.BuilderV1,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBuildFailed, err)
	}
	defer resp.Body.Close()

	res, err := DecodeOutput(resp.Body, a.progress)
	if err != nil {
		return nil, err
	}
	res.Tag = req.Tag
	res.ManifestDigest = m.Digest
	log.WithFields(logrus.Fields{
		"image_id":    res.ImageID,
		"deps_cached": res.DependencyLayerCached(r.Manifest),
	}).Info("image built")
	return res, nil
}

// source returns the directory holding the app source and a cleanup func.
func (a *Adapter) source(ctx context.Context, req domain.BuildRequest) (string, func(), error) {
	noop := func() {}
	switch {
	case req.RepoURL != "" && req.SourceDir != "":
		return "", noop, errors.New("only one of repo_url and source_dir may be set")
	case req.RepoURL != "":
		if a.fetcher == nil {
			return "", noop, errors.New("no source fetcher configured")
		}
		tmpDir, err := os.MkdirTemp("", "lighthouse-build-*")
		if err != nil {
			return "", noop, fmt.Errorf("failed to create temp dir: %w", err)
		}
		cleanup := func() { os.RemoveAll(tmpDir) }

		ctx, span := telemetry.Tracer().Start(ctx, "builder.Fetch")
		defer span.End()
		if err := a.fetcher.Fetch(ctx, req.RepoURL, req.Ref, tmpDir); err != nil {
			cleanup()
			span.RecordError(err)
			return "", noop, err
		}
		return tmpDir, cleanup, nil
	case req.SourceDir != "":
		info, err := os.Stat(req.SourceDir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", noop, fmt.Errorf("%w: %s", domain.ErrSourceMissing, req.SourceDir)
			}
			return "", noop, fmt.Errorf("failed to stat source: %w", err)
		}
		if !info.IsDir() {
			return "", noop, fmt.Errorf("%w: %s is not a directory", domain.ErrSourceMissing, req.SourceDir)
		}
		return req.SourceDir, noop, nil
	default:
		return "", noop, fmt.Errorf("%w: no repo_url or source_dir given", domain.ErrSourceMissing)
	}
}
