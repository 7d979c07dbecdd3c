package docker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/sirupsen/logrus"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

// StopTimeout is how long a container gets to exit after SIGTERM.
const StopTimeout = 10 * time.Second

// Adapter implements ports.ContainerService using Docker SDK
type Adapter struct {
	cli      client.APIClient
	log      logrus.FieldLogger
	progress io.Writer
}

// NewAdapter creates a new Docker adapter instance
func NewAdapter(cli client.APIClient, log logrus.FieldLogger) *Adapter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Adapter{cli: cli, log: log, progress: io.Discard}
}

// ListContainers returns every container lighthouse manages, running or not.
func (a *Adapter) ListContainers(ctx context.Context) ([]domain.Container, error) {
	containers, err := a.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", LabelManaged+"=true")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	result := make([]domain.Container, 0, len(containers))
	for _, c := range containers {
		result = append(result, fromSummary(c))
	}
	return result, nil
}

// StartContainer creates and starts an app instance. It returns once the
// runtime reports the process started; readiness is checked separately.
// Without a requested port the image's exposed port is used.
func (a *Adapter) StartContainer(ctx context.Context, req domain.StartRequest) (*domain.Instance, error) {
	if req.Image == "" {
		return nil, fmt.Errorf("image is required")
	}
	log := a.log.WithField("image", req.Image)

	img, err := a.ensureImage(ctx, req.Image)
	if err != nil {
		return nil, err
	}
	if req.Port, err = resolvePort(req.Port, img.Config); err != nil {
		return nil, err
	}
	cfg, hostCfg, err := createConfig(req)
	if err != nil {
		return nil, err
	}

	resp, err := a.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, req.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	for _, w := range resp.Warnings {
		log.Warn(w)
	}

	if err := a.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}
	log.WithField("container", shortID(resp.ID)).Info("container started")

	return a.InspectContainer(ctx, resp.ID)
}

// ensureImage pulls ref when it is not present locally and returns its metadata.
func (a *Adapter) ensureImage(ctx context.Context, ref string) (types.ImageInspect, error) {
	img, _, err := a.cli.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return img, nil
	}
	if !errdefs.IsNotFound(err) {
		return types.ImageInspect{}, fmt.Errorf("failed to inspect image: %w", err)
	}

	a.log.WithField("image", ref).Info("pulling image")
	reader, err := a.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return types.ImageInspect{}, fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	if _, err := io.Copy(a.progress, reader); err != nil {
		return types.ImageInspect{}, fmt.Errorf("failed to pull image: %w", err)
	}

	img, _, err = a.cli.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		return types.ImageInspect{}, fmt.Errorf("failed to inspect image: %w", err)
	}
	return img, nil
}

// InspectContainer reports the container and its lifecycle state.
func (a *Adapter) InspectContainer(ctx context.Context, id string) (*domain.Instance, error) {
	info, err := a.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}
	return fromInspect(info), nil
}

// StopContainer stops a running container, killing it after StopTimeout.
func (a *Adapter) StopContainer(ctx context.Context, id string) error {
	timeout := int(StopTimeout / time.Second)
	if err := a.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

// RemoveContainer force-removes a container.
func (a *Adapter) RemoveContainer(ctx context.Context, id string) error {
	if err := a.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// GetContainerLogs returns the container's stdout and stderr, demultiplexed.
func (a *Adapter) GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error) {
	rc, err := a.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}

	pr, pw := io.Pipe()
	go func() {
		defer rc.Close()
		_, err := stdcopy.StdCopy(pw, pw, rc)
		pw.CloseWithError(err)
	}()
	return pr, nil
}
