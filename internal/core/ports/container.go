package ports

import (
	"context"
	"io"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

// ContainerService defines the core operations for managing containers.
// This interface allows us to switch between Docker, Podman, or Kubernetes
// without changing the business logic.
type ContainerService interface {
	ListContainers(ctx context.Context) ([]domain.Container, error)
	StartContainer(ctx context.Context, req domain.StartRequest) (*domain.Instance, error)
	InspectContainer(ctx context.Context, id string) (*domain.Instance, error)
	StopContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error
	GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error)
}

// ReadinessWaiter blocks until an instance accepts connections on its port.
type ReadinessWaiter interface {
	WaitReady(ctx context.Context, inst *domain.Instance) error
}
