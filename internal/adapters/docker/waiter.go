package docker

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
	"github.com/melih/lighthouse-deploy/internal/ready"
)

// Inspector looks up the current state of an instance.
type Inspector interface {
	InspectContainer(ctx context.Context, id string) (*domain.Instance, error)
}

// Waiter waits for a published container port to accept connections.
type Waiter struct {
	containers Inspector
	host       string
	checker    ready.Checker
	opts       ready.Options
	log        logrus.FieldLogger
}

// NewWaiter probes published ports on host. An empty path probes TCP, held
// long enough to see through docker-proxy; otherwise path is fetched over HTTP.
func NewWaiter(containers Inspector, host, path string, timeout time.Duration, log logrus.FieldLogger) *Waiter {
	if host == "" {
		host = "127.0.0.1"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	var checker ready.Checker = ready.TCP{Hold: 250 * time.Millisecond}
	if path != "" {
		checker = ready.ForPath(path)
	}
	return &Waiter{
		containers: containers,
		host:       host,
		checker:    checker,
		opts:       ready.Options{Timeout: timeout},
		log:        log,
	}
}

// WaitReady moves inst to serving once its port answers, or to terminated
// if the container exits first.
func (w *Waiter) WaitReady(ctx context.Context, inst *domain.Instance) error {
	if inst.HostPort == 0 {
		return fmt.Errorf("%w: container %s publishes no host port", domain.ErrNotReady, inst.ID)
	}
	if inst.Lifecycle == domain.StateStarting {
		inst.Lifecycle = domain.StateLaunched
	}
	addr := net.JoinHostPort(w.host, strconv.Itoa(inst.HostPort))
	log := w.log.WithFields(logrus.Fields{"container": inst.ID, "addr": addr})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var exited *domain.Instance
	err := ready.Poll(ctx, addr, w.checker, w.opts, func(probeErr error) {
		log.WithError(probeErr).Debug("not ready yet")
		cur, err := w.containers.InspectContainer(ctx, inst.ID)
		if err != nil || !cur.Lifecycle.Terminal() {
			return
		}
		exited = cur
		cancel()
	})

	if exited != nil {
		inst.Lifecycle = domain.StateTerminated
		inst.ExitCode = exited.ExitCode
		inst.State = exited.State
		return fmt.Errorf("%w: container %s exited with code %d before accepting connections",
			domain.ErrNotReady, inst.ID, exited.ExitCode)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotReady, err)
	}

	next, err := inst.Lifecycle.Transition(domain.StateServing)
	if err != nil {
		return err
	}
	inst.Lifecycle = next
	log.Info("instance serving")
	return nil
}
