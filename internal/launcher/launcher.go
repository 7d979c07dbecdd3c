package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
	"github.com/melih/lighthouse-deploy/internal/ready"
)

const healthShutdownTimeout = 5 * time.Second

// Launcher starts and supervises the app process.
type Launcher struct {
	cfg      Config
	argv     []string
	tracker  *Tracker
	registry *prometheus.Registry
	log      logrus.FieldLogger

	stdout, stderr io.Writer
	// externalHosts lists the addresses the bind probe treats as external.
	externalHosts func() ([]string, error)
	backoff       func() backoff.BackOff
}

// Option customises a Launcher.
type Option func(*Launcher)

// WithOutput redirects the app's stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(l *Launcher) { l.stdout, l.stderr = stdout, stderr }
}

// WithLogger sets the launcher's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Launcher) { l.log = log }
}

// New validates cfg and prepares the app command line from args.
func New(cfg Config, args []string, opts ...Option) (*Launcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	argv, err := Argv(args, cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	l := &Launcher{
		cfg:           cfg,
		argv:          argv,
		registry:      reg,
		log:           logrus.StandardLogger(),
		stdout:        os.Stdout,
		stderr:        os.Stderr,
		externalHosts: ready.ExternalHosts,
		backoff:       defaultBackoff,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.tracker = NewTracker(reg, l.log)
	return l, nil
}

func defaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Argv is the command line the app runs with.
func (l *Launcher) Argv() []string { return l.argv }

// Tracker exposes the instance state.
func (l *Launcher) Tracker() *Tracker { return l.tracker }

// Run starts the app and blocks until it terminates for good or ctx is
// cancelled. The returned code mirrors the app's exit status. The error
// reports why the last instance never served, if it did not.
func (l *Launcher) Run(ctx context.Context) (int, error) {
	g, ctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	if l.cfg.HealthPort != 0 {
		ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(l.cfg.HealthPort)))
		if err != nil {
			return 1, fmt.Errorf("health server: %w", err)
		}
		app := newHealthApp(l.tracker, l.registry)
		g.Go(func() error {
			return app.Listener(ln)
		})
		g.Go(func() error {
			<-runCtx.Done()
			return app.ShutdownWithTimeout(healthShutdownTimeout)
		})
	}

	var (
		code   int
		runErr error
	)
	g.Go(func() error {
		defer stop()
		code, runErr = l.supervise(runCtx)
		return nil
	})
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	return code, runErr
}

// supervise runs instances until the restart policy says stop.
func (l *Launcher) supervise(ctx context.Context) (int, error) {
	b := backoff.WithContext(backoff.WithMaxRetries(l.backoff(), uint64(l.cfg.MaxRestarts)), ctx)
	b.Reset()

	for {
		code, err := l.runOnce(ctx)
		if ctx.Err() != nil {
			return code, err
		}
		if !l.cfg.Restart.ShouldRestart(code) {
			return code, err
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			l.log.WithField("restarts", l.cfg.MaxRestarts).Error("restart limit reached")
			return code, err
		}
		l.log.WithFields(logrus.Fields{"exit_code": code, "delay": wait}).Warn("restarting app")

		select {
		case <-ctx.Done():
			return code, err
		case <-time.After(wait):
		}
		l.tracker.Restarted()
	}
}

// runOnce drives one instance through its lifecycle.
func (l *Launcher) runOnce(ctx context.Context) (int, error) {
	l.tracker.Reset()
	if err := l.tracker.Transition(domain.StateStarting); err != nil {
		return 1, err
	}

	log := l.log.WithField("port", l.cfg.Port)
	env := append(os.Environ(),
		"PORT="+strconv.Itoa(l.cfg.Port),
		"LIGHTHOUSE_BIND_ADDRESS="+l.cfg.BindAddress,
	)
	proc, err := startProcess(l.argv, env, l.stdout, l.stderr)
	if err != nil {
		// 127 is what a shell reports for a command it cannot run.
		l.tracker.Terminate(127)
		return 127, err
	}
	if err := l.tracker.Transition(domain.StateLaunched); err != nil {
		return 1, err
	}
	log.WithField("argv", l.argv).Info("app launched")

	readyCtx, cancelReady := context.WithCancel(ctx)
	defer cancelReady()
	readyCh := make(chan error, 1)
	go func() { readyCh <- l.waitServing(readyCtx) }()

	var failure error
	for {
		select {
		case err := <-readyCh:
			readyCh = nil
			if err == nil {
				if terr := l.tracker.Transition(domain.StateServing); terr == nil {
					log.Info("app serving")
				}
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			failure = err
			log.WithError(err).Error("app is not reachable, stopping it")
			proc.stop(l.cfg.GracePeriod)

		case <-proc.Done():
			code := proc.ExitCode()
			if failure != nil && code == 0 {
				code = 1
			}
			l.tracker.Terminate(code)
			log.WithField("exit_code", code).Info("app terminated")
			return code, failure

		case <-ctx.Done():
			log.Info("shutdown signal received")
			proc.stop(l.cfg.GracePeriod)
			code := proc.ExitCode()
			l.tracker.Terminate(code)
			return code, nil
		}
	}
}

// waitServing returns nil once the app accepts connections on an
// interface the platform router can reach.
func (l *Launcher) waitServing(ctx context.Context) error {
	host := l.cfg.BindAddress
	if domain.IsAllInterfaces(host) {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(l.cfg.Port))

	err := ready.Poll(ctx, addr, ready.ForPath(l.cfg.ReadyPath), ready.Options{Timeout: l.cfg.ReadyTimeout}, func(err error) {
		l.log.WithError(err).Debug("app not accepting connections yet")
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", domain.ErrNotReady, err)
	}
	if !domain.IsAllInterfaces(l.cfg.BindAddress) {
		return nil
	}

	hosts, err := l.externalHosts()
	if err != nil {
		l.log.WithError(err).Warn("cannot list interfaces, skipping bind check")
		return nil
	}
	if err := ready.ProbeBind(ctx, l.cfg.Port, hosts).Err(); err != nil {
		if errors.Is(err, ready.ErrLoopbackOnly) {
			return fmt.Errorf("%w: %w", domain.ErrLoopbackBind, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrNotReady, err)
	}
	return nil
}
