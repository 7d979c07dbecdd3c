package launcher

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/melih/lighthouse-deploy/internal/logging"
)

// Main loads the configuration, runs the app given by args and returns the
// exit code the container should exit with.
func Main(ctx context.Context, args []string) int {
	if len(args) > 0 && args[0] == "--" {
		args = args[1:]
	}

	cfg, err := LoadConfig()
	if err != nil {
		logrus.WithError(err).Error("invalid launcher configuration")
		return 2
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		logrus.WithError(err).Error("invalid logging configuration")
		return 2
	}
	log := logger.WithField("component", "launcher")

	l, err := New(cfg, args, WithLogger(log))
	if err != nil {
		log.WithError(err).Error("cannot build the app command")
		return 2
	}

	code, err := l.Run(ctx)
	if err != nil {
		log.WithError(err).Error("app did not serve")
	}
	return code
}
