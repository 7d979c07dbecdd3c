package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/melih/lighthouse-deploy/internal/adapters/builder"
	"github.com/melih/lighthouse-deploy/internal/adapters/docker"
	"github.com/melih/lighthouse-deploy/internal/adapters/gitsource"
	"github.com/melih/lighthouse-deploy/internal/adapters/http"
	"github.com/melih/lighthouse-deploy/internal/config"
	"github.com/melih/lighthouse-deploy/internal/logging"
	"github.com/melih/lighthouse-deploy/internal/telemetry"
)

func main() {
	var cfg config.Server
	if err := config.ParseEnv(&cfg); err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "lighthouse-api")
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.WithError(err).Warn("trace flush failed")
		}
	}()

	recipe, err := config.LoadRecipe(cfg.RecipeFile)
	if err != nil {
		log.Fatalf("Failed to load recipe: %v", err)
	}

	// 1. Initialize Adapters (Infrastructure)
	cli, err := docker.Client()
	if err != nil {
		log.Fatalf("Failed to initialize Docker client: %v", err)
	}
	dockerAdapter := docker.NewAdapter(cli, log.WithField("component", "docker"))
	builderAdapter := builder.NewBuilderAdapter(cli,
		gitsource.NewFetcher(log.WithField("component", "git")),
		builder.WithLogger(log.WithField("component", "builder")),
	)
	waiter := docker.NewWaiter(dockerAdapter, "127.0.0.1", cfg.ReadyPath, cfg.ReadyTimeout, log.WithField("component", "ready"))

	// 2. Initialize HTTP Handlers (Interface Adapters)
	containerHandler := http.NewContainerHandler(dockerAdapter, builderAdapter, waiter, recipe, log.WithField("component", "api"))
	recipeHandler := http.NewRecipeHandler(recipe, builderAdapter)
	proxyHandler := http.NewProxyHandler(dockerAdapter, cfg.ProxyDomain)

	// 3. Setup Framework (Fiber) and routes
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	http.Register(app, containerHandler, recipeHandler, proxyHandler)

	go func() {
		<-ctx.Done()
		log.Info("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("Server shutdown failed")
		}
	}()

	// 4. Start Server
	log.WithField("addr", cfg.ListenAddr).Info("Server starting")
	if err := app.Listen(cfg.ListenAddr); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
