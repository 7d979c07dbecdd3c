package launcher

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

// newHealthApp serves liveness, readiness and metrics for the instance.
func newHealthApp(t *Tracker, gatherer prometheus.Gatherer) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		state, code, restarts := t.Snapshot()
		status := fiber.StatusOK
		if state != domain.StateLaunched && state != domain.StateServing {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"state":          state,
			"last_exit_code": code,
			"restarts":       restarts,
		})
	})
	app.Get("/readyz", func(c *fiber.Ctx) error {
		state := t.State()
		if state != domain.StateServing {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"state": state})
		}
		return c.JSON(fiber.Map{"state": state})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return app
}
