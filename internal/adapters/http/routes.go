package http

import "github.com/gofiber/fiber/v2"

// Register mounts the control plane routes. The proxy runs first so that
// app subdomains never reach the API.
func Register(app *fiber.App, containers *ContainerHandler, recipes *RecipeHandler, proxy *ProxyHandler) {
	if proxy != nil {
		app.Use(proxy.ProxyRequest)
	}
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/api/v1")

	r := v1.Group("/recipe")
	r.Get("/dockerfile", recipes.Dockerfile)
	r.Post("/lint", recipes.Lint)
	v1.Post("/builds", recipes.Build)

	cs := v1.Group("/containers")
	cs.Get("/", containers.ListContainers)
	cs.Post("/", containers.StartContainer)
	cs.Delete("/:id", containers.StopContainer)
	cs.Get("/:id/logs", containers.GetContainerLogs)
}
