package http

import (
	"bytes"

	"github.com/gofiber/fiber/v2"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
	"github.com/melih/lighthouse-deploy/internal/core/ports"
	"github.com/melih/lighthouse-deploy/internal/recipe"
)

// RecipeHandler serves the build recipe and lints user-supplied ones.
type RecipeHandler struct {
	recipe  domain.Recipe
	builder ports.BuilderService
}

func NewRecipeHandler(r domain.Recipe, builder ports.BuilderService) *RecipeHandler {
	return &RecipeHandler{recipe: r, builder: builder}
}

// Dockerfile renders the configured recipe. A ?port= query overrides the port.
func (h *RecipeHandler) Dockerfile(c *fiber.Ctx) error {
	r := h.recipe
	if port := c.QueryInt("port"); port != 0 {
		r.Port = port
	}
	out, err := recipe.Render(r)
	if err != nil {
		return errorResponse(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Send(out)
}

// Lint checks the Dockerfile in the request body.
func (h *RecipeHandler) Lint(c *fiber.Ctx) error {
	body := c.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Dockerfile body is required",
		})
	}
	p, err := recipe.Parse(bytes.NewReader(body))
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	violations := recipe.Lint(p, recipe.OptionsFor(h.recipe))
	if violations == nil {
		violations = []recipe.Violation{}
	}
	status := fiber.StatusOK
	if recipe.HasErrors(violations) {
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(fiber.Map{
		"valid":      status == fiber.StatusOK,
		"violations": violations,
	})
}

// Build builds an image without starting it.
func (h *RecipeHandler) Build(c *fiber.Ctx) error {
	var req domain.BuildRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Tag == "" {
		req.Tag = imageTag("", req.RepoURL, req.SourceDir)
	}
	if isZero(req.Recipe) {
		req.Recipe = h.recipe
	}

	res, err := h.builder.BuildImage(c.UserContext(), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func isZero(r domain.Recipe) bool {
	return r.BaseImage == "" && r.WorkDir == "" && r.Manifest == "" && r.Port == 0 &&
		r.BindAddress == "" && r.Mode == "" && r.Launch.Executable == "" &&
		len(r.Entrypoint) == 0 && len(r.InstallArgs) == 0 && len(r.Excludes) == 0 &&
		len(r.Labels) == 0 && r.HealthCheck == nil
}
