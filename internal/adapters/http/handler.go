package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
	"github.com/melih/lighthouse-deploy/internal/core/ports"
)

type ContainerHandler struct {
	service ports.ContainerService
	builder ports.BuilderService
	waiter  ports.ReadinessWaiter
	recipe  domain.Recipe
	log     logrus.FieldLogger
}

func NewContainerHandler(service ports.ContainerService, builder ports.BuilderService, waiter ports.ReadinessWaiter, recipe domain.Recipe, log logrus.FieldLogger) *ContainerHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ContainerHandler{service: service, builder: builder, waiter: waiter, recipe: recipe, log: log}
}

func (h *ContainerHandler) ListContainers(c *fiber.Ctx) error {
	containers, err := h.service.ListContainers(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(containers)
}

type StartContainerRequest struct {
	Image         string            `json:"image"`
	RepoURL       string            `json:"repo_url"`
	Ref           string            `json:"ref"`
	SourceDir     string            `json:"source_dir"`
	Name          string            `json:"name"`
	Port          int               `json:"port"` // zero uses the port the image exposes
	HostPort      int               `json:"host_port"`
	Env           map[string]string `json:"env"`
	RestartPolicy string            `json:"restart_policy"`
	// Wait blocks the response until the instance accepts connections.
	Wait *bool `json:"wait"`
}

// StartContainer runs an image, building it first when a source is given.
func (h *ContainerHandler) StartContainer(c *fiber.Ctx) error {
	var req StartContainerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	ctx := c.UserContext()

	var build *domain.BuildResult
	if req.RepoURL != "" || req.SourceDir != "" {
		if req.Image == "" {
			req.Image = imageTag(req.Name, req.RepoURL, req.SourceDir)
		}
		r := h.recipe
		if req.Port != 0 {
			r.Port = req.Port
		}
		res, err := h.builder.BuildImage(ctx, domain.BuildRequest{
			RepoURL:   req.RepoURL,
			Ref:       req.Ref,
			SourceDir: req.SourceDir,
			Tag:       req.Image,
			Recipe:    r,
		})
		if err != nil {
			return errorResponse(c, fmt.Errorf("build failed: %w", err))
		}
		build = res
	} else if req.Image == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Image name or Repo URL is required",
		})
	}

	inst, err := h.service.StartContainer(ctx, domain.StartRequest{
		Image:         req.Image,
		Name:          req.Name,
		Port:          req.Port,
		HostPort:      req.HostPort,
		Env:           req.Env,
		RestartPolicy: req.RestartPolicy,
	})
	if err != nil {
		return errorResponse(c, err)
	}

	if req.Wait == nil || *req.Wait {
		if err := h.waiter.WaitReady(ctx, inst); err != nil {
			h.log.WithError(err).WithField("container", inst.ID).Warn("instance did not become ready")
			return c.Status(statusFor(err)).JSON(fiber.Map{
				"error":    err.Error(),
				"instance": inst,
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"instance": inst,
		"build":    build,
	})
}

// StopContainer stops and removes an instance.
func (h *ContainerHandler) StopContainer(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Container ID is required",
		})
	}

	if err := h.service.StopContainer(c.UserContext(), id); err != nil {
		return errorResponse(c, err)
	}
	if c.QueryBool("keep") {
		return c.SendStatus(fiber.StatusOK)
	}
	if err := h.service.RemoveContainer(c.UserContext(), id); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *ContainerHandler) GetContainerLogs(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Container ID is required",
		})
	}

	logs, err := h.service.GetContainerLogs(c.UserContext(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	// SendStream closes logs once the body is written.
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendStream(logs)
}

// imageTag derives a local tag from the app name or its source location.
func imageTag(name, repoURL, sourceDir string) string {
	base := name
	if base == "" {
		src := strings.TrimSuffix(strings.TrimRight(repoURL+sourceDir, "/"), ".git")
		if i := strings.LastIndexAny(src, "/:\\"); i >= 0 {
			src = src[i+1:]
		}
		base = src
	}
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	tag := strings.Trim(b.String(), "-._")
	if tag == "" {
		tag = "app"
	}
	return "lighthouse/" + tag + ":latest"
}
