package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSourceMissing),
		errors.Is(err, domain.ErrManifestMissing):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidRequirement),
		errors.Is(err, domain.ErrDependencyConflict),
		errors.Is(err, domain.ErrPortMismatch),
		errors.Is(err, domain.ErrLoopbackBind),
		errors.Is(err, domain.ErrInvalidRecipe),
		errors.Is(err, domain.ErrBuildFailed):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrNotReady):
		return fiber.StatusGatewayTimeout
	}
	return fiber.StatusInternalServerError
}

func errorResponse(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}
