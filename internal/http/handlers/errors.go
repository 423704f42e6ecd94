package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"shopfront/internal/errs"
	applog "shopfront/internal/log"
)

// ErrorHandler turns domain errors into JSON client errors and everything
// else into a generic 500 with the detail logged, never exposed.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var ve *errs.ValidationError
	var nf *errs.NotFoundError
	var cf *errs.ConflictError
	var fe *fiber.Error

	switch {
	case errors.As(err, &ve):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": ve.Fields,
		})
	case errors.As(err, &nf):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": nf.Error()})
	case errors.As(err, &cf):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": cf.Error()})
	case errors.As(err, &fe):
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	default:
		applog.Error(c, "server.error", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
}
