package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"shopfront/internal/errs"
)

var bodyValidator = validator.New()

// parseBody decodes JSON into dst and runs its validate tags, converting
// failures into the field-level taxonomy the error handler knows.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return errs.Invalid("body", "malformed JSON")
	}
	if err := bodyValidator.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := map[string]string{}
			for _, fe := range verrs {
				fields[fe.Field()] = "failed on " + fe.Tag()
			}
			return errs.InvalidFields(fields)
		}
		return errs.Invalid("body", err.Error())
	}
	return nil
}
