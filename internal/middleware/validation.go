package middleware

import (
	"camp-ops-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// ParseBody decodes the request body into dest and validates it. Failures come back
// as 400 *fiber.Error values for the app's ErrorHandler to render.
func ParseBody(c *fiber.Ctx, dest interface{}) error {
	if err := c.BodyParser(dest); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(dest); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}
