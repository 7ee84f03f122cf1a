package middleware

import (
	"camp-ops-backend/internal/models"
	"camp-ops-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// RequireRoles lets the request through only if the JWT role is one of roles.
func RequireRoles(roles ...string) fiber.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *fiber.Ctx) error {
		if GetUserIDFromContext(c) == "" {
			return utils.ErrorWithCode(c, fiber.StatusUnauthorized, "AUTH_REQUIRED", "Authentication required")
		}
		if !allowed[GetUserRoleFromContext(c)] {
			return utils.Error(c, "Access denied", fiber.StatusForbidden)
		}
		return c.Next()
	}
}

func AdminOnly() fiber.Handler {
	return RequireRoles(models.RoleAdmin)
}

// FinanceOrAdmin guards accounting screens.
func FinanceOrAdmin() fiber.Handler {
	return RequireRoles(models.RoleAdmin, models.RoleFinance)
}

func StaffOrAbove() fiber.Handler {
	return RequireRoles(models.RoleAdmin, models.RoleFinance, models.RoleStaff)
}
