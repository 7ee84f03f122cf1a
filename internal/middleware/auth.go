package middleware

import (
	"camp-ops-backend/internal/config"
	"camp-ops-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
)

func JWTMiddleware(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(cfg.JWTSecret),
		ContextKey:   "user",
		ErrorHandler: jwtError,
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals("user").(*jwt.Token)
			if !ok {
				return jwtError(c, nil)
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return jwtError(c, nil)
			}
			userID, _ := claims["user_id"].(string)
			role, _ := claims["role"].(string)
			if userID == "" {
				return jwtError(c, nil)
			}
			c.Locals("user_id", userID)
			c.Locals("user_role", role)
			return c.Next()
		},
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	return utils.ErrorWithCode(c, fiber.StatusUnauthorized, "AUTH_REQUIRED", "Unauthorized")
}

// GetUserIDFromContext returns the authenticated user id, or "" when the request is
// anonymous.
func GetUserIDFromContext(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	return userID
}

func GetUserRoleFromContext(c *fiber.Ctx) string {
	role, _ := c.Locals("user_role").(string)
	return role
}
