package handlers

import (
	"camp-ops-backend/internal/middleware"
	"camp-ops-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin finance staff"`
}

// Login handles user authentication
// @Summary User login
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} utils.Response
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Router /auth/login [post]
func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := middleware.ParseBody(c, &req); err != nil {
		return err
	}

	loginResp, err := h.authSvc.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.respondError(c, err)
	}

	return utils.Success(c, loginResp, "Login successful")
}

// CreateUser creates a console account (Admin only)
// @Summary Create user
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body CreateUserRequest true "User data"
// @Success 201 {object} utils.Response
// @Failure 400 {object} utils.Response
// @Router /admin/users [post]
func (h *Handler) CreateUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := middleware.ParseBody(c, &req); err != nil {
		return err
	}

	user, err := h.authSvc.CreateUser(c.UserContext(), req.Email, req.Password, req.Role)
	if err != nil {
		return h.respondError(c, err)
	}

	return utils.Success(c, user, "User created successfully", fiber.StatusCreated)
}

// GetProfile returns current user profile
// @Summary Get user profile
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Router /profile [get]
func (h *Handler) GetProfile(c *fiber.Ctx) error {
	user, err := h.authSvc.GetUserProfile(c.UserContext(), middleware.GetUserIDFromContext(c))
	if err != nil {
		return h.respondError(c, err)
	}

	return utils.Success(c, user, "Profile retrieved successfully")
}
