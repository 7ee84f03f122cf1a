package handlers

import (
	"errors"

	"camp-ops-backend/internal/config"
	"camp-ops-backend/internal/middleware"
	"camp-ops-backend/internal/services"
	"camp-ops-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	authSvc         *services.AuthService
	registrationSvc *services.RegistrationService
	console         *services.AttendanceConsole
	scanner         *services.TokenCheckInService
	notifier        *services.ReconciliationNotifier
	cfg             *config.Config
	log             logrus.FieldLogger
}

func NewHandler(
	authSvc *services.AuthService,
	registrationSvc *services.RegistrationService,
	console *services.AttendanceConsole,
	scanner *services.TokenCheckInService,
	notifier *services.ReconciliationNotifier,
	cfg *config.Config,
	log logrus.FieldLogger,
) *Handler {
	return &Handler{
		authSvc:         authSvc,
		registrationSvc: registrationSvc,
		console:         console,
		scanner:         scanner,
		notifier:        notifier,
		cfg:             cfg,
		log:             log,
	}
}

func (h *Handler) RegisterRoutes(router fiber.Router) {
	// Public routes
	router.Post("/auth/login", h.Login)

	// Protected routes (JWT required)
	protected := router.Group("", middleware.JWTMiddleware(h.cfg))
	{
		protected.Get("/profile", h.GetProfile)

		registrations := protected.Group("/registrations", middleware.StaffOrAbove())
		{
			registrations.Post("/", h.CreateRegistration)
			registrations.Get("/", h.SearchRegistrations)
			registrations.Get("/number/:number", h.GetRegistrationByNumber)
			registrations.Get("/:id", h.GetRegistration)
			registrations.Get("/:id/token", h.GetRegistrationToken)
			registrations.Get("/:id/qr.png", h.GetRegistrationQRCode)
			registrations.Post("/:id/notes", h.AddAdminNote)
			registrations.Patch("/:id/payment", h.UpdatePaymentStatus)
			registrations.Patch("/:id/status", middleware.AdminOnly(), h.UpdateRegistrationStatus)
			registrations.Delete("/:id", middleware.AdminOnly(), h.DeleteRegistration)
			registrations.Post("/delete", middleware.AdminOnly(), h.DeleteRegistrations)
		}

		attendance := protected.Group("/attendance", middleware.StaffOrAbove())
		{
			attendance.Get("/", h.GetAttendance)
			attendance.Post("/reload", h.ReloadAttendance)
			attendance.Post("/checkin", h.CheckIn)
			attendance.Post("/checkout", h.CheckOut)
			attendance.Post("/scan", h.ScanToken)
			attendance.Get("/export.csv", h.ExportAttendance)
		}

		items := protected.Group("/action-items", middleware.FinanceOrAdmin())
		{
			items.Get("/", h.ListActionItems)
			items.Patch("/:id/complete", h.CompleteActionItem)
		}

		admin := protected.Group("/admin", middleware.AdminOnly())
		{
			admin.Post("/users", h.CreateUser)
		}
	}
}

// statusFor maps service error codes to HTTP statuses.
func statusFor(code services.ErrorCode) int {
	switch code {
	case services.ErrAuthRequired:
		return fiber.StatusUnauthorized
	case services.ErrInvalidToken, services.ErrInvalidInput:
		return fiber.StatusBadRequest
	case services.ErrNotFound:
		return fiber.StatusNotFound
	case services.ErrAlreadyCheckedIn, services.ErrInvalidTransition:
		return fiber.StatusConflict
	case services.ErrStoreUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError renders a service error; anything else goes to the ErrorHandler.
func (h *Handler) respondError(c *fiber.Ctx, err error) error {
	var serr *services.ServiceError
	if !errors.As(err, &serr) {
		return err
	}
	status := statusFor(serr.Code)
	if status >= fiber.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return utils.ErrorWithCode(c, status, string(serr.Code), serr.Message)
}

// ErrorHandler renders errors that escaped the handlers.
func ErrorHandler(log logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			code = ferr.Code
			message = ferr.Message
		}

		if code >= fiber.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
			}).Error("unhandled error")
		}
		return utils.Error(c, message, code)
	}
}
