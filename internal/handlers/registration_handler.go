package handlers

import (
	"camp-ops-backend/internal/middleware"
	"camp-ops-backend/internal/services"
	"camp-ops-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type AdminNoteRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

type RegistrationStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active cancelled"`
}

type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid"`
}

// CreateRegistration registers one guardian's children
// @Summary Create registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param request body services.CreateRegistrationRequest true "Registration"
// @Success 201 {object} utils.Response
// @Router /registrations [post]
func (h *Handler) CreateRegistration(c *fiber.Ctx) error {
	var req services.CreateRegistrationRequest
	if err := middleware.ParseBody(c, &req); err != nil {
		return err
	}

	reg, err := h.registrationSvc.Create(c.UserContext(), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.Success(c, reg, "Registration created", fiber.StatusCreated)
}

// SearchRegistrations matches ?q= against number, guardian and child names. A store
// failure returns an empty, degraded list.
func (h *Handler) SearchRegistrations(c *fiber.Ctx) error {
	regs, err := h.registrationSvc.Search(c.UserContext(), c.Query("q"))
	meta := &utils.Meta{Count: len(regs), Degraded: err != nil}
	return utils.SuccessWithMeta(c, regs, meta, "Registrations retrieved")
}

func (h *Handler) GetRegistration(c *fiber.Ctx) error {
	reg, err := h.registrationSvc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.Success(c, reg, "Registration retrieved")
}

func (h *Handler) GetRegistrationByNumber(c *fiber.Ctx) error {
	reg, err := h.registrationSvc.GetByNumber(c.UserContext(), c.Params("number"))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.Success(c, reg, "Registration retrieved")
}

// UpdatePaymentStatus is the payment quick-update
// @Summary Update payment status
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param request body services.PaymentUpdateRequest true "Payment"
// @Success 200 {object} utils.Response
// @Router /registrations/{id}/payment [patch]
func (h *Handler) UpdatePaymentStatus(c *fiber.Ctx) error {
	var req services.PaymentUpdateRequest
	if err := middleware.ParseBody(c, &req); err != nil {
		return err
	}

	result, err := h.registrationSvc.UpdatePaymentStatus(c.UserContext(), c.Params("id"), req, middleware.GetUserIDFromContext(c))
	if err != nil {
		return h.respondError(c, err)
	}

	message := "Payment status updated"
	if result.FollowUpsResolved > 0 {
		message = "Payment status updated; finance follow-ups resolved"
	}
	return utils.Success(c, result, message)
}

func (h *Handler) AddAdminNote(c *fiber.Ctx) error {
	var req AdminNoteRequest
	if err := middleware.ParseBody(c, &req); err != nil {
		return err
	}

	reg, err := h.registrationSvc.AddAdminNote(c.UserContext(), c.Params("id"), req.Text, middleware.GetUserIDFromContext(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.Success(c, reg, "Note added", fiber.StatusCreated)
}

func (h *Handler) UpdateRegistrationStatus(c *fiber.Ctx) error {
	var req RegistrationStatusRequest
	if err := middleware.ParseBody(c, &req); err != nil {
		return err
	}

	reg, err := h.registrationSvc.SetLifecycleStatus(c.UserContext(), c.Params("id"), req.Status, middleware.GetUserIDFromContext(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.Success(c, reg, "Registration status updated")
}

func (h *Handler) DeleteRegistration(c *fiber.Ctx) error {
	if err := h.registrationSvc.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.respondError(c, err)
	}
	return utils.Success(c, nil, "Registration deleted")
}

func (h *Handler) DeleteRegistrations(c *fiber.Ctx) error {
	var req BulkDeleteRequest
	if err := middleware.ParseBody(c, &req); err != nil {
		return err
	}

	n, err := h.registrationSvc.DeleteMany(c.UserContext(), req.IDs)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"deleted": n}, "Registrations deleted")
}

func (h *Handler) GetRegistrationToken(c *fiber.Ctx) error {
	tok, err := h.registrationSvc.IssueToken(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.Success(c, tok, "Token issued")
}

func (h *Handler) GetRegistrationQRCode(c *fiber.Ctx) error {
	png, err := h.registrationSvc.QRCode(c.UserContext(), c.Params("id"), c.QueryInt("size", 0))
	if err != nil {
		return h.respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(png)
}
