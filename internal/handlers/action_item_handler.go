package handlers

import (
	"camp-ops-backend/internal/middleware"
	"camp-ops-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type CompleteActionItemRequest struct {
	Note string `json:"note" validate:"max=1000"`
}

// ListActionItems lists finance follow-ups, filtered by ?status= and ?registration_id=.
func (h *Handler) ListActionItems(c *fiber.Ctx) error {
	items, err := h.notifier.ListItems(c.UserContext(), c.Query("status"), c.Query("registration_id"))
	if items == nil {
		return h.respondError(c, err)
	}
	meta := &utils.Meta{Count: len(items), Degraded: err != nil}
	return utils.SuccessWithMeta(c, items, meta, "Action items retrieved")
}

func (h *Handler) CompleteActionItem(c *fiber.Ctx) error {
	var req CompleteActionItemRequest
	if len(c.Body()) > 0 {
		if err := middleware.ParseBody(c, &req); err != nil {
			return err
		}
	}

	item, err := h.notifier.CompleteItem(c.UserContext(), c.Params("id"), middleware.GetUserIDFromContext(c), req.Note)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.Success(c, item, "Action item completed")
}
