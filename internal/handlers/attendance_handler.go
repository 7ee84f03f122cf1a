package handlers

import (
	"bytes"

	"camp-ops-backend/internal/middleware"
	"camp-ops-backend/internal/services"
	"camp-ops-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CheckInRequest struct {
	RegistrationID string `json:"registration_id" validate:"required,uuid"`
	ChildName      string `json:"child_name" validate:"required"`
	Date           string `json:"date" validate:"omitempty,calendar_date"`
}

type CheckOutRequest struct {
	RegistrationID string `json:"registration_id" validate:"required,uuid"`
	ChildName      string `json:"child_name" validate:"required"`
	AttendanceID   string `json:"attendance_id" validate:"omitempty,uuid"`
	Date           string `json:"date" validate:"omitempty,calendar_date"`
	Note           string `json:"note" validate:"max=500"`
}

type ScanRequest struct {
	Token string `json:"token" validate:"required"`
	Date  string `json:"date" validate:"omitempty,calendar_date"`
}

func (h *Handler) dateParam(date string) string {
	if date == "" {
		return h.console.Today()
	}
	return date
}

// GetAttendance lists the children expected on ?date= (default today) with their
// check-in state. Store failures degrade the list instead of failing the request.
func (h *Handler) GetAttendance(c *fiber.Ctx) error {
	date := h.dateParam(c.Query("date"))
	board, err := h.console.Board(c.UserContext(), date)
	if board == nil {
		return h.respondError(c, err)
	}
	entries := board.Expected()
	meta := &utils.Meta{Count: len(entries), Date: date, Degraded: err != nil}
	return utils.SuccessWithMeta(c, entries, meta, "Attendance retrieved")
}

func (h *Handler) ReloadAttendance(c *fiber.Ctx) error {
	date := h.dateParam(c.Query("date"))
	board, err := h.console.Reload(c.UserContext(), date)
	if board == nil {
		return h.respondError(c, err)
	}
	entries := board.Expected()
	meta := &utils.Meta{Count: len(entries), Date: date, Degraded: err != nil}
	return utils.SuccessWithMeta(c, entries, meta, "Attendance reloaded")
}

// CheckIn marks one child present
// @Summary Check a child in
// @Tags Attendance
// @Accept json
// @Produce json
// @Param request body CheckInRequest true "Child"
// @Success 201 {object} utils.Response
// @Failure 409 {object} utils.Response
// @Router /attendance/checkin [post]
func (h *Handler) CheckIn(c *fiber.Ctx) error {
	var req CheckInRequest
	if err := middleware.ParseBody(c, &req); err != nil {
		return err
	}

	result, err := h.console.CheckIn(c.UserContext(), h.dateParam(req.Date), uuid.MustParse(req.RegistrationID), req.ChildName, middleware.GetUserIDFromContext(c))
	if err != nil {
		return h.respondError(c, err)
	}

	message := req.ChildName + " checked in"
	if result.FollowUpSent {
		message += "; finance follow-up sent"
	}
	return utils.Success(c, result, message, fiber.StatusCreated)
}

func (h *Handler) CheckOut(c *fiber.Ctx) error {
	var req CheckOutRequest
	if err := middleware.ParseBody(c, &req); err != nil {
		return err
	}
	if middleware.GetUserIDFromContext(c) == "" {
		return utils.ErrorWithCode(c, fiber.StatusUnauthorized, string(services.ErrAuthRequired), "Authentication required")
	}

	rec, err := h.console.CheckOut(c.UserContext(), h.dateParam(req.Date), uuid.MustParse(req.RegistrationID), req.ChildName, req.AttendanceID, req.Note)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.Success(c, rec, req.ChildName+" checked out")
}

// ScanToken checks in every child on a scanned registration card
// @Summary Bulk check-in by token
// @Tags Attendance
// @Accept json
// @Produce json
// @Param request body ScanRequest true "Scanned token"
// @Success 200 {object} utils.Response
// @Failure 400 {object} utils.Response
// @Router /attendance/scan [post]
func (h *Handler) ScanToken(c *fiber.Ctx) error {
	var req ScanRequest
	if err := middleware.ParseBody(c, &req); err != nil {
		return err
	}

	summary, err := h.scanner.CheckInByToken(c.UserContext(), req.Token, middleware.GetUserIDFromContext(c), h.dateParam(req.Date))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.Success(c, summary, summary.Message)
}

func (h *Handler) ExportAttendance(c *fiber.Ctx) error {
	date := h.dateParam(c.Query("date"))
	board, err := h.console.Board(c.UserContext(), date)
	if board == nil {
		return h.respondError(c, err)
	}

	var buf bytes.Buffer
	if err := services.WriteAttendanceCSV(&buf, board.Expected()); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="attendance-`+date+`.csv"`)
	return c.Send(buf.Bytes())
}
