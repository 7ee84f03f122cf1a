package utils

import "github.com/gofiber/fiber/v2"

// Response is the JSON envelope of every API reply.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type Meta struct {
	Count    int    `json:"count"`
	Date     string `json:"date,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

func Success(c *fiber.Ctx, data interface{}, message string, statusCode ...int) error {
	code := fiber.StatusOK
	if len(statusCode) > 0 {
		code = statusCode[0]
	}
	return c.Status(code).JSON(Response{Success: true, Message: message, Data: data})
}

// SuccessWithMeta is used by list endpoints. Degraded marks a fail-soft read that
// returned partial or empty data because a store was unavailable.
func SuccessWithMeta(c *fiber.Ctx, data interface{}, meta *Meta, message string) error {
	return c.Status(fiber.StatusOK).JSON(Response{Success: true, Message: message, Data: data, Meta: meta})
}

func Error(c *fiber.Ctx, message string, statusCode ...int) error {
	code := fiber.StatusBadRequest
	if len(statusCode) > 0 {
		code = statusCode[0]
	}
	return c.Status(code).JSON(Response{Success: false, Error: message})
}

// ErrorWithCode adds a machine-readable error code to the envelope.
func ErrorWithCode(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(Response{Success: false, Error: message, Code: code})
}
