package utils

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// APIResponse is the envelope shared by every MindCare endpoint. Error responses
// also carry a machine readable Code derived from the HTTP status.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// SendSuccess sends a 200 envelope.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a success payload using the provided HTTP status code.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if message == "" {
		message = "success"
	}
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// SendError sends an error envelope. An empty message falls back to the status text.
func SendError(c *fiber.Ctx, status int, message string) error {
	return SendErrorWithDetails(c, status, message, nil)
}

// SendErrorWithDetails sends an error response carrying per-field details.
func SendErrorWithDetails(c *fiber.Ctx, status int, message string, details interface{}) error {
	code := StatusCode(status)
	if message == "" {
		message = strings.ReplaceAll(code, "_", " ")
	}

	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: message,
		Code:    code,
		Details: details,
	})
}

// StatusCode renders an HTTP status as a snake case code such as "too_many_requests".
func StatusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	text = strings.ToLower(strings.ReplaceAll(text, "-", " "))
	return strings.Join(strings.Fields(text), "_")
}
