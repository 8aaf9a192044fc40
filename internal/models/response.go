package models

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Envelope is the body of every API response, success or failure.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
}

// RespondWithSuccess writes a success envelope. data may be nil.
func RespondWithSuccess(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Envelope{
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

// RespondWithError writes an error envelope. Causes wrapped inside an AppError are not exposed.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	message := "Internal server error"

	var appErr *AppError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &appErr):
		message = appErr.Message
	case errors.As(err, &fiberErr):
		message = fiberErr.Message
	}

	return c.Status(status).JSON(Envelope{
		StatusCode: status,
		Message:    message,
	})
}
