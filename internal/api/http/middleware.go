package httpapi

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/MiX1964/wforecast/internal/weather"
)

// RequestID propagates X-Request-ID (generating a uuid when absent) to the
// response and to the handler's user context.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, id)
		c.Locals("request_id", id)
		c.SetUserContext(weather.WithRequestID(c.UserContext(), id))
		return c.Next()
	}
}

// NewErrorHandler renders every error as {"error":true,"message":...}.
// Unclassified errors are logged and reported without their internals.
func NewErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				"request_id", weather.RequestID(c.UserContext()),
				"method", c.Method(),
				"path", c.Path(),
				"status", code,
				"error", err,
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": message,
		})
	}
}

// toHTTPError maps domain errors onto status codes.
func toHTTPError(err error, fallback string) error {
	switch {
	case errors.Is(err, weather.ErrInvalidQuery):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, weather.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, weather.ErrSourceUnavailable):
		return fiber.NewError(fiber.StatusBadGateway, fallback)
	default:
		return err
	}
}
