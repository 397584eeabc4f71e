package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/circuitbreaker"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/logger"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return fiber.StatusServiceUnavailable
	}

	switch apperr.KindOf(err) {
	case "validation":
		return fiber.StatusBadRequest
	case "not_found":
		return fiber.StatusNotFound
	case "provider":
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// fail logs err and writes it with the status its kind maps to. Internal
// errors are reported with msg only.
func fail(c *fiber.Ctx, err error, msg string) error {
	status := statusFor(err)
	logger.Error(msg,
		zap.String("path", c.Path()),
		zap.String("error_kind", apperr.KindOf(err)),
		zap.Error(err),
	)

	body := fiber.Map{"error": msg}
	if status != fiber.StatusInternalServerError {
		body["detail"] = err.Error()
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
