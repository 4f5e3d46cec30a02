package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"formvault/internal/http/middleware"
	"formvault/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking
// internal errors.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError maps service sentinel errors to HTTP responses. Anything
// unrecognized is a 500 with no internals leaked.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
	case errors.Is(err, service.ErrVersionNotFound):
		return writeError(c, fiber.StatusNotFound, "VERSION_NOT_FOUND", "version not found")
	case errors.Is(err, service.ErrOrderNotFound):
		return writeError(c, fiber.StatusNotFound, "ORDER_NOT_FOUND", "order not found")
	case errors.Is(err, service.ErrEventNotFound):
		return writeError(c, fiber.StatusNotFound, "EVENT_NOT_FOUND", "event not found")
	case errors.Is(err, service.ErrOrderAlreadyPaid):
		return writeError(c, fiber.StatusConflict, "ALREADY_PAID", "order is already paid")
	case errors.Is(err, service.ErrIDRequired),
		errors.Is(err, service.ErrOwnerRequired),
		errors.Is(err, service.ErrTemplateRequired),
		errors.Is(err, service.ErrStateRequired),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidKeepCount),
		errors.Is(err, service.ErrEmptyOrder):
		return writeError(c, fiber.StatusBadRequest, "INVALID_REQUEST", err.Error())
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error
// responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
