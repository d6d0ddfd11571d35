package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/safespot/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, 409, "conflict", msg)
}

// errUnprocessable returns a 422 error.
func errUnprocessable(c *fiber.Ctx, msg string) error {
	return newError(c, 422, "unprocessable", msg)
}

// errUnavailable returns a 503 error with the given code.
func errUnavailable(c *fiber.Ctx, code, msg string) error {
	return newError(c, 503, code, msg)
}

// errFromDomain maps a service error to its HTTP response.
func errFromDomain(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidCoordinate), errors.Is(err, domain.ErrNoSafeZones):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrSessionExists):
		return errConflict(c, err.Error())
	case errors.Is(err, domain.ErrGeocoding):
		return errUnprocessable(c, err.Error())
	case errors.Is(err, domain.ErrRecomputationTimeout):
		return errUnavailable(c, "recompute_timeout", err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errUnavailable(c, "timeout", "request timed out waiting for route")
	default:
		LoggerFromCtx(c.UserContext()).Error("unhandled service error", "error", err)
		return errInternal(c, "internal error")
	}
}
