package http

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	loggerKey    ctxKey = "logger"
)

// RequestIDLogMiddleware stores a request-scoped *slog.Logger in the user
// context, carrying the Fiber request ID and the session id when the route
// names one. The route service logs through it via LoggerFromCtx.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ridStr, _ := c.Locals("requestid").(string)
		if ridStr == "" {
			return c.Next()
		}

		reqLogger := slog.Default().With("request_id", ridStr)

		ctx := context.WithValue(c.UserContext(), requestIDKey, ridStr)
		ctx = context.WithValue(ctx, loggerKey, reqLogger)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// withSessionLogger adds the session id to the request logger. Route params
// are only known once a route matched, so handlers call this themselves.
func withSessionLogger(c *fiber.Ctx, id string) {
	ctx := c.UserContext()
	ctx = context.WithValue(ctx, loggerKey, LoggerFromCtx(ctx).With("session_id", id))
	c.SetUserContext(ctx)
}

// LoggerFromCtx extracts the per-request slog.Logger from a context.
// Falls back to the default logger if none is set.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
