package http

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// probePaths are polled by orchestrators and scrapers; successful hits log at
// debug so they do not drown out session traffic.
var probePaths = map[string]bool{
	"/v1/health": true,
	"/v1/ready":  true,
	"/metrics":   true,
}

// AccessLogMiddleware logs HTTP requests with structured slog output.
func AccessLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()

		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes_out", len(c.Response().Body())),
		}
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			attrs = append(attrs, slog.String("request_id", rid))
		}
		if id := c.Params("id"); id != "" {
			attrs = append(attrs, slog.String("session_id", id))
		}

		level := slog.LevelInfo
		if probePaths[path] {
			level = slog.LevelDebug
		}
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}

		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
			level = slog.LevelError
		}

		slog.LogAttrs(c.UserContext(), level, fmt.Sprintf("%s %s", method, path), attrs...)

		return err
	}
}
