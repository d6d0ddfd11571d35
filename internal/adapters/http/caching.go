package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Handlers that set their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.Get(fiber.HeaderCacheControl); existing != "" {
			return err
		}
		if existing := string(c.Response().Header.Peek(fiber.HeaderCacheControl)); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics":
			ttl = "no-cache"

		case path == "/v1/grid":
			ttl = "public, max-age=3600" // the grid only changes on restart

		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600"

		case strings.HasPrefix(path, "/v1/sessions"), strings.HasPrefix(path, "/api/"):
			ttl = "no-store" // routes change with every report
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
