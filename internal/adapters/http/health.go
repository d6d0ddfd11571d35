package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/safespot/internal/pkg/metrics"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		resp := fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": "dev",
		}
		if deps.Routes != nil {
			resp["sessions"] = len(deps.Routes.ListSessions(c.UserContext()))
		}
		return c.JSON(resp)
	}
}

// ReadyHandler checks the routing core and its optional backends. Backends
// that are not configured do not fail readiness.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		allOK := true

		if deps.Routes != nil {
			checks["routing"] = "ok"
		} else {
			checks["routing"] = "not configured"
			allOK = false
		}

		if deps.DB != nil {
			if err := deps.DB.Ping(ctx); err != nil {
				checks["database"] = "error: " + err.Error()
				allOK = false
			} else {
				checks["database"] = "ok"
				metrics.UpdateDBPoolMetrics(deps.DB.Stat())
			}
		} else {
			checks["database"] = "not configured"
		}

		if deps.NATS != nil {
			if deps.NATS.IsConnected() {
				checks["nats"] = "ok"
			} else {
				checks["nats"] = "disconnected"
				allOK = false
			}
		} else {
			checks["nats"] = "not configured"
		}

		if deps.Cache != nil {
			if err := deps.Cache.Ping(ctx); err != nil {
				checks["cache"] = "error: " + err.Error()
				allOK = false
			} else {
				checks["cache"] = "ok"
			}
		} else {
			checks["cache"] = "not configured"
		}

		status := "ready"
		code := 200
		if !allOK {
			status = "not ready"
			code = 503
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
