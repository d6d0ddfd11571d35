package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/safespot/internal/core/domain"
	"github.com/samirrijal/safespot/internal/pkg/metrics"
)

// LegacySessionID is the implicit session behind the /api endpoints, which
// predate multi-traveler support.
const LegacySessionID = "default"

type legacyPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func legacyError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"status": "error", "message": msg})
}

// LegacyStartHandler replaces the implicit session with one starting at the
// posted coordinates.
func LegacyStartHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := parsePoint(c)
		if err != nil {
			return legacyError(c, fiber.StatusBadRequest, err.Error())
		}
		ctx := c.UserContext()
		_ = deps.Routes.CloseSession(ctx, LegacySessionID)
		if _, err := deps.Routes.ReportStart(ctx, LegacySessionID, p, nil); err != nil {
			if errors.Is(err, domain.ErrInvalidCoordinate) || errors.Is(err, domain.ErrNoSafeZones) {
				return legacyError(c, fiber.StatusBadRequest, err.Error())
			}
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"status": "success", "message": "Start coordinates received"})
	}
}

// LegacyHazardHandler moves the implicit session's hazard and returns the
// route as a list of {lat, lng} points.
func LegacyHazardHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := parsePoint(c)
		if err != nil {
			return legacyError(c, fiber.StatusBadRequest, err.Error())
		}
		metrics.HazardReports.WithLabelValues("http").Inc()
		route, err := deps.Routes.ReportHazard(c.UserContext(), LegacySessionID, p)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrUnreachable):
			return c.JSON(fiber.Map{"status": "blocked", "path": []legacyPoint{}})
		case errors.Is(err, domain.ErrSessionNotFound):
			return legacyError(c, fiber.StatusBadRequest, "start coordinates not set")
		case errors.Is(err, domain.ErrInvalidCoordinate):
			return legacyError(c, fiber.StatusBadRequest, err.Error())
		default:
			return errFromDomain(c, err)
		}

		path := make([]legacyPoint, len(route.Path))
		for i, pt := range route.Path {
			path[i] = legacyPoint{Lat: pt.Latitude, Lng: pt.Longitude}
		}
		return c.JSON(fiber.Map{"status": "success", "path": path})
	}
}
