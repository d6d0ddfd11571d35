package http

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/safespot/internal/core/domain"
	"github.com/samirrijal/safespot/internal/pkg/metrics"
)

type startRequest struct {
	ID        string            `json:"id"`
	Start     *domain.GeoPoint  `json:"start"`
	Address   string            `json:"address"`
	SafeZones []domain.GeoPoint `json:"safe_zones"`
}

// RouteResponse is returned by every endpoint that reports a route.
type RouteResponse struct {
	SessionID string               `json:"session_id"`
	Status    domain.SessionStatus `json:"status,omitempty"`
	Version   uint64               `json:"version"`
	Route     *domain.Route        `json:"route"`
}

// parsePoint reads a {latitude, longitude} body. Missing fields are rejected
// rather than defaulting to 0,0.
func parsePoint(c *fiber.Ctx) (domain.GeoPoint, error) {
	var body struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := c.BodyParser(&body); err != nil {
		return domain.GeoPoint{}, errors.New("invalid request body")
	}
	if body.Latitude == nil || body.Longitude == nil {
		return domain.GeoPoint{}, errors.New("latitude and longitude are required")
	}
	return domain.GeoPoint{Latitude: *body.Latitude, Longitude: *body.Longitude}, nil
}

// sessionParam returns the :id route param and tags the request logger with it.
func sessionParam(c *fiber.Ctx) string {
	id := c.Params("id")
	withSessionLogger(c, id)
	return id
}

// CreateSessionHandler starts a session from coordinates or an address.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req startRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		req.Address = strings.TrimSpace(req.Address)
		if len(req.ID) > 128 {
			return errBadRequest(c, "id too long (max 128 characters)")
		}
		if len(req.SafeZones) > 256 {
			return errBadRequest(c, "too many safe zones (max 256)")
		}

		var (
			sess *domain.Session
			err  error
		)
		switch {
		case req.Start != nil && req.Address != "":
			return errBadRequest(c, "provide either start or address, not both")
		case req.Start != nil:
			sess, err = deps.Routes.ReportStart(c.UserContext(), req.ID, *req.Start, req.SafeZones)
		case req.Address != "":
			if len(req.Address) > 200 {
				return errBadRequest(c, "address too long (max 200 characters)")
			}
			sess, err = deps.Routes.ReportStartAddress(c.UserContext(), req.ID, req.Address, req.SafeZones)
		default:
			return errBadRequest(c, "start or address is required")
		}
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Location("/v1/sessions/" + sess.ID)
		return c.Status(fiber.StatusCreated).JSON(sess)
	}
}

// ListSessionsHandler returns live sessions, oldest first, optionally
// filtered by ?status=.
func ListSessionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessions := deps.Routes.ListSessions(c.UserContext())

		if status := c.Query("status"); status != "" {
			switch domain.SessionStatus(status) {
			case domain.StatusActive, domain.StatusRouted, domain.StatusBlocked:
			default:
				return errBadRequest(c, "status must be active, routed or blocked")
			}
			kept := sessions[:0]
			for _, s := range sessions {
				if s.Status == domain.SessionStatus(status) {
					kept = append(kept, s)
				}
			}
			sessions = kept
		}

		return c.JSON(paginate(c, sessions))
	}
}

// GetSessionHandler returns a session snapshot.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := deps.Routes.Session(c.UserContext(), sessionParam(c))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(sess)
	}
}

// CloseSessionHandler terminates a session.
func CloseSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Routes.CloseSession(c.UserContext(), sessionParam(c)); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ReportHazardHandler moves the session's hazard and returns the new route.
func ReportHazardHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := parsePoint(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		id := sessionParam(c)
		metrics.HazardReports.WithLabelValues("http").Inc()
		route, err := deps.Routes.ReportHazard(c.UserContext(), id, p)
		return respondRoute(c, id, route, err)
	}
}

// ReportPositionHandler moves the traveler and returns the new route.
func ReportPositionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := parsePoint(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		id := sessionParam(c)
		route, err := deps.Routes.ReportTravelerMove(c.UserContext(), id, p)
		return respondRoute(c, id, route, err)
	}
}

// GetRouteHandler returns the latest route of a session. Routes that no
// longer match the session's inputs are flagged stale.
func GetRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := sessionParam(c)
		ctx := c.UserContext()

		if sess, err := deps.Routes.Session(ctx, id); err == nil {
			c.Set("Cache-Control", "no-store")
			return c.JSON(RouteResponse{SessionID: id, Status: sess.Status, Version: sess.Version, Route: sess.Route})
		}

		// Not owned here; the shared cache may hold the last route.
		route, err := deps.Routes.Route(ctx, id)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("Cache-Control", "no-store")
		return c.JSON(RouteResponse{SessionID: id, Version: route.Version, Route: route})
	}
}

// GridHandler describes the navigation grid.
func GridHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(deps.Routes.Grid().Info())
	}
}

// respondRoute reports the outcome of one update. A blocked outcome carries
// the version of the search that found the safe zones cut off.
func respondRoute(c *fiber.Ctx, id string, route *domain.Route, err error) error {
	var unreachable *domain.UnreachableError
	switch {
	case err == nil:
		return c.JSON(RouteResponse{SessionID: id, Status: domain.StatusRouted, Version: route.Version, Route: route})
	case errors.As(err, &unreachable):
		return c.JSON(RouteResponse{SessionID: id, Status: domain.StatusBlocked, Version: unreachable.Version})
	default:
		return errFromDomain(c, err)
	}
}
