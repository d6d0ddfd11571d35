package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/safespot/internal/pkg/metrics"
)

// LegacySunset is when the single-session /api endpoints go away.
var LegacySunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	reqTimeout := deps.RequestTimeout
	if reqTimeout <= 0 {
		reqTimeout = 15 * time.Second
	}

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 600 requests per minute per IP. Position reports from a
	// moving traveler arrive every few seconds.
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/grid", GridHandler(deps))
	v1.Get("/sessions", timeout.NewWithContext(ListSessionsHandler(deps), reqTimeout))
	v1.Post("/sessions", timeout.NewWithContext(CreateSessionHandler(deps), reqTimeout))
	v1.Get("/sessions/:id", timeout.NewWithContext(GetSessionHandler(deps), reqTimeout))
	v1.Delete("/sessions/:id", timeout.NewWithContext(CloseSessionHandler(deps), reqTimeout))
	v1.Get("/sessions/:id/route", timeout.NewWithContext(GetRouteHandler(deps), reqTimeout))
	v1.Post("/sessions/:id/hazard", timeout.NewWithContext(ReportHazardHandler(deps), reqTimeout))
	v1.Post("/sessions/:id/position", timeout.NewWithContext(ReportPositionHandler(deps), reqTimeout))

	// Single-session endpoints kept for existing clients.
	api := app.Group("/api", DeprecationMiddleware([]DeprecatedRoute{
		{Path: "/api/start-coordinates", SunsetDate: LegacySunset, Alternative: "/v1/sessions"},
		{Path: "/api/update-tornado", SunsetDate: LegacySunset, Alternative: "/v1/sessions/:id/hazard"},
	}))
	api.Post("/start-coordinates", timeout.NewWithContext(LegacyStartHandler(deps), reqTimeout))
	api.Post("/update-tornado", timeout.NewWithContext(LegacyHazardHandler(deps), reqTimeout))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app, deps.OpenAPIPath)

	if deps.NATS == nil {
		return
	}
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
