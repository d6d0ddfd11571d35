package http

import (
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/safespot/internal/adapters/postgres"
	"github.com/samirrijal/safespot/internal/adapters/valkey"
	"github.com/samirrijal/safespot/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
// Everything except Routes is optional.
type Dependencies struct {
	Routes *usecases.RouteService
	NATS   *nats.Conn
	DB     *postgres.DB
	Cache  *valkey.Cache

	// OpenAPIPath is served at /docs/openapi.yaml.
	OpenAPIPath string
	// RequestTimeout bounds each REST request. Zero means 15s.
	RequestTimeout time.Duration
}
