package ports

import (
	"context"

	"github.com/samirrijal/safespot/internal/core/domain"
	"github.com/samirrijal/safespot/internal/core/navgrid"
	"github.com/samirrijal/safespot/internal/core/pathfinding"
)

// RouteFinder searches the grid for the cheapest route to a safe zone.
type RouteFinder interface {
	FindRoute(ctx context.Context, grid *navgrid.Grid, overlay pathfinding.Overlay, start domain.Cell, goals []domain.Cell) (*pathfinding.Result, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishRouteUpdate(ctx context.Context, update *domain.RouteUpdate) error
	PublishSessionClosed(ctx context.Context, sessionID string) error
	PublishHazardReport(ctx context.Context, report *domain.HazardReport) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeHazardReports(ctx context.Context, handler func(ctx context.Context, report *domain.HazardReport) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// Geocoder resolves free-form addresses to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.GeoPoint, error)
}
