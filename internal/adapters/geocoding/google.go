package geocoding

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"github.com/samirrijal/safespot/internal/core/domain"
)

// Google implements ports.Geocoder with the Google Maps Geocoding API.
// Results are biased towards the bounds of the navigation grid.
type Google struct {
	client  *maps.Client
	bounds  *maps.LatLngBounds
	timeout time.Duration
}

// NewGoogle creates a geocoder. Extra client options (e.g. maps.WithBaseURL)
// are passed through.
func NewGoogle(apiKey string, bias domain.Bounds, opts ...maps.ClientOption) (*Google, error) {
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("maps client: %w", err)
	}
	return &Google{
		client: c,
		bounds: &maps.LatLngBounds{
			NorthEast: maps.LatLng{Lat: bias.MaxLat, Lng: bias.MaxLon},
			SouthWest: maps.LatLng{Lat: bias.MinLat, Lng: bias.MinLon},
		},
		timeout: 10 * time.Second,
	}, nil
}

func (g *Google) Geocode(ctx context.Context, address string) (domain.GeoPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Bounds:  g.bounds,
	})
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: %v", domain.ErrGeocoding, err)
	}
	if len(resp) == 0 {
		return domain.GeoPoint{}, fmt.Errorf("%w: no results for %q", domain.ErrGeocoding, address)
	}
	loc := resp[0].Geometry.Location
	return domain.GeoPoint{Latitude: loc.Lat, Longitude: loc.Lng}, nil
}
