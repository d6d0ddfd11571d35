package domain

import "math"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both components are finite and within WGS 84 ranges.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) ||
		math.IsInf(p.Latitude, 0) || math.IsInf(p.Longitude, 0) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether p lies in the half-open box [min, max).
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Latitude >= b.MinLat && p.Latitude < b.MaxLat &&
		p.Longitude >= b.MinLon && p.Longitude < b.MaxLon
}
