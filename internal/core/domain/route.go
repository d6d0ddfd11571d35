package domain

import "time"

// Route is an evacuation path from the traveler to a safe-zone cell.
type Route struct {
	SessionID      string     `json:"session_id"`
	Version        uint64     `json:"version"`
	Cells          []Cell     `json:"-"`
	Path           []GeoPoint `json:"path"`
	Cost           float64    `json:"cost"`
	DistanceMeters float64    `json:"distance_meters"`
	Destination    GeoPoint   `json:"destination"`
	ComputedAt     time.Time  `json:"computed_at"`
	Stale          bool       `json:"stale"`
}

// RouteUpdate is published whenever a session's route changes.
type RouteUpdate struct {
	SessionID string        `json:"session_id"`
	Version   uint64        `json:"version"`
	Status    SessionStatus `json:"status"`
	Route     *Route        `json:"route,omitempty"`
	Time      time.Time     `json:"time"`
}

// HazardReport is an externally observed hazard position for a session.
type HazardReport struct {
	SessionID string    `json:"session_id"`
	Location  GeoPoint  `json:"location"`
	Time      time.Time `json:"time"`
}
