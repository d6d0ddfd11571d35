package domain

import "time"

// SessionStatus is the lifecycle state of a traveler session.
//
//	active     -> routed | blocked | terminated
//	routed     -> active | terminated
//	blocked    -> active | terminated
//	terminated (terminal)
type SessionStatus string

const (
	StatusActive     SessionStatus = "active"
	StatusRouted     SessionStatus = "routed"
	StatusBlocked    SessionStatus = "blocked"
	StatusTerminated SessionStatus = "terminated"
)

// Session is a read-only snapshot of one traveler's journey.
type Session struct {
	ID             string        `json:"id"`
	Status         SessionStatus `json:"status"`
	Version        uint64        `json:"version"`
	Traveler       GeoPoint      `json:"traveler"`
	Hazard         *GeoPoint     `json:"hazard,omitempty"`
	SafeZones      []GeoPoint    `json:"safe_zones"`
	Route          *Route        `json:"route,omitempty"`
	Recomputations int           `json:"recomputations"`
	CreatedAt      time.Time     `json:"created_at"`
	LastActivity   time.Time     `json:"last_activity"`
}
