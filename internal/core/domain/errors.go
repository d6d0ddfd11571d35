package domain

import "errors"

var (
	// ErrInvalidCoordinate is returned for malformed coordinates or ones outside the grid.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrSessionNotFound is returned for unknown or terminated sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when a start is reported for a live session.
	ErrSessionExists = errors.New("session already exists")
	// ErrNoSafeZones is returned when a session would have no destination.
	ErrNoSafeZones = errors.New("no safe zones")
	// ErrUnreachable means no safe-zone cell can be reached from the traveler.
	ErrUnreachable = errors.New("no safe zone reachable")
	// ErrRecomputationTimeout means a route search exceeded its time budget.
	ErrRecomputationTimeout = errors.New("route recomputation timed out")
	// ErrGeocoding is returned when an address cannot be resolved.
	ErrGeocoding = errors.New("geocoding failed")
)

// UnreachableError reports the session version whose search found every safe
// zone cut off. It matches ErrUnreachable under errors.Is.
type UnreachableError struct {
	Version uint64
}

func (e *UnreachableError) Error() string { return ErrUnreachable.Error() }

func (e *UnreachableError) Unwrap() error { return ErrUnreachable }
