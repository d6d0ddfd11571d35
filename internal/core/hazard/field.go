// Package hazard computes the danger overlay a moving hazard imposes on a grid.
package hazard

import (
	"fmt"
	"math"

	"github.com/samirrijal/safespot/internal/core/domain"
	"github.com/samirrijal/safespot/internal/core/navgrid"
)

// Config controls the shape of the penalty around a hazard.
type Config struct {
	// Radius is the influence radius in cells. Cells at distance >= Radius
	// carry no penalty.
	Radius float64
	// PeakPenalty is the penalty at the hazard's own cell.
	PeakPenalty float64
	// LethalRadius marks cells at distance <= LethalRadius as impassable.
	// Negative disables it.
	LethalRadius float64
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Radius < 0 || math.IsNaN(c.Radius) || math.IsInf(c.Radius, 0) {
		return fmt.Errorf("hazard radius must be a finite non-negative number, got %v", c.Radius)
	}
	if c.PeakPenalty < 0 || math.IsNaN(c.PeakPenalty) || math.IsInf(c.PeakPenalty, 0) {
		return fmt.Errorf("hazard peak penalty must be a finite non-negative number, got %v", c.PeakPenalty)
	}
	if math.IsNaN(c.LethalRadius) || math.IsInf(c.LethalRadius, 0) {
		return fmt.Errorf("hazard lethal radius must be finite, got %v", c.LethalRadius)
	}
	return nil
}

// Penalty returns the penalty at Euclidean cell distance d from the hazard.
func (c Config) Penalty(d float64) float64 {
	if d >= c.Radius {
		return 0
	}
	return c.PeakPenalty * (1 - d/c.Radius)
}

// reach is the half-width of the square footprint touched by an update.
func (c Config) reach() int {
	r := c.Radius
	if c.LethalRadius > r {
		r = c.LethalRadius
	}
	return int(math.Ceil(r))
}

// Field is one session's hazard overlay. It is not safe for concurrent use;
// the session's recompute loop owns it.
type Field struct {
	grid    *navgrid.Grid
	cfg     Config
	penalty []float64 // lazily allocated, grid-sized
	blocked []bool
	center  *domain.Cell
}

// NewField creates an empty field (no hazard) over grid.
func NewField(grid *navgrid.Grid, cfg Config) *Field {
	return &Field{grid: grid, cfg: cfg}
}

// Center returns the hazard cell, if any.
func (f *Field) Center() (domain.Cell, bool) {
	if f.center == nil {
		return domain.Cell{}, false
	}
	return *f.center, true
}

// Update moves the hazard to center. Only the previous and new footprints are
// touched, so the cost is O(radius²) regardless of grid size.
func (f *Field) Update(center domain.Cell) {
	if f.center != nil && *f.center == center {
		return
	}
	if f.penalty == nil {
		f.penalty = make([]float64, f.grid.Size())
		f.blocked = make([]bool, f.grid.Size())
	}
	f.reset()

	k := f.cfg.reach()
	for dr := -k; dr <= k; dr++ {
		for dc := -k; dc <= k; dc++ {
			c := domain.Cell{Row: center.Row + dr, Col: center.Col + dc}
			if !f.grid.InBounds(c) {
				continue
			}
			d := math.Hypot(float64(dr), float64(dc))
			idx := f.grid.Index(c)
			f.penalty[idx] = f.cfg.Penalty(d)
			f.blocked[idx] = f.cfg.LethalRadius >= 0 && d <= f.cfg.LethalRadius
		}
	}
	f.center = &center
}

// Clear removes the hazard.
func (f *Field) Clear() {
	f.reset()
	f.center = nil
}

// reset zeroes the footprint of the current hazard.
func (f *Field) reset() {
	if f.center == nil || f.penalty == nil {
		return
	}
	k := f.cfg.reach()
	for dr := -k; dr <= k; dr++ {
		for dc := -k; dc <= k; dc++ {
			c := domain.Cell{Row: f.center.Row + dr, Col: f.center.Col + dc}
			if !f.grid.InBounds(c) {
				continue
			}
			idx := f.grid.Index(c)
			f.penalty[idx] = 0
			f.blocked[idx] = false
		}
	}
}

// PenaltyAt returns the current danger penalty of c.
func (f *Field) PenaltyAt(c domain.Cell) float64 {
	if f == nil || f.penalty == nil {
		return 0
	}
	return f.penalty[f.grid.Index(c)]
}

// Blocked reports whether the hazard makes c impassable.
func (f *Field) Blocked(c domain.Cell) bool {
	if f == nil || f.blocked == nil {
		return false
	}
	return f.blocked[f.grid.Index(c)]
}
