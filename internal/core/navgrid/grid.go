// Package navgrid holds the immutable navigation grid that all sessions share.
//
// A Grid is built once from a Spec and never mutated afterwards, so it can be
// read concurrently without locking.
package navgrid

import (
	"fmt"
	"math"

	"github.com/samirrijal/safespot/internal/core/domain"
)

// Spec describes a grid to build. Cells are laid out row-major; row 0 is the
// southernmost row and column 0 the westernmost column.
type Spec struct {
	Name         string
	Rows         int
	Cols         int
	Origin       domain.GeoPoint // south-west corner
	CellLat      float64         // cell height in degrees of latitude
	CellLon      float64         // cell width in degrees of longitude
	Connectivity domain.Connectivity
	Cells        []domain.GridCell
	SafeZones    []domain.Cell
}

// Grid is a read-only traversability grid.
type Grid struct {
	name         string
	rows, cols   int
	origin       domain.GeoPoint
	cellLat      float64
	cellLon      float64
	connectivity domain.Connectivity
	cells        []domain.GridCell
	minCost      float64
	safeZones    []domain.Cell
}

// New validates spec and builds a Grid. The cell slice is copied.
func New(spec Spec) (*Grid, error) {
	if spec.Rows <= 0 || spec.Cols <= 0 {
		return nil, fmt.Errorf("grid %q: dimensions must be positive, got %dx%d", spec.Name, spec.Rows, spec.Cols)
	}
	if len(spec.Cells) != spec.Rows*spec.Cols {
		return nil, fmt.Errorf("grid %q: expected %d cells, got %d", spec.Name, spec.Rows*spec.Cols, len(spec.Cells))
	}
	if !(spec.CellLat > 0) || !(spec.CellLon > 0) {
		return nil, fmt.Errorf("grid %q: cell size must be positive", spec.Name)
	}
	if !spec.Origin.Valid() {
		return nil, fmt.Errorf("grid %q: invalid origin %+v", spec.Name, spec.Origin)
	}
	conn := spec.Connectivity
	if conn == 0 {
		conn = domain.FourConnected
	}
	if !conn.Valid() {
		return nil, fmt.Errorf("grid %q: unsupported connectivity %d", spec.Name, conn)
	}

	g := &Grid{
		name:         spec.Name,
		rows:         spec.Rows,
		cols:         spec.Cols,
		origin:       spec.Origin,
		cellLat:      spec.CellLat,
		cellLon:      spec.CellLon,
		connectivity: conn,
		cells:        make([]domain.GridCell, len(spec.Cells)),
		minCost:      math.Inf(1),
	}
	copy(g.cells, spec.Cells)

	for i, c := range g.cells {
		if !c.Traversable {
			continue
		}
		if !(c.Cost > 0) || math.IsInf(c.Cost, 0) {
			return nil, fmt.Errorf("grid %q: cell (%d,%d) has non-positive cost %v", spec.Name, i/g.cols, i%g.cols, c.Cost)
		}
		if c.Cost < g.minCost {
			g.minCost = c.Cost
		}
	}
	if math.IsInf(g.minCost, 1) {
		g.minCost = 1
	}

	seen := make(map[domain.Cell]struct{}, len(spec.SafeZones))
	for _, sz := range spec.SafeZones {
		if !g.InBounds(sz) {
			return nil, fmt.Errorf("grid %q: safe zone %s outside grid", spec.Name, sz)
		}
		if _, dup := seen[sz]; dup {
			continue
		}
		seen[sz] = struct{}{}
		g.safeZones = append(g.safeZones, sz)
	}

	return g, nil
}

// Uniform builds a spec where every cell is traversable with the given cost.
func Uniform(name string, rows, cols int, cost float64) Spec {
	cells := make([]domain.GridCell, rows*cols)
	for i := range cells {
		cells[i] = domain.GridCell{Traversable: true, Cost: cost}
	}
	return Spec{
		Name:         name,
		Rows:         rows,
		Cols:         cols,
		Origin:       domain.GeoPoint{},
		CellLat:      0.001,
		CellLon:      0.001,
		Connectivity: domain.FourConnected,
		Cells:        cells,
	}
}

func (g *Grid) Name() string { return g.name }
func (g *Grid) Rows() int { return g.rows }
func (g *Grid) Cols() int { return g.cols }
func (g *Grid) Size() int { return g.rows * g.cols }
func (g *Grid) Connectivity() domain.Connectivity { return g.connectivity }
func (g *Grid) MinCost() float64 { return g.minCost }
func (g *Grid) Index(c domain.Cell) int { return c.Row*g.cols + c.Col }
func (g *Grid) CellOf(idx int) domain.Cell { return domain.Cell{Row: idx / g.cols, Col: idx % g.cols} }
func (g *Grid) InBounds(c domain.Cell) bool { return c.Row >= 0 && c.Row < g.rows && c.Col >= 0 && c.Col < g.cols }
func (g *Grid) Traversable(c domain.Cell) bool { return g.InBounds(c) && g.cells[g.Index(c)].Traversable }
func (g *Grid) Cost(c domain.Cell) float64 { return g.cells[g.Index(c)].Cost }
func (g *Grid) At(c domain.Cell) domain.GridCell { return g.cells[g.Index(c)] }

// SafeZones returns a copy of the grid's default safe-zone cells.
func (g *Grid) SafeZones() []domain.Cell {
	out := make([]domain.Cell, len(g.safeZones))
	copy(out, g.safeZones)
	return out
}

// Bounds returns the geographic extent of the grid.
func (g *Grid) Bounds() domain.Bounds {
	return domain.Bounds{
		MinLat: g.origin.Latitude,
		MinLon: g.origin.Longitude,
		MaxLat: g.origin.Latitude + float64(g.rows)*g.cellLat,
		MaxLon: g.origin.Longitude + float64(g.cols)*g.cellLon,
	}
}

// CellAt projects a geographic coordinate onto its grid cell.
func (g *Grid) CellAt(p domain.GeoPoint) (domain.Cell, error) {
	if !p.Valid() {
		return domain.Cell{}, fmt.Errorf("%w: malformed %v,%v", domain.ErrInvalidCoordinate, p.Latitude, p.Longitude)
	}
	if !g.Bounds().Contains(p) {
		return domain.Cell{}, fmt.Errorf("%w: %.6f,%.6f outside grid %q", domain.ErrInvalidCoordinate, p.Latitude, p.Longitude, g.name)
	}
	c := domain.Cell{
		Row: int(math.Floor((p.Latitude - g.origin.Latitude) / g.cellLat)),
		Col: int(math.Floor((p.Longitude - g.origin.Longitude) / g.cellLon)),
	}
	// Float rounding at the upper edge can land one past the last index.
	if c.Row >= g.rows {
		c.Row = g.rows - 1
	}
	if c.Col >= g.cols {
		c.Col = g.cols - 1
	}
	return c, nil
}

// Center returns the geographic centre of a cell.
func (g *Grid) Center(c domain.Cell) domain.GeoPoint {
	return domain.GeoPoint{
		Latitude:  g.origin.Latitude + (float64(c.Row)+0.5)*g.cellLat,
		Longitude: g.origin.Longitude + (float64(c.Col)+0.5)*g.cellLon,
	}
}

// Orthogonal moves first, then diagonals. The order is part of the
// search's tie-breaking and must stay fixed.
var offsets = [8]domain.Cell{
	{Row: 1, Col: 0}, {Row: 0, Col: 1}, {Row: -1, Col: 0}, {Row: 0, Col: -1},
	{Row: 1, Col: 1}, {Row: -1, Col: 1}, {Row: -1, Col: -1}, {Row: 1, Col: -1},
}

// Neighbors appends the traversable neighbours of c to buf and returns it.
func (g *Grid) Neighbors(c domain.Cell, buf []domain.Cell) []domain.Cell {
	n := 4
	if g.connectivity == domain.EightConnected {
		n = 8
	}
	for _, off := range offsets[:n] {
		nb := domain.Cell{Row: c.Row + off.Row, Col: c.Col + off.Col}
		if g.Traversable(nb) {
			buf = append(buf, nb)
		}
	}
	return buf
}

// Distance is the movement-metric distance between two cells: Manhattan for
// 4-connected grids, Chebyshev for 8-connected ones.
func (g *Grid) Distance(a, b domain.Cell) float64 {
	dr := absInt(a.Row - b.Row)
	dc := absInt(a.Col - b.Col)
	if g.connectivity == domain.EightConnected {
		return float64(max(dr, dc))
	}
	return float64(dr + dc)
}

// Info summarises the grid for API responses.
func (g *Grid) Info() domain.GridInfo {
	zones := make([]domain.GeoPoint, 0, len(g.safeZones))
	for _, c := range g.safeZones {
		zones = append(zones, g.Center(c))
	}
	return domain.GridInfo{
		Name:         g.name,
		Rows:         g.rows,
		Cols:         g.cols,
		Bounds:       g.Bounds(),
		Connectivity: g.connectivity,
		SafeZones:    zones,
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
