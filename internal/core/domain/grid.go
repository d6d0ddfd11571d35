package domain

import "fmt"

// Cell is a discretised grid position.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// GridCell holds the static attributes of one grid position.
type GridCell struct {
	Traversable bool    `json:"traversable" yaml:"traversable"`
	Cost        float64 `json:"cost" yaml:"cost"`
}

// Connectivity is the movement model of a grid: 4 (orthogonal) or 8 (with diagonals).
type Connectivity int

const (
	FourConnected  Connectivity = 4
	EightConnected Connectivity = 8
)

// Valid reports whether c is a supported connectivity.
func (c Connectivity) Valid() bool {
	return c == FourConnected || c == EightConnected
}

// GridInfo describes a loaded grid for API consumers.
type GridInfo struct {
	Name         string       `json:"name"`
	Rows         int          `json:"rows"`
	Cols         int          `json:"cols"`
	Bounds       Bounds       `json:"bounds"`
	Connectivity Connectivity `json:"connectivity"`
	SafeZones    []GeoPoint   `json:"safe_zones"`
}
