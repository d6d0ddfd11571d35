// Package gridfile reads and writes navigation grids as YAML documents with
// an ASCII map, one character per cell.
//
//	name: old-town
//	origin: {latitude: 43.2560, longitude: -2.9400}
//	cell_size: {latitude: 0.0005, longitude: 0.0005}
//	connectivity: 8
//	legend:
//	  "~": {cost: 3}
//	map: |
//	  ..#..
//	  .S#~.
//
// The first map line is the northernmost row. Without a legend, "." is open
// ground with cost 1, "#" is impassable and "S" is a safe zone with cost 1.
package gridfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/samirrijal/safespot/internal/core/domain"
	"github.com/samirrijal/safespot/internal/core/navgrid"
)

// ErrNotFound is returned when no file exists for a grid name.
var ErrNotFound = errors.New("grid file not found")

type document struct {
	Name         string                 `yaml:"name"`
	Origin       point                  `yaml:"origin"`
	CellSize     point                  `yaml:"cell_size"`
	Connectivity int                    `yaml:"connectivity,omitempty"`
	Legend       map[string]legendEntry `yaml:"legend,omitempty"`
	Map          string                 `yaml:"map"`
}

type point struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

type legendEntry struct {
	Cost     float64 `yaml:"cost,omitempty"`
	Blocked  bool    `yaml:"blocked,omitempty"`
	SafeZone bool    `yaml:"safe_zone,omitempty"`
}

var defaultLegend = map[rune]legendEntry{
	'.': {Cost: 1},
	'#': {Blocked: true},
	'S': {Cost: 1, SafeZone: true},
}

// Parse decodes a grid document. The returned spec has not been validated
// beyond what the map format itself requires; pass it to navgrid.New.
func Parse(r io.Reader) (*navgrid.Spec, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode grid: %w", err)
	}

	legend := make(map[rune]legendEntry, len(defaultLegend)+len(doc.Legend))
	for k, v := range defaultLegend {
		legend[k] = v
	}
	for k, v := range doc.Legend {
		if utf8.RuneCountInString(k) != 1 {
			return nil, fmt.Errorf("grid %q: legend key %q must be a single character", doc.Name, k)
		}
		r, _ := utf8.DecodeRuneInString(k)
		legend[r] = v
	}

	var lines []string
	for _, l := range strings.Split(doc.Map, "\n") {
		if l = strings.TrimRight(l, " \t\r"); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("grid %q: empty map", doc.Name)
	}

	rows := len(lines)
	cols := utf8.RuneCountInString(lines[0])
	spec := &navgrid.Spec{
		Name:         doc.Name,
		Rows:         rows,
		Cols:         cols,
		Origin:       domain.GeoPoint{Latitude: doc.Origin.Latitude, Longitude: doc.Origin.Longitude},
		CellLat:      doc.CellSize.Latitude,
		CellLon:      doc.CellSize.Longitude,
		Connectivity: domain.Connectivity(doc.Connectivity),
		Cells:        make([]domain.GridCell, rows*cols),
	}

	for i, line := range lines {
		row := rows - 1 - i
		if n := utf8.RuneCountInString(line); n != cols {
			return nil, fmt.Errorf("grid %q: map line %d has %d cells, want %d", doc.Name, i+1, n, cols)
		}
		col := 0
		for _, ch := range line {
			e, ok := legend[ch]
			if !ok {
				return nil, fmt.Errorf("grid %q: unknown map character %q on line %d", doc.Name, ch, i+1)
			}
			spec.Cells[row*cols+col] = domain.GridCell{Traversable: !e.Blocked, Cost: e.Cost}
			if e.SafeZone {
				spec.SafeZones = append(spec.SafeZones, domain.Cell{Row: row, Col: col})
			}
			col++
		}
	}

	sort.Slice(spec.SafeZones, func(i, j int) bool {
		a, b := spec.SafeZones[i], spec.SafeZones[j]
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
	return spec, nil
}

// ReadFile parses the grid document at path.
func ReadFile(path string) (*navgrid.Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Encode writes spec as a grid document.
func Encode(w io.Writer, spec *navgrid.Spec) error {
	safe := make(map[domain.Cell]bool, len(spec.SafeZones))
	for _, z := range spec.SafeZones {
		safe[z] = true
	}

	symbols := map[legendEntry]rune{}
	for r, e := range defaultLegend {
		symbols[e] = r
	}
	pool := []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRTUVWXYZ0123456789")
	doc := document{
		Name:         spec.Name,
		Origin:       point{spec.Origin.Latitude, spec.Origin.Longitude},
		CellSize:     point{spec.CellLat, spec.CellLon},
		Connectivity: int(spec.Connectivity),
		Legend:       map[string]legendEntry{},
	}

	var buf bytes.Buffer
	for row := spec.Rows - 1; row >= 0; row-- {
		for col := 0; col < spec.Cols; col++ {
			c := spec.Cells[row*spec.Cols+col]
			e := legendEntry{Blocked: !c.Traversable, SafeZone: safe[domain.Cell{Row: row, Col: col}]}
			if c.Traversable {
				e.Cost = c.Cost
			}
			sym, ok := symbols[e]
			if !ok {
				if len(pool) == 0 {
					return fmt.Errorf("grid %q: too many distinct cell kinds", spec.Name)
				}
				sym, pool = pool[0], pool[1:]
				symbols[e] = sym
				doc.Legend[string(sym)] = e
			}
			buf.WriteRune(sym)
		}
		buf.WriteByte('\n')
	}
	doc.Map = buf.String()

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode grid: %w", err)
	}
	return enc.Close()
}
