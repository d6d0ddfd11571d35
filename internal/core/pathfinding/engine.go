// Package pathfinding implements the hazard-weighted multi-goal A* search.
//
// The step cost of entering a cell is its base traversal cost plus the
// hazard penalty on it. Goals are a set of safe-zone cells; the search stops
// at the first goal taken off the frontier. Frontier ties are broken by the
// lower heuristic and then by insertion order, which makes results
// reproducible for identical inputs.
package pathfinding

import (
	"container/heap"
	"context"
	"fmt"
	"math"

	"github.com/samirrijal/safespot/internal/core/domain"
	"github.com/samirrijal/safespot/internal/core/navgrid"
)

// Overlay is the dynamic cost layer consulted during a search.
type Overlay interface {
	PenaltyAt(c domain.Cell) float64
	Blocked(c domain.Cell) bool
}

// Result is a found path.
type Result struct {
	Cells    []domain.Cell
	Cost     float64
	Goal     domain.Cell
	Expanded int
}

// Engine runs route searches. The zero value is ready to use.
type Engine struct{}

// NewEngine returns an Engine.
func NewEngine() *Engine { return &Engine{} }

// FindRoute searches from start to the cheapest reachable goal.
// It returns domain.ErrUnreachable when no goal can be reached and the
// context error when ctx is cancelled between expansions.
func (e *Engine) FindRoute(ctx context.Context, grid *navgrid.Grid, overlay Overlay, start domain.Cell, goals []domain.Cell) (*Result, error) {
	if !grid.InBounds(start) {
		return nil, fmt.Errorf("find route: start %s: %w", start, domain.ErrInvalidCoordinate)
	}
	if len(goals) == 0 {
		return nil, fmt.Errorf("find route: %w", domain.ErrNoSafeZones)
	}

	// A traveler already on a safe zone has arrived, whatever the hazard
	// does to that cell.
	for _, g := range goals {
		if g == start {
			return &Result{Cells: []domain.Cell{start}, Cost: 0, Goal: start}, nil
		}
	}

	isGoal := make(map[domain.Cell]struct{}, len(goals))
	targets := make([]domain.Cell, 0, len(goals))
	for _, g := range goals {
		if !grid.Traversable(g) || blocked(overlay, g) {
			continue
		}
		if _, dup := isGoal[g]; dup {
			continue
		}
		isGoal[g] = struct{}{}
		targets = append(targets, g)
	}

	if len(targets) == 0 {
		return nil, domain.ErrUnreachable
	}

	minCost := grid.MinCost()
	heuristic := func(c domain.Cell) float64 {
		best := math.Inf(1)
		for _, t := range targets {
			if d := grid.Distance(c, t); d < best {
				best = d
			}
		}
		return best * minCost
	}

	size := grid.Size()
	gScore := make([]float64, size)
	for i := range gScore {
		gScore[i] = math.Inf(1)
	}
	parent := make([]int32, size)
	for i := range parent {
		parent[i] = -1
	}
	closed := make([]bool, size)

	startIdx := grid.Index(start)
	gScore[startIdx] = 0

	var seq uint64
	open := &frontier{}
	h0 := heuristic(start)
	heap.Push(open, &node{idx: startIdx, g: 0, h: h0, f: h0, seq: seq})

	done := ctx.Done()
	neighbors := make([]domain.Cell, 0, 8)
	expanded := 0

	for open.Len() > 0 {
		select {
		case <-done:
			return nil, fmt.Errorf("find route: %w", ctx.Err())
		default:
		}

		cur := heap.Pop(open).(*node)
		if closed[cur.idx] {
			continue
		}
		closed[cur.idx] = true
		expanded++

		cell := grid.CellOf(cur.idx)
		if _, ok := isGoal[cell]; ok {
			return &Result{
				Cells:    reconstruct(grid, parent, cur.idx),
				Cost:     cur.g,
				Goal:     cell,
				Expanded: expanded,
			}, nil
		}

		neighbors = grid.Neighbors(cell, neighbors[:0])
		for _, nb := range neighbors {
			if blocked(overlay, nb) {
				continue
			}
			ni := grid.Index(nb)
			if closed[ni] {
				continue
			}
			tentative := cur.g + grid.Cost(nb) + penalty(overlay, nb)
			if tentative >= gScore[ni] {
				continue
			}
			gScore[ni] = tentative
			parent[ni] = int32(cur.idx)
			h := heuristic(nb)
			seq++
			heap.Push(open, &node{idx: ni, g: tentative, h: h, f: tentative + h, seq: seq})
		}
	}

	return nil, domain.ErrUnreachable
}

func reconstruct(grid *navgrid.Grid, parent []int32, end int) []domain.Cell {
	var rev []domain.Cell
	for i := end; i >= 0; i = int(parent[i]) {
		rev = append(rev, grid.CellOf(i))
	}
	out := make([]domain.Cell, len(rev))
	for i, c := range rev {
		out[len(rev)-1-i] = c
	}
	return out
}

func blocked(o Overlay, c domain.Cell) bool {
	return o != nil && o.Blocked(c)
}

func penalty(o Overlay, c domain.Cell) float64 {
	if o == nil {
		return 0
	}
	return o.PenaltyAt(c)
}
