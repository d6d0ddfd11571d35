package pathfinding_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/safespot/internal/core/domain"
	"github.com/samirrijal/safespot/internal/core/hazard"
	"github.com/samirrijal/safespot/internal/core/navgrid"
	"github.com/samirrijal/safespot/internal/core/pathfinding"
)

func cell(r, c int) domain.Cell { return domain.Cell{Row: r, Col: c} }

func mustGrid(t *testing.T, spec navgrid.Spec) *navgrid.Grid {
	t.Helper()
	g, err := navgrid.New(spec)
	require.NoError(t, err)
	return g
}

// corridorSpec is a 5x5 grid with a wall down column 2 except for (2,2).
func corridorSpec() navgrid.Spec {
	spec := navgrid.Uniform("corridor", 5, 5, 1)
	for r := 0; r < 5; r++ {
		if r != 2 {
			spec.Cells[r*5+2] = domain.GridCell{Traversable: false}
		}
	}
	return spec
}

func TestFindRoute_OpenGridFourConnected(t *testing.T) {
	g := mustGrid(t, navgrid.Uniform("open", 5, 5, 1))
	res, err := pathfinding.NewEngine().FindRoute(context.Background(), g, nil, cell(0, 0), []domain.Cell{cell(4, 4)})
	require.NoError(t, err)
	assert.Equal(t, 8.0, res.Cost)
	assert.Len(t, res.Cells, 9)
	assert.Equal(t, cell(0, 0), res.Cells[0])
	assert.Equal(t, cell(4, 4), res.Cells[len(res.Cells)-1])
	assert.Equal(t, cell(4, 4), res.Goal)
}

func TestFindRoute_OpenGridEightConnected(t *testing.T) {
	spec := navgrid.Uniform("open", 5, 5, 1)
	spec.Connectivity = domain.EightConnected
	g := mustGrid(t, spec)
	res, err := pathfinding.NewEngine().FindRoute(context.Background(), g, nil, cell(0, 0), []domain.Cell{cell(4, 4)})
	require.NoError(t, err)
	assert.Equal(t, 4.0, res.Cost)
	assert.Len(t, res.Cells, 5)
}

func TestFindRoute_StartIsSafeZone(t *testing.T) {
	g := mustGrid(t, navgrid.Uniform("open", 3, 3, 1))
	res, err := pathfinding.NewEngine().FindRoute(context.Background(), g, nil, cell(1, 1), []domain.Cell{cell(2, 2), cell(1, 1)})
	require.NoError(t, err)
	assert.Zero(t, res.Cost)
	assert.Equal(t, []domain.Cell{cell(1, 1)}, res.Cells)
}

func TestFindRoute_StartIsSafeZoneUnderHazard(t *testing.T) {
	g := mustGrid(t, navgrid.Uniform("open", 5, 5, 1))
	field := hazard.NewField(g, hazard.Config{Radius: 2, PeakPenalty: 10, LethalRadius: 0})
	field.Update(cell(2, 2))
	require.True(t, field.Blocked(cell(2, 2)))

	res, err := pathfinding.NewEngine().FindRoute(context.Background(), g, field, cell(2, 2), []domain.Cell{cell(0, 0), cell(2, 2)})
	require.NoError(t, err)
	assert.Zero(t, res.Cost)
	assert.Equal(t, []domain.Cell{cell(2, 2)}, res.Cells)
	assert.Equal(t, cell(2, 2), res.Goal)

	// A blocked shelter the traveler is not standing on is still skipped.
	res, err = pathfinding.NewEngine().FindRoute(context.Background(), g, field, cell(0, 1), []domain.Cell{cell(0, 0), cell(2, 2)})
	require.NoError(t, err)
	assert.Equal(t, cell(0, 0), res.Goal)
}

func TestFindRoute_NearestOfSeveralGoals(t *testing.T) {
	g := mustGrid(t, navgrid.Uniform("open", 6, 6, 1))
	goals := []domain.Cell{cell(5, 5), cell(0, 3), cell(5, 0)}
	res, err := pathfinding.NewEngine().FindRoute(context.Background(), g, nil, cell(0, 0), goals)
	require.NoError(t, err)
	assert.Equal(t, cell(0, 3), res.Goal)
	assert.Equal(t, 3.0, res.Cost)
}

func TestFindRoute_WalledOffIsUnreachable(t *testing.T) {
	spec := corridorSpec()
	spec.Cells[2*5+2] = domain.GridCell{Traversable: false}
	g := mustGrid(t, spec)
	_, err := pathfinding.NewEngine().FindRoute(context.Background(), g, nil, cell(0, 0), []domain.Cell{cell(4, 4)})
	assert.ErrorIs(t, err, domain.ErrUnreachable)
}

func TestFindRoute_HazardOnOnlyCorridor(t *testing.T) {
	g := mustGrid(t, corridorSpec())
	engine := pathfinding.NewEngine()
	goals := []domain.Cell{cell(4, 4)}

	free, err := engine.FindRoute(context.Background(), g, nil, cell(0, 0), goals)
	require.NoError(t, err)
	assert.Equal(t, 8.0, free.Cost)

	lethal := hazard.NewField(g, hazard.Config{Radius: 2, PeakPenalty: 10, LethalRadius: 0})
	lethal.Update(cell(2, 2))
	_, err = engine.FindRoute(context.Background(), g, lethal, cell(0, 0), goals)
	assert.ErrorIs(t, err, domain.ErrUnreachable)

	costly := hazard.NewField(g, hazard.Config{Radius: 2, PeakPenalty: 10, LethalRadius: -1})
	costly.Update(cell(2, 2))
	res, err := engine.FindRoute(context.Background(), g, costly, cell(0, 0), goals)
	require.NoError(t, err)
	assert.Greater(t, res.Cost, free.Cost)
	assert.Contains(t, res.Cells, cell(2, 2))
}

func TestFindRoute_ReroutesAroundHazard(t *testing.T) {
	// Two corridors: row 0 and row 4 through a wall in column 2.
	spec := navgrid.Uniform("two", 5, 5, 1)
	for r := 1; r < 4; r++ {
		spec.Cells[r*5+2] = domain.GridCell{Traversable: false}
	}
	g := mustGrid(t, spec)
	engine := pathfinding.NewEngine()

	field := hazard.NewField(g, hazard.Config{Radius: 2, PeakPenalty: 50, LethalRadius: -1})
	field.Update(cell(0, 2))
	res, err := engine.FindRoute(context.Background(), g, field, cell(2, 0), []domain.Cell{cell(2, 4)})
	require.NoError(t, err)
	assert.Contains(t, res.Cells, cell(4, 2))
	assert.NotContains(t, res.Cells, cell(0, 2))

	field.Update(cell(4, 2))
	res, err = engine.FindRoute(context.Background(), g, field, cell(2, 0), []domain.Cell{cell(2, 4)})
	require.NoError(t, err)
	assert.Contains(t, res.Cells, cell(0, 2))
	assert.NotContains(t, res.Cells, cell(4, 2))
}

func TestFindRoute_Deterministic(t *testing.T) {
	spec := navgrid.Uniform("open", 12, 12, 1)
	spec.Connectivity = domain.EightConnected
	g := mustGrid(t, spec)
	field := hazard.NewField(g, hazard.Config{Radius: 3, PeakPenalty: 4, LethalRadius: -1})
	field.Update(cell(6, 6))
	engine := pathfinding.NewEngine()

	first, err := engine.FindRoute(context.Background(), g, field, cell(0, 0), []domain.Cell{cell(11, 11), cell(11, 0)})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := engine.FindRoute(context.Background(), g, field, cell(0, 0), []domain.Cell{cell(11, 11), cell(11, 0)})
		require.NoError(t, err)
		require.Equal(t, first.Cells, again.Cells)
		require.Equal(t, first.Cost, again.Cost)
	}
}

func TestFindRoute_Cancelled(t *testing.T) {
	g := mustGrid(t, navgrid.Uniform("open", 50, 50, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pathfinding.NewEngine().FindRoute(ctx, g, nil, cell(0, 0), []domain.Cell{cell(49, 49)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrUnreachable)
}

func TestFindRoute_NoGoals(t *testing.T) {
	g := mustGrid(t, navgrid.Uniform("open", 2, 2, 1))
	_, err := pathfinding.NewEngine().FindRoute(context.Background(), g, nil, cell(0, 0), nil)
	assert.ErrorIs(t, err, domain.ErrNoSafeZones)
}

// bfs returns the unweighted step distance from start to the nearest goal, or -1.
func bfs(g *navgrid.Grid, start domain.Cell, goals []domain.Cell) int {
	isGoal := map[domain.Cell]bool{}
	for _, c := range goals {
		if g.Traversable(c) {
			isGoal[c] = true
		}
	}
	dist := map[domain.Cell]int{start: 0}
	queue := []domain.Cell{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if isGoal[cur] {
			return dist[cur]
		}
		for _, nb := range g.Neighbors(cur, nil) {
			if _, seen := dist[nb]; !seen {
				dist[nb] = dist[cur] + 1
				queue = append(queue, nb)
			}
		}
	}
	return -1
}

func randomGrid(t *testing.T, rng *rand.Rand, rows, cols int, conn domain.Connectivity) *navgrid.Grid {
	spec := navgrid.Uniform("random", rows, cols, 1)
	spec.Connectivity = conn
	for i := range spec.Cells {
		if rng.Float64() < 0.3 {
			spec.Cells[i] = domain.GridCell{Traversable: false}
		}
	}
	spec.Cells[0] = domain.GridCell{Traversable: true, Cost: 1}
	return mustGrid(t, spec)
}

func TestFindRoute_MatchesBruteForceReachability(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	engine := pathfinding.NewEngine()

	for i := 0; i < 200; i++ {
		conn := domain.FourConnected
		if i%2 == 1 {
			conn = domain.EightConnected
		}
		g := randomGrid(t, rng, 6, 6, conn)
		goals := []domain.Cell{cell(rng.Intn(6), rng.Intn(6)), cell(rng.Intn(6), rng.Intn(6))}

		want := bfs(g, cell(0, 0), goals)
		res, err := engine.FindRoute(context.Background(), g, nil, cell(0, 0), goals)
		if want < 0 {
			require.ErrorIs(t, err, domain.ErrUnreachable, "iteration %d", i)
			continue
		}
		require.NoError(t, err, "iteration %d", i)
		// Hazard-free unit costs: weighted cost equals the unweighted shortest path.
		require.Equal(t, float64(want), res.Cost, "iteration %d", i)
		require.Len(t, res.Cells, want+1, "iteration %d", i)
	}
}

func TestFindRoute_FarHazardAddsNothing(t *testing.T) {
	g := mustGrid(t, navgrid.Uniform("open", 30, 30, 1))
	field := hazard.NewField(g, hazard.Config{Radius: 3, PeakPenalty: 100, LethalRadius: 1})
	field.Update(cell(25, 2))
	res, err := pathfinding.NewEngine().FindRoute(context.Background(), g, field, cell(0, 0), []domain.Cell{cell(5, 5)})
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Cost)
}

func TestFindRoute_RadiusMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	engine := pathfinding.NewEngine()

	for i := 0; i < 40; i++ {
		g := randomGrid(t, rng, 8, 8, domain.FourConnected)
		goals := []domain.Cell{cell(7, 7), cell(7, 0)}
		if bfs(g, cell(0, 0), goals) < 0 {
			continue
		}
		center := cell(rng.Intn(8), rng.Intn(8))

		prev := -1.0
		for _, radius := range []float64{0, 1, 2, 3, 5, 8} {
			field := hazard.NewField(g, hazard.Config{Radius: radius, PeakPenalty: 6, LethalRadius: -1})
			field.Update(center)
			res, err := engine.FindRoute(context.Background(), g, field, cell(0, 0), goals)
			require.NoError(t, err)
			require.GreaterOrEqual(t, res.Cost, prev, "iteration %d radius %v", i, radius)
			prev = res.Cost
		}
	}
}
