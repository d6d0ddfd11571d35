package hazard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/safespot/internal/core/domain"
	"github.com/samirrijal/safespot/internal/core/hazard"
	"github.com/samirrijal/safespot/internal/core/navgrid"
)

func newGrid(t *testing.T, rows, cols int) *navgrid.Grid {
	t.Helper()
	g, err := navgrid.New(navgrid.Uniform("t", rows, cols, 1))
	require.NoError(t, err)
	return g
}

func TestField_EmptyHasNoPenalty(t *testing.T) {
	f := hazard.NewField(newGrid(t, 5, 5), hazard.Config{Radius: 3, PeakPenalty: 10, LethalRadius: -1})
	_, ok := f.Center()
	assert.False(t, ok)
	assert.Zero(t, f.PenaltyAt(domain.Cell{Row: 2, Col: 2}))
	assert.False(t, f.Blocked(domain.Cell{Row: 2, Col: 2}))
}

func TestField_PenaltyDecreasesWithDistance(t *testing.T) {
	f := hazard.NewField(newGrid(t, 11, 11), hazard.Config{Radius: 4, PeakPenalty: 20, LethalRadius: -1})
	f.Update(domain.Cell{Row: 5, Col: 5})

	assert.Equal(t, 20.0, f.PenaltyAt(domain.Cell{Row: 5, Col: 5}))
	prev := f.PenaltyAt(domain.Cell{Row: 5, Col: 5})
	for col := 6; col <= 8; col++ {
		p := f.PenaltyAt(domain.Cell{Row: 5, Col: col})
		assert.Less(t, p, prev, "col %d", col)
		assert.Greater(t, p, 0.0)
		prev = p
	}
	assert.Zero(t, f.PenaltyAt(domain.Cell{Row: 5, Col: 9}), "distance == radius")
	assert.Zero(t, f.PenaltyAt(domain.Cell{Row: 5, Col: 10}))
	assert.Zero(t, f.PenaltyAt(domain.Cell{Row: 8, Col: 8}), "diagonal distance beyond radius")
}

func TestField_MoveResetsPreviousFootprint(t *testing.T) {
	f := hazard.NewField(newGrid(t, 20, 20), hazard.Config{Radius: 2, PeakPenalty: 5, LethalRadius: 0})
	f.Update(domain.Cell{Row: 2, Col: 2})
	require.True(t, f.Blocked(domain.Cell{Row: 2, Col: 2}))
	require.Greater(t, f.PenaltyAt(domain.Cell{Row: 3, Col: 2}), 0.0)

	f.Update(domain.Cell{Row: 15, Col: 15})
	assert.False(t, f.Blocked(domain.Cell{Row: 2, Col: 2}))
	assert.Zero(t, f.PenaltyAt(domain.Cell{Row: 2, Col: 2}))
	assert.Zero(t, f.PenaltyAt(domain.Cell{Row: 3, Col: 2}))
	assert.True(t, f.Blocked(domain.Cell{Row: 15, Col: 15}))

	c, ok := f.Center()
	require.True(t, ok)
	assert.Equal(t, domain.Cell{Row: 15, Col: 15}, c)

	f.Clear()
	assert.Zero(t, f.PenaltyAt(domain.Cell{Row: 15, Col: 15}))
	assert.False(t, f.Blocked(domain.Cell{Row: 15, Col: 15}))
}

func TestField_EdgeOfGrid(t *testing.T) {
	f := hazard.NewField(newGrid(t, 3, 3), hazard.Config{Radius: 5, PeakPenalty: 10, LethalRadius: 1})
	f.Update(domain.Cell{Row: 0, Col: 0})
	assert.True(t, f.Blocked(domain.Cell{Row: 0, Col: 1}))
	assert.False(t, f.Blocked(domain.Cell{Row: 1, Col: 1}), "sqrt(2) > lethal radius")
	assert.Greater(t, f.PenaltyAt(domain.Cell{Row: 2, Col: 2}), 0.0)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, hazard.Config{Radius: 3, PeakPenalty: 10, LethalRadius: -1}.Validate())
	assert.Error(t, hazard.Config{Radius: -1, PeakPenalty: 10}.Validate())
	assert.Error(t, hazard.Config{Radius: 1, PeakPenalty: -2}.Validate())
}
