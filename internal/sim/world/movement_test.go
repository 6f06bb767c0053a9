package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwellers.ai/internal/sim/grid"
	"dwellers.ai/internal/sim/pathfind"
)

func TestMove_ZeroDtIsNoop(t *testing.T) {
	w, _ := openWorld(t, 10, 10)
	a := w.SpawnDwellerAt("Alice", grid.C(1, 1), "")
	a.Queue = []grid.Cell{grid.C(3, 1), grid.C(2, 1)}
	a.Pos = Vec2{X: 20, Y: 16}
	before := *a
	queue := append([]grid.Cell(nil), a.Queue...)

	assert.Zero(t, w.Move(0))
	assert.Zero(t, w.Move(-1))
	assert.Equal(t, before.Pos, a.Pos)
	assert.Equal(t, before.FlipX, a.FlipX)
	assert.Equal(t, queue, a.Queue)
}

func TestMove_SnapsAndPopsOnArrival(t *testing.T) {
	w, _ := openWorld(t, 10, 10)
	a := w.SpawnDwellerAt("Alice", grid.C(1, 1), "")
	a.Queue = []grid.Cell{grid.C(2, 1)}

	// 16 units at 80 u/s: 0.19s leaves 0.8 units, the next step snaps.
	w.Move(0.19)
	require.Len(t, a.Queue, 1)
	assert.InDelta(t, 16+15.2, a.Pos.X, 1e-9)
	assert.False(t, a.FlipX)

	assert.Equal(t, 1, w.Move(0.05))
	assert.Empty(t, a.Queue)
	assert.Equal(t, Vec2{X: 32, Y: 16}, a.Pos)
}

func TestMove_FacingFollowsHorizontalDirection(t *testing.T) {
	w, _ := openWorld(t, 10, 10)
	a := w.SpawnDwellerAt("Alice", grid.C(5, 5), "")

	a.Queue = []grid.Cell{grid.C(4, 5)}
	w.Move(0.01)
	assert.True(t, a.FlipX)

	a.Pos = cellPos(grid.C(5, 5), w.tun.TileSize)
	a.Queue = []grid.Cell{grid.C(6, 5)}
	w.Move(0.01)
	assert.False(t, a.FlipX)
}

func TestMove_WalkingAPathEndsInGoalSet(t *testing.T) {
	w, m := openWorld(t, 12, 12, grid.C(3, 0), grid.C(3, 1), grid.C(3, 2), grid.C(3, 3))
	a := w.SpawnDwellerAt("Alice", grid.C(0, 0), "")
	goals := []grid.Cell{grid.C(8, 1), grid.C(9, 9)}

	p, ok := pathfind.New(m, 0).Find(grid.C(0, 0), goals)
	require.True(t, ok)
	a.Queue = p.Queue()

	arrivals := walkUntilIdle(t, w, a)
	assert.Equal(t, p.Len(), arrivals)
	assert.Contains(t, goals, w.CellOf(a))
}
