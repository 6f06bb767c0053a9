package world

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"dwellers.ai/internal/sim/catalogs"
	"dwellers.ai/internal/sim/grid"
	"dwellers.ai/internal/sim/tuning"
)

const testChunk = 16

// boundedMap is a w x h open field; everything outside is solid.
func boundedMap(t *testing.T, cats *catalogs.Catalogs, w, h int, blocked ...grid.Cell) *grid.TileMap {
	t.Helper()
	solid := map[grid.Cell]bool{}
	for _, c := range blocked {
		solid[c] = true
	}
	m := grid.NewTileMap(testChunk, grid.GeneratorFunc(func(c grid.Cell) grid.Tile {
		out := c.X < 0 || c.Y < 0 || c.X >= w || c.Y >= h
		return grid.Tile{Solid: out || solid[c]}
	}), cats.Blocking)
	m.LoadAround(grid.ChunkKey{}, 1)
	return m
}

func testTuning() tuning.Tuning {
	tun := tuning.Defaults()
	tun.ChunkSize = testChunk
	tun.SpawnMobsOnNewChunks = false
	tun.SpawnSearchRadius = 8
	return tun
}

func newTestWorld(t *testing.T, m *grid.TileMap, rng Rand) *World {
	t.Helper()
	cats, err := catalogs.Default()
	require.NoError(t, err)
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	cfg := WorldConfig{
		ID:     "test",
		Seed:   1,
		Tuning: testTuning(),
		Rand:   rng,
	}
	if m != nil {
		cfg.Tiles = m
		cfg.Chunks = m
	}
	w, err := New(cfg, cats)
	require.NoError(t, err)
	return w
}

func openWorld(t *testing.T, width, height int, blocked ...grid.Cell) (*World, *grid.TileMap) {
	t.Helper()
	cats, err := catalogs.Default()
	require.NoError(t, err)
	m := boundedMap(t, cats, width, height, blocked...)
	return newTestWorld(t, m, nil), m
}

// fixedRand returns scripted values.
type fixedRand struct {
	f float64
	n int
}

func (r *fixedRand) Float64() float64 { return r.f }
func (r *fixedRand) Intn(n int) int {
	if r.n >= n {
		return n - 1
	}
	return r.n
}

// recorder is an in-memory EventSink.
type recorder struct{ events []Event }

func (r *recorder) WriteEvent(e Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) kinds() []EventKind {
	out := make([]EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func (r *recorder) count(k EventKind) int {
	n := 0
	for _, e := range r.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// walkUntilIdle runs movement ticks until the agent's queue drains and
// returns the number of arrivals.
func walkUntilIdle(t *testing.T, w *World, a *Agent) int {
	t.Helper()
	dt := w.tun.MovementStep()
	arrivals := 0
	for i := 0; i < 10000 && !a.Idle(); i++ {
		arrivals += w.Move(dt)
	}
	require.True(t, a.Idle(), "agent never arrived")
	return arrivals
}
