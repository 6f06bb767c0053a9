package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwellers.ai/internal/sim/grid"
)

func TestStreamChunks_NoDwellersNoUnloads(t *testing.T) {
	w, m := openWorld(t, 10, 10)
	before := m.LoadedChunks()
	require.Len(t, before, 9)
	_, err := w.SpawnMobAt("sheep", grid.C(2, 2))
	require.NoError(t, err)

	loads, unloads := w.StreamChunks()
	assert.Empty(t, loads)
	assert.Empty(t, unloads)
	assert.Equal(t, before, m.LoadedChunks())
}

func TestStreamChunks_LoadsAroundDwellersDeduped(t *testing.T) {
	w, m := openWorld(t, 10, 10)
	w.SpawnDwellerAt("Alice", grid.C(1, 1), "")
	w.SpawnDwellerAt("Bob", grid.C(5, 5), "")

	loads, unloads := w.StreamChunks()
	assert.Len(t, loads, 9)
	seen := map[grid.ChunkKey]bool{}
	for _, k := range loads {
		require.False(t, seen[k], "duplicate load %v", k)
		seen[k] = true
	}
	assert.Empty(t, unloads)
	assert.Len(t, m.LoadedChunks(), 9)
}

func TestStreamChunks_UnloadsUntouchedChunks(t *testing.T) {
	w, m := openWorld(t, 10, 10)
	sink := &recorder{}
	w.AddEventSink(sink)
	far := grid.ChunkKey{CX: 5, CY: 5}
	m.LoadChunk(far)
	a := w.SpawnDwellerAt("Alice", grid.C(1, 1), "")

	_, unloads := w.StreamChunks()
	assert.Equal(t, []grid.ChunkKey{far}, unloads)
	assert.False(t, m.IsLoaded(far))
	assert.Equal(t, 1, sink.count(EventChunkUnload))

	// Move the dweller two chunks east: the west column goes away and the
	// east column appears.
	a.Pos = cellPos(grid.C(2*testChunk+1, 1), w.tun.TileSize)
	loads, unloads := w.StreamChunks()
	assert.Len(t, loads, 9)
	assert.Len(t, unloads, 6)
	assert.True(t, m.IsLoaded(grid.ChunkKey{CX: 3, CY: 0}))
	assert.False(t, m.IsLoaded(grid.ChunkKey{CX: -1, CY: 0}))
}

func TestStreamChunks_FreshChunksQueueMobs(t *testing.T) {
	w, m := openWorld(t, 1000, 1000)
	w.tun.SpawnMobsOnNewChunks = true
	a := w.SpawnDwellerAt("Alice", grid.C(1, 1), "")
	w.StreamChunks()
	assert.Empty(t, w.pendingMobChunks, "already generated chunks spawn nothing")

	a.Pos = cellPos(grid.C(2*testChunk+1, 1), w.tun.TileSize)
	w.StreamChunks()
	// Columns CX=2 and CX=3 are new.
	assert.Len(t, w.pendingMobChunks, 6)

	n := w.FlushSpawns()
	// Chunks at negative Y are mostly solid and may fail; the four open ones
	// spawn at least one sheep and one boar each.
	assert.GreaterOrEqual(t, n, 4*2)
	assert.Len(t, w.Mobs(), n)
	assert.Empty(t, w.pendingMobChunks)
	assert.True(t, m.IsLoaded(grid.ChunkKey{CX: 3, CY: 1}))
}

func TestStreamChunks_MissingStreamerSkips(t *testing.T) {
	w := newTestWorld(t, nil, nil)
	loads, unloads := w.StreamChunks()
	assert.Nil(t, loads)
	assert.Nil(t, unloads)
	w.DecideTick()
	assert.Zero(t, w.CurrentTick())
}
