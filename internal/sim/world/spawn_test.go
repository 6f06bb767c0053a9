package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwellers.ai/internal/sim/catalogs"
	"dwellers.ai/internal/sim/grid"
	"dwellers.ai/internal/sim/tasks"
)

func TestSpawnDwellers_AtChunkCenter(t *testing.T) {
	w, _ := openWorld(t, 16, 16)
	sink := &recorder{}
	w.AddEventSink(sink)

	got, err := w.SpawnDwellers(grid.ChunkKey{}, []string{"Alice", "Bob", "Charlie"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, a := range got {
		assert.Equal(t, grid.C(8, 8), w.CellOf(a))
		assert.Equal(t, KindDweller, a.Kind)
		assert.Equal(t, w.tun.DwellerSpeed, a.Speed)
	}
	assert.Equal(t, []string{"Alice", "Bob", "Charlie"}, []string{got[0].Name, got[1].Name, got[2].Name})
	assert.Equal(t, tasks.AgentID("D1"), got[0].ID)
	assert.Equal(t, 3, sink.count(EventSpawn))
}

func TestSpawnDwellers_SearchesOutward(t *testing.T) {
	// Rock covering x<=9 pushes the first clear 3x3 to x=11.
	var rock []grid.Cell
	for y := 0; y < 16; y++ {
		for x := 0; x <= 9; x++ {
			rock = append(rock, grid.C(x, y))
		}
	}
	w, _ := openWorld(t, 16, 16, rock...)

	got, err := w.SpawnDwellers(grid.ChunkKey{}, []string{"Alice"})
	require.NoError(t, err)
	c := w.CellOf(got[0])
	assert.Equal(t, 11, c.X)
	assert.True(t, grid.ClearAround(w.tiles, c))
}

func TestSpawnDwellers_NoLocation(t *testing.T) {
	w, _ := openWorld(t, 0, 0)
	sink := &recorder{}
	w.AddEventSink(sink)

	got, err := w.SpawnDwellers(grid.ChunkKey{}, []string{"Alice"})
	assert.ErrorIs(t, err, ErrNoSpawnLocation)
	assert.Empty(t, got)
	assert.Empty(t, w.Dwellers())
	assert.Equal(t, []EventKind{EventSpawnFailed}, sink.kinds())
}

func TestSpawnMobs_CountsFollowCatalog(t *testing.T) {
	w, _ := openWorld(t, 16, 16)
	got, err := w.SpawnMobs(grid.ChunkKey{})
	require.NoError(t, err)

	counts := map[string]int{}
	for _, m := range got {
		counts[m.MobType]++
		def, ok := w.catalogs.Mob(m.MobType)
		require.True(t, ok)
		assert.Equal(t, def.Speed, m.Speed)
		assert.Equal(t, def.Loot, m.Loot)
		assert.True(t, grid.ClearAround(w.tiles, w.CellOf(m)))
	}
	assert.GreaterOrEqual(t, counts["sheep"], 1)
	assert.LessOrEqual(t, counts["sheep"], 7)
	assert.GreaterOrEqual(t, counts["boar"], 1)
	assert.LessOrEqual(t, counts["boar"], 5)
	assert.Len(t, w.Mobs(), len(got))
}

func TestSpawnMobs_FixedCount(t *testing.T) {
	cats, err := catalogs.Parse([]byte(`
objects:
  - id: wool
mobs:
  - id: sheep
    speed: 40
    loot: wool
    spawn_min: 3
    spawn_max: 3
`))
	require.NoError(t, err)
	w, _ := openWorld(t, 16, 16)
	w.catalogs = cats

	got, err := w.SpawnMobs(grid.ChunkKey{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSpawnMobAt_UnknownMob(t *testing.T) {
	w, _ := openWorld(t, 4, 4)
	_, err := w.SpawnMobAt("dragon", grid.C(1, 1))
	assert.Error(t, err)
	assert.Empty(t, w.Mobs())
}

func TestDespawn_ReleasesTasks(t *testing.T) {
	w, _ := openWorld(t, 10, 10)
	a := w.SpawnDwellerAt("Alice", grid.C(0, 0), "")
	b := w.SpawnDwellerAt("Bob", grid.C(9, 9), "")
	task := tasks.NewWalk(grid.C(5, 0), 1)
	w.AddTask(task)
	w.DecideTick()
	require.Equal(t, a.ID, task.Owner)

	assert.True(t, w.Despawn(a.ID))
	assert.False(t, w.Despawn(a.ID))
	assert.Empty(t, task.Owner)
	_, ok := w.Agent(a.ID)
	assert.False(t, ok)
	assert.Equal(t, []*Agent{b}, w.Dwellers())
}
