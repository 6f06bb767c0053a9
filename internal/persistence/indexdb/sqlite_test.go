package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwellers.ai/internal/sim/catalogs"
	"dwellers.ai/internal/sim/grid"
	"dwellers.ai/internal/sim/tasks"
	"dwellers.ai/internal/sim/tuning"
	"dwellers.ai/internal/sim/world"
)

func openTemp(t *testing.T) *SQLiteIndex {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index", "world.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteIndex_TaskLifecycle(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	c := grid.C(4, 2)

	ev := func(tick uint64, kind world.EventKind, agent tasks.AgentID) world.Event {
		return world.Event{Tick: tick, Kind: kind, Agent: agent, Task: "t-1", TaskKind: tasks.KindDig, Priority: 3, Cell: &c}
	}
	for _, e := range []world.Event{
		ev(1, world.EventTaskAdded, ""),
		ev(2, world.EventTaskAssigned, "D1"),
		ev(5, world.EventTaskAbandoned, "D1"),
		ev(6, world.EventTaskAssigned, "D2"),
		ev(9, world.EventTaskCompleted, "D2"),
	} {
		require.NoError(t, s.WriteEvent(e))
	}
	require.NoError(t, s.Flush(ctx))

	row, err := s.Task(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "DIG", row.Kind)
	assert.Equal(t, 3, row.Priority)
	assert.Equal(t, "COMPLETED", row.State)
	assert.Empty(t, row.Owner)
	assert.Equal(t, uint64(1), row.AddedTick)
	assert.Equal(t, uint64(6), row.AssignedTick)
	assert.Equal(t, uint64(9), row.DoneTick)
	assert.Equal(t, 2, row.Assignments)
	assert.Equal(t, 1, row.Abandons)

	states, err := s.TaskStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"COMPLETED": 1}, states)

	byAgent, err := s.EventCounts(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"TASK_ASSIGNED": 1, "TASK_ABANDONED": 1}, byAgent)

	_, err = s.Task(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoRow)
	assert.Equal(t, uint64(5), s.Stats().WrittenTotal)
}

func TestSQLiteIndex_ChunkEvents(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	k := grid.ChunkKey{CX: 1, CY: -2}
	require.NoError(t, s.WriteEvent(world.Event{Tick: 1, Kind: world.EventChunkLoad, Chunk: &k}))
	require.NoError(t, s.WriteEvent(world.Event{Tick: 2, Kind: world.EventChunkUnload, Chunk: &k}))
	require.NoError(t, s.Flush(ctx))

	counts, err := s.EventCounts(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"CHUNK_LOAD": 1, "CHUNK_UNLOAD": 1}, counts)

	states, err := s.TaskStates(ctx)
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	s := openTemp(t)
	cats, err := catalogs.Default()
	require.NoError(t, err)
	require.NoError(t, s.UpsertCatalogs(cats, tuning.Defaults()))
	require.NoError(t, s.UpsertCatalogs(cats, tuning.Defaults()))

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM catalogs`).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestSQLiteIndex_DropsWhenQueueFull(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	require.NoError(t, s.WriteEvent(world.Event{Tick: 1, Kind: world.EventSpawn}))
	require.NoError(t, s.WriteEvent(world.Event{Tick: 2, Kind: world.EventSpawn}))

	st := s.Stats()
	assert.Equal(t, uint64(1), st.DropTotal)
	assert.Equal(t, 1, st.QueueDepth)
}

func TestSQLiteIndex_ClosedIsNoop(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "w.sqlite"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.NoError(t, s.WriteEvent(world.Event{Kind: world.EventSpawn}))
	assert.NoError(t, s.Flush(context.Background()))
}
