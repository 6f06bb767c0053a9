package world

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwellers.ai/internal/sim/grid"
	"dwellers.ai/internal/sim/tasks"
)

func TestDecide_OpenGridWalkCompletesAfterPathLength(t *testing.T) {
	w, _ := openWorld(t, 10, 10)
	a := w.SpawnDwellerAt("Alice", grid.C(0, 0), "")
	task := tasks.NewWalk(grid.C(5, 5), 1)
	w.AddTask(task)

	signals := 0
	w.Handle(tasks.KindWalk, func(_ *World, got *Agent, tk *tasks.Task) error {
		assert.Equal(t, a.ID, got.ID)
		assert.Equal(t, task.ID, tk.ID)
		signals++
		return nil
	})

	w.DecideTick()
	assert.Equal(t, a.ID, task.Owner)
	require.Len(t, a.Queue, 10)

	dt := w.tun.MovementStep()
	arrivals := 0
	for i := 0; i < 10000 && arrivals < 10; i++ {
		if w.Move(dt) > 0 {
			arrivals++
			w.DecideTick()
			if arrivals < 10 {
				require.Zero(t, signals, "signalled after %d arrivals", arrivals)
			}
		}
	}
	assert.Equal(t, 10, arrivals)
	assert.Equal(t, 1, signals)
	assert.Equal(t, grid.C(5, 5), w.CellOf(a))
	_, ok := w.tasks.Get(task.ID)
	assert.False(t, ok, "completed task is removed")
}

func TestDecide_UnhandledKindSignalsEveryTick(t *testing.T) {
	w, _ := openWorld(t, 10, 10)
	a := w.SpawnDwellerAt("Alice", grid.C(2, 2), "")
	task := tasks.NewWalk(grid.C(2, 2), 1)
	w.AddTask(task)
	w.Handle(tasks.KindWalk, nil)

	for i := 0; i < 3; i++ {
		w.DecideTick()
	}
	got, ok := w.TaskOf(a.ID)
	require.True(t, ok)
	assert.Equal(t, task.ID, got.ID)
	assert.True(t, a.Idle())
}

func TestDecide_PriorityThenFartherPath(t *testing.T) {
	w, _ := openWorld(t, 10, 10)
	a := w.SpawnDwellerAt("Alice", grid.C(0, 0), "")
	near := tasks.NewWalk(grid.C(2, 0), 1)
	far := tasks.NewWalk(grid.C(0, 5), 1)
	w.AddTask(near)
	w.AddTask(far)

	w.DecideTick()
	assert.Equal(t, a.ID, far.Owner)
	assert.Empty(t, near.Owner)
	assert.Len(t, a.Queue, 5)

	b := w.SpawnDwellerAt("Bob", grid.C(0, 0), "")
	urgent := tasks.NewWalk(grid.C(1, 2), 5)
	w.AddTask(urgent)
	w.DecideTick()
	assert.Equal(t, b.ID, urgent.Owner)
}

func TestDecide_BlockedTargetsAbandonTask(t *testing.T) {
	w, m := openWorld(t, 10, 10)
	sink := &recorder{}
	w.AddEventSink(sink)
	a := w.SpawnDwellerAt("Alice", grid.C(0, 0), "")
	task := tasks.NewWalk(grid.C(5, 5), 1)
	w.AddTask(task)

	w.DecideTick()
	require.Equal(t, a.ID, task.Owner)
	w.Move(w.tun.MovementStep())
	require.False(t, a.Idle())

	m.Set(grid.C(5, 5), grid.Tile{Solid: true})
	w.DecideTick()

	assert.Empty(t, task.Owner)
	assert.Equal(t, tasks.StateUnassigned, task.State())
	assert.True(t, a.Idle())
	assert.Equal(t, 1, sink.count(EventTaskAbandoned))
}

func TestDecide_RefreshEmptiesReachableThenAbandon(t *testing.T) {
	w, m := openWorld(t, 10, 10)
	a := w.SpawnDwellerAt("Alice", grid.C(0, 0), "")
	task := tasks.NewDig(grid.C(5, 5), 1)
	w.AddTask(task)
	require.Len(t, task.Reachable, 4)

	w.DecideTick()
	require.Equal(t, a.ID, task.Owner)
	walkUntilIdle(t, w, a)

	for _, c := range []grid.Cell{grid.C(4, 5), grid.C(6, 5), grid.C(5, 4), grid.C(5, 6)} {
		m.Set(c, grid.Tile{Solid: true})
	}
	w.RefreshTasks()
	assert.Empty(t, task.Reachable)

	// The dweller stood on a neighbor that is now solid; it is no longer on
	// a reachable cell and cannot route anywhere.
	w.DecideTick()
	assert.Empty(t, task.Owner)
}

func TestDecide_ReplansAroundBlockedWaypoint(t *testing.T) {
	w, m := openWorld(t, 10, 3)
	a := w.SpawnDwellerAt("Alice", grid.C(0, 1), "")
	task := tasks.NewWalk(grid.C(6, 1), 1)
	w.AddTask(task)

	w.DecideTick()
	require.Len(t, a.Queue, 6)
	require.Contains(t, a.Queue, grid.C(3, 1))

	m.Set(grid.C(3, 1), grid.Tile{Solid: true})
	w.DecideTick()

	assert.Equal(t, a.ID, task.Owner)
	assert.NotContains(t, a.Queue, grid.C(3, 1))
	assert.Len(t, a.Queue, 8)
	requireQueueWalkable(t, w, a)
}

func TestDecide_ReplanStartsFromLastReachedCell(t *testing.T) {
	w, m := openWorld(t, 10, 3)
	a := w.SpawnDwellerAt("Alice", grid.C(0, 1), "")
	task := tasks.NewWalk(grid.C(6, 1), 1)
	w.AddTask(task)
	w.DecideTick()

	// Stop past the middle of the step from (2,1) to (3,1).
	half := 2.5 * w.tun.TileSize
	dt := w.tun.MovementStep()
	for i := 0; i < 10000 && (a.Reached != grid.C(2, 1) || a.Pos.X <= half); i++ {
		w.Move(dt)
	}
	require.Equal(t, grid.C(2, 1), a.Reached)
	require.Equal(t, grid.C(3, 1), w.CellOf(a))

	m.Set(grid.C(3, 1), grid.Tile{Solid: true})
	w.DecideTick()

	assert.Equal(t, a.ID, task.Owner)
	next, ok := a.Next()
	require.True(t, ok)
	assert.Equal(t, grid.C(2, 1), next, "walks back before detouring")
	assert.NotContains(t, a.Queue, grid.C(3, 1))
	requireQueueWalkable(t, w, a)

	walkUntilIdle(t, w, a)
	assert.Equal(t, grid.C(6, 1), a.Reached)
	assert.Equal(t, grid.C(6, 1), w.CellOf(a))
}

func TestDecide_EnclosedAgentStaysPut(t *testing.T) {
	var walls []grid.Cell
	for _, d := range grid.Dirs8 {
		walls = append(walls, grid.C(5, 5).Add(d))
	}
	w, _ := openWorld(t, 10, 10, walls...)
	a := w.SpawnDwellerAt("Alice", grid.C(5, 5), "")
	m, err := w.SpawnMobAt("sheep", grid.C(5, 5))
	require.NoError(t, err)
	w.rng = &fixedRand{f: 0}

	for i := 0; i < 50; i++ {
		w.DecideTick()
		w.Move(w.tun.MovementStep())
		require.True(t, a.Idle())
		require.True(t, m.Idle())
	}
	assert.Equal(t, grid.C(5, 5), w.CellOf(a))
}

func TestDecide_DwellerWandersWithoutTasks(t *testing.T) {
	w, _ := openWorld(t, 10, 10)
	w.rng = &fixedRand{n: 4}
	a := w.SpawnDwellerAt("Alice", grid.C(5, 5), "")

	w.DecideTick()
	require.Len(t, a.Queue, 1)
	// Fifth entry of the 8-neighborhood order.
	assert.Equal(t, grid.C(6, 6), a.Queue[0])
}

func TestDecide_MobWanderIsGated(t *testing.T) {
	w, _ := openWorld(t, 10, 10)
	r := &fixedRand{f: 0.5}
	w.rng = r
	m, err := w.SpawnMobAt("boar", grid.C(5, 5))
	require.NoError(t, err)

	w.DecideTick()
	assert.True(t, m.Idle())

	r.f = 0.1
	w.DecideTick()
	require.Len(t, m.Queue, 1)
	assert.True(t, grid.Adjacent8(grid.C(5, 5), m.Queue[0]))
}

func TestDecide_MobsNeverTakeTasks(t *testing.T) {
	w, _ := openWorld(t, 10, 10)
	w.rng = &fixedRand{f: 0.9}
	_, err := w.SpawnMobAt("sheep", grid.C(0, 0))
	require.NoError(t, err)
	task := tasks.NewWalk(grid.C(3, 3), 1)
	w.AddTask(task)

	w.DecideTick()
	assert.Empty(t, task.Owner)
}

func TestDecide_CarriedObjectFiltersTasks(t *testing.T) {
	w, m := openWorld(t, 10, 10)
	m.Set(grid.C(3, 0), grid.Tile{Object: "stone"})
	a := w.SpawnDwellerAt("Alice", grid.C(0, 0), "wood")
	pickup := tasks.NewPickup(grid.C(3, 0), 9)
	stock := tasks.NewStockpile(grid.C(0, 4), 1)
	w.AddTask(pickup)
	w.AddTask(stock)

	w.DecideTick()
	assert.Empty(t, pickup.Owner)
	assert.Equal(t, a.ID, stock.Owner)
}

func TestDecide_AtMostOneOwnerAndWalkableQueues(t *testing.T) {
	w, _ := openWorld(t, 16, 16, grid.C(4, 4), grid.C(4, 5), grid.C(4, 6), grid.C(9, 9))
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 4; i++ {
		w.SpawnDwellerAt("D", grid.C(rng.Intn(3), rng.Intn(3)), "")
	}
	for i := 0; i < 12; i++ {
		w.AddTask(tasks.NewWalk(grid.C(rng.Intn(16), rng.Intn(16)), rng.Intn(3)))
	}

	for step := 0; step < 200; step++ {
		w.DecideTick()
		owners := map[tasks.AgentID]int{}
		for _, tk := range w.tasks.All() {
			if tk.Owner != "" {
				owners[tk.Owner]++
			}
		}
		for id, n := range owners {
			require.LessOrEqual(t, n, 1, "agent %s owns %d tasks", id, n)
		}
		for _, a := range w.Dwellers() {
			requireQueueWalkable(t, w, a)
		}
		for i := 0; i < 13; i++ {
			w.Move(w.tun.MovementStep())
		}
	}
}

func requireQueueWalkable(t *testing.T, w *World, a *Agent) {
	t.Helper()
	for i := len(a.Queue) - 1; i > 0; i-- {
		require.True(t, grid.Adjacent8(a.Queue[i], a.Queue[i-1]), "queue of %s not contiguous", a.ID)
	}
	for _, c := range a.Queue {
		require.True(t, w.tiles.IsPassable(c), "queue of %s crosses %v", a.ID, c)
	}
}
