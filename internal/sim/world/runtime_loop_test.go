package world

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwellers.ai/internal/observerproto"
	"dwellers.ai/internal/sim/grid"
	"dwellers.ai/internal/sim/tasks"
)

func TestRun_ProcessesRequestsAndStreamsFrames(t *testing.T) {
	w, _ := openWorld(t, 16, 16)
	w.tun.DecisionIntervalMs = 10
	w.tun.MovementHz = 200
	w.tun.StreamingIntervalMs = 50
	w.tun.RefreshIntervalMs = 50

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	frames := make(chan []byte, 8)
	w.ObserverJoin() <- ObserverJoinRequest{SessionID: "O1", Out: frames}
	w.SpawnRequests() <- SpawnRequest{Chunk: grid.ChunkKey{}, Names: []string{"Alice"}}
	ids := make(chan string, 1)
	w.TaskRequests() <- TaskRequest{Task: tasks.NewWalk(grid.C(12, 12), 1), ID: ids}

	var taskID string
	select {
	case taskID = <-ids:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not registered")
	}

	deadline := time.After(5 * time.Second)
	for owned := false; !owned; {
		select {
		case b, ok := <-frames:
			require.True(t, ok)
			var f observerproto.FrameMsg
			require.NoError(t, json.Unmarshal(b, &f))
			assert.Equal(t, "FRAME", f.Type)
			for _, ts := range f.Tasks {
				if ts.ID == taskID && ts.Owner == "D1" {
					owned = true
				}
			}
		case <-deadline:
			t.Fatal("no frame showed the task assigned")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	// Observers are closed on shutdown.
	for range frames {
	}
}

func TestRun_Stop(t *testing.T) {
	w, _ := openWorld(t, 4, 4)
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()
	w.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestStepOnce_AdvancesTickAndMoves(t *testing.T) {
	w, _ := openWorld(t, 10, 10)
	a := w.SpawnDwellerAt("Alice", grid.C(0, 0), "")
	w.AddTask(tasks.NewWalk(grid.C(9, 0), 1))

	assert.Equal(t, uint64(1), w.StepOnce())
	assert.Greater(t, a.Pos.X, 0.0)
	assert.Equal(t, uint64(2), w.StepOnce())
}

func TestStats_Published(t *testing.T) {
	w, _ := openWorld(t, 10, 10)
	w.SpawnDwellerAt("Alice", grid.C(0, 0), "")
	_, err := w.SpawnMobAt("sheep", grid.C(5, 5))
	require.NoError(t, err)
	w.AddTask(tasks.NewWalk(grid.C(9, 0), 1))
	w.DecideTick()

	s := w.Stats()
	assert.Equal(t, uint64(1), s.Tick)
	assert.Equal(t, 1, s.Dwellers)
	assert.Equal(t, 1, s.Mobs)
	assert.Equal(t, 1, s.Tasks)
	assert.Equal(t, 1, s.Assigned)
	assert.Equal(t, 9, s.LoadedChunks)
}

func TestFrame_FocusLimitsAgents(t *testing.T) {
	w, _ := openWorld(t, 10, 10)
	a := w.SpawnDwellerAt("Alice", grid.C(1, 2), "wood")
	w.SpawnDwellerAt("Bob", grid.C(3, 3), "")

	f := w.Frame(string(a.ID))
	require.Len(t, f.Agents, 1)
	assert.Equal(t, "Alice", f.Agents[0].Name)
	assert.Equal(t, [2]int{1, 2}, f.Agents[0].Cell)
	assert.Equal(t, [2]float64{16, 32}, f.Agents[0].Pos)
	assert.Equal(t, "wood", f.Agents[0].Carrying)
	assert.Len(t, w.Frame("").Agents, 2)
}
