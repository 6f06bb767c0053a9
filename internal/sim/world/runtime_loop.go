package world

import (
	"context"
	"time"

	"dwellers.ai/internal/sim/tasks"
)

// TaskRequest submits a task from outside the world loop. ID, if set,
// receives the registered task id.
type TaskRequest struct {
	Task *tasks.Task
	ID   chan<- string
}

func (w *World) SpawnRequests() chan<- SpawnRequest { return w.spawnReq }
func (w *World) TaskRequests() chan<- TaskRequest   { return w.taskReq }

// Run drives the world on independent cadences until ctx is done or Stop is
// called. The decision, movement, streaming and refresh systems never run
// concurrently with each other.
func (w *World) Run(ctx context.Context) error {
	decide := time.NewTicker(w.tun.DecisionInterval())
	defer decide.Stop()
	move := time.NewTicker(w.tun.MovementInterval())
	defer move.Stop()
	stream := time.NewTicker(w.tun.StreamingInterval())
	defer stream.Stop()
	refresh := time.NewTicker(w.tun.RefreshInterval())
	defer refresh.Stop()

	dt := w.tun.MovementStep()
	w.log.Info().
		Dur("decide", w.tun.DecisionInterval()).
		Int("movement_hz", w.tun.MovementHz).
		Dur("stream", w.tun.StreamingInterval()).
		Msg("world loop started")

	for {
		select {
		case <-ctx.Done():
			w.closeObservers()
			return ctx.Err()
		case <-w.stop:
			w.closeObservers()
			return nil
		case req := <-w.spawnReq:
			w.handleSpawnRequest(req)
		case req := <-w.taskReq:
			id := w.AddTask(req.Task)
			if req.ID != nil {
				select {
				case req.ID <- id.String():
				default:
				}
			}
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case <-move.C:
			w.Move(dt)
		case <-decide.C:
			w.DecideTick()
		case <-stream.C:
			w.StreamChunks()
			w.FlushSpawns()
		case <-refresh.C:
			w.RefreshTasks()
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce runs one decision tick followed by enough movement ticks to cover
// one decision interval. Headless runs and tests use it.
func (w *World) StepOnce() uint64 {
	w.DecideTick()
	n := w.tun.MovementHz * w.tun.DecisionIntervalMs / 1000
	if n < 1 {
		n = 1
	}
	dt := w.tun.MovementStep()
	for i := 0; i < n; i++ {
		w.Move(dt)
	}
	return w.tick.Load()
}

func (w *World) closeObservers() {
	for id := range w.observers {
		w.handleObserverLeave(id)
	}
}
