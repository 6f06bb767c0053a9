package world

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"dwellers.ai/internal/sim/grid"
	"dwellers.ai/internal/sim/pathfind"
	"dwellers.ai/internal/sim/tasks"
)

type completion struct {
	agent *Agent
	task  *tasks.Task
}

// DecideTick runs one decision pass: dwellers in spawn order, then mobs.
// Completion signals are dispatched after the scan.
func (w *World) DecideTick() {
	if w.tiles == nil || w.finder == nil {
		w.log.Debug().Msg("no tile store, decision tick skipped")
		return
	}
	start := time.Now()
	w.tick.Add(1)

	var done []completion
	for _, a := range w.dwellers {
		if c, ok := w.decideDweller(a); ok {
			done = append(done, c)
		}
	}
	for _, m := range w.mobs {
		w.decideMob(m)
	}
	for _, c := range done {
		w.complete(c.agent, c.task)
	}

	ms := float64(time.Since(start).Microseconds()) / 1000
	w.metrics.decideMs.Record(context.Background(), ms)
	w.publishStats(ms)
	w.broadcastFrame()
}

func (w *World) decideDweller(a *Agent) (completion, bool) {
	if !a.Idle() {
		if w.queueValid(a) {
			return completion{}, false
		}
		w.log.Debug().Str("agent", a.Label()).Msg("waypoint blocked, replanning")
		a.Queue = nil
		defer w.stepBack(a)
	}
	at := a.Reached

	if t, ok := w.tasks.OwnedBy(a.ID); ok {
		if grid.Contains(t.Reachable, at) {
			return completion{agent: a, task: t}, true
		}
		if p, ok := w.route(at, t.Reachable); ok {
			a.Queue = p.Queue()
			add(w.metrics.repathed)
			w.emitTask(EventTaskRepathed, a.ID, t, "")
			w.log.Info().Str("agent", a.Label()).Stringer("task", t).Int("steps", p.Len()).Msg("re-pathed to task")
			return completion{}, false
		}
		w.tasks.Release(t.ID)
		add(w.metrics.abandoned)
		w.emitTask(EventTaskAbandoned, a.ID, t, "unreachable")
		w.log.Info().Str("agent", a.Label()).Stringer("task", t).Msg("gave up task")
		return completion{}, false
	}

	if c, ok := w.tasks.Acquire(a.ID, at, a.Carrying, routerFunc(w.route)); ok {
		a.Queue = c.Path.Queue()
		add(w.metrics.assigned, attribute.String("kind", string(c.Task.Kind)))
		w.emitTask(EventTaskAssigned, a.ID, c.Task, "")
		w.log.Debug().Str("agent", a.Label()).Stringer("task", c.Task).Int("steps", c.Path.Len()).Msg("got task")
		return completion{}, false
	}

	w.wander(a, at)
	return completion{}, false
}

func (w *World) decideMob(m *Agent) {
	if !m.Idle() {
		if w.queueValid(m) {
			return
		}
		m.Queue = nil
		defer w.stepBack(m)
	}
	if w.rng.Float64() >= w.tun.MobWanderChance {
		return
	}
	w.wander(m, m.Reached)
}

// wander queues one uniformly chosen passable neighbor out of the
// 8-neighborhood. Without one the agent stays put.
func (w *World) wander(a *Agent, at grid.Cell) {
	dirs := w.tiles.Neighbors(at, true)
	if len(dirs) == 0 {
		return
	}
	a.Queue = append(a.Queue[:0], dirs[w.rng.Intn(len(dirs))])
	add(w.metrics.wander, attribute.String("agent_kind", string(a.Kind)))
}

// stepBack sends an agent caught between cells back to the cell it last
// reached before it follows its new queue.
func (w *World) stepBack(a *Agent) {
	if a.Pos != cellPos(a.Reached, w.tun.TileSize) && w.tiles.IsPassable(a.Reached) {
		a.Queue = append(a.Queue, a.Reached)
	}
}

// queueValid reports whether every waypoint is still passable.
func (w *World) queueValid(a *Agent) bool {
	for _, c := range a.Queue {
		if !w.tiles.IsPassable(c) {
			return false
		}
	}
	return true
}

type routerFunc func(start grid.Cell, goals []grid.Cell) (pathfind.Path, bool)

func (f routerFunc) Route(start grid.Cell, goals []grid.Cell) (pathfind.Path, bool) {
	return f(start, goals)
}

func (w *World) route(start grid.Cell, goals []grid.Cell) (pathfind.Path, bool) {
	add(w.metrics.pathSearches)
	p, ok := w.finder.Find(start, goals)
	if !ok {
		add(w.metrics.pathFailures)
	}
	return p, ok
}
