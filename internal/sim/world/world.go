package world

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dwellers.ai/internal/sim/catalogs"
	"dwellers.ai/internal/sim/grid"
	"dwellers.ai/internal/sim/pathfind"
	"dwellers.ai/internal/sim/tasks"
	"dwellers.ai/internal/sim/tuning"
)

// World is a single-threaded simulation of dwellers and mobs.
// All state must be accessed only from the world loop goroutine, or from a
// single test goroutine through the step API.
type World struct {
	cfg      WorldConfig
	tun      tuning.Tuning
	catalogs *catalogs.Catalogs
	log      zerolog.Logger

	tiles  TileStore
	chunks grid.ChunkStreamer
	rng    Rand
	finder *pathfind.Finder
	tasks  *tasks.Registry

	agents   map[tasks.AgentID]*Agent
	dwellers []*Agent
	mobs     []*Agent

	nextDweller int
	nextMob     int

	tick atomic.Uint64

	handlers  map[tasks.Kind]CompletionHandler
	sinks     []EventSink
	metrics   *instruments
	stats     atomic.Value
	observers map[string]*observerClient

	pendingMobChunks []grid.ChunkKey

	spawnReq      chan SpawnRequest
	taskReq       chan TaskRequest
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	stop          chan struct{}
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	cfg.applyDefaults()
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("world tuning: %w", err)
	}
	if cats == nil {
		var err error
		if cats, err = catalogs.Default(); err != nil {
			return nil, err
		}
	}

	w := &World{
		cfg:      cfg,
		tun:      cfg.Tuning,
		catalogs: cats,
		log:      cfg.Log.With().Str("world", cfg.ID).Logger(),
		tiles:    cfg.Tiles,
		chunks:   cfg.Chunks,
		rng:      cfg.Rand,
		tasks:    tasks.NewRegistry(),

		agents:    map[tasks.AgentID]*Agent{},
		observers: map[string]*observerClient{},

		spawnReq:      make(chan SpawnRequest, 64),
		taskReq:       make(chan TaskRequest, 256),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerLeave: make(chan string, 16),
		stop:          make(chan struct{}),
	}
	if cfg.Tiles != nil {
		w.finder = pathfind.New(cfg.Tiles, cfg.Tuning.PathMaxExpanded)
	}
	w.handlers = defaultHandlers()

	in, err := newInstruments(w)
	if err != nil {
		return nil, err
	}
	w.metrics = in
	w.publishStats(0)
	return w, nil
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() WorldConfig          { return w.cfg }
func (w *World) Tuning() tuning.Tuning        { return w.tun }
func (w *World) Catalogs() *catalogs.Catalogs { return w.catalogs }
func (w *World) Tasks() *tasks.Registry       { return w.tasks }
func (w *World) Tiles() TileStore             { return w.tiles }

// CurrentTick counts decision ticks.
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Agent(id tasks.AgentID) (*Agent, bool) {
	a, ok := w.agents[id]
	return a, ok
}

// Agents returns dwellers in spawn order followed by mobs.
func (w *World) Agents() []*Agent {
	out := make([]*Agent, 0, len(w.dwellers)+len(w.mobs))
	out = append(out, w.dwellers...)
	return append(out, w.mobs...)
}

func (w *World) Dwellers() []*Agent { return w.dwellers }
func (w *World) Mobs() []*Agent     { return w.mobs }

// CellOf is the logical cell of an agent.
func (w *World) CellOf(a *Agent) grid.Cell { return a.Cell(w.tun.TileSize) }

// TaskOf finds the task an agent currently owns.
func (w *World) TaskOf(id tasks.AgentID) (*tasks.Task, bool) { return w.tasks.OwnedBy(id) }

// AddTask registers t, computing its reachable cells from its targets.
func (w *World) AddTask(t *tasks.Task) uuid.UUID {
	t.CreatedTick = w.tick.Load()
	if w.tiles != nil {
		t.Reachable = nil
		switch at, ok := w.mobCell(t.MobID); {
		case t.Kind != tasks.KindHarvest:
			t.Reachable = tasks.ReachableFor(t.Kind, t.Targets, w.tiles)
		case ok:
			t.Targets = []grid.Cell{at}
			t.Reachable = tasks.ReachableFor(t.Kind, t.Targets, w.tiles)
		}
	}
	id := w.tasks.Add(t)
	w.emitTask(EventTaskAdded, "", t, "")
	w.log.Debug().Stringer("task", t).Int("priority", t.Priority).Int("reachable", len(t.Reachable)).Msg("task added")
	return id
}

// RemoveTask cancels a task; its owner becomes idle on its next decision.
func (w *World) RemoveTask(id uuid.UUID) bool {
	t, ok := w.tasks.Get(id)
	if !ok {
		return false
	}
	w.tasks.Remove(id)
	w.emitTask(EventTaskRemoved, t.Owner, t, "")
	return true
}

// RefreshTasks recomputes every task's reachable cells against the grid.
func (w *World) RefreshTasks() {
	if w.tiles == nil {
		return
	}
	w.tasks.Refresh(w.tiles, w.mobCell)
}

// mobCell locates a live mob.
func (w *World) mobCell(id tasks.AgentID) (grid.Cell, bool) {
	m, ok := w.agents[id]
	if !ok || m.Kind != KindMob {
		return grid.Cell{}, false
	}
	return w.CellOf(m), true
}
