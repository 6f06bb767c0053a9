package world

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"dwellers.ai/internal/sim/grid"
	"dwellers.ai/internal/sim/tasks"
)

var ErrNoSpawnLocation = errors.New("no valid spawn location")

// SpawnRequest asks the world loop to populate a chunk.
type SpawnRequest struct {
	Chunk grid.ChunkKey
	// Names spawns one dweller per name. With no names, mobs are spawned.
	Names []string
}

// SpawnDwellers places one dweller per name on the first cell, searching
// outward from the chunk centre, whose 3x3 neighborhood is passable.
func (w *World) SpawnDwellers(k grid.ChunkKey, names []string) ([]*Agent, error) {
	if w.tiles == nil {
		return nil, fmt.Errorf("spawn dwellers in %v: no tile store", k)
	}
	at, err := w.findSpawn(grid.ChunkCenter(k, w.tun.ChunkSize), k)
	if err != nil {
		return nil, err
	}
	out := make([]*Agent, 0, len(names))
	for _, name := range names {
		out = append(out, w.SpawnDwellerAt(name, at, ""))
	}
	return out, nil
}

// SpawnMobs populates a chunk with every catalog mob, searching from a random
// cell of the chunk.
func (w *World) SpawnMobs(k grid.ChunkKey) ([]*Agent, error) {
	if w.tiles == nil {
		return nil, fmt.Errorf("spawn mobs in %v: no tile store", k)
	}
	size := w.tun.ChunkSize
	local := grid.Cell{X: w.rng.Intn(size), Y: w.rng.Intn(size)}
	at, err := w.findSpawn(grid.GlobalCell(k, local, size), k)
	if err != nil {
		return nil, err
	}
	var out []*Agent
	for _, def := range w.catalogs.Mobs {
		n := def.SpawnMin
		if def.SpawnMax > def.SpawnMin {
			n += w.rng.Intn(def.SpawnMax - def.SpawnMin + 1)
		}
		for i := 0; i < n; i++ {
			m, err := w.SpawnMobAt(def.ID, at)
			if err != nil {
				return out, err
			}
			out = append(out, m)
		}
	}
	return out, nil
}

func (w *World) findSpawn(from grid.Cell, k grid.ChunkKey) (grid.Cell, error) {
	at, ok := grid.FindFromCenter(from, w.tun.SpawnSearchRadius, func(c grid.Cell) bool {
		return grid.ClearAround(w.tiles, c)
	})
	if !ok {
		w.log.Error().Stringer("chunk", k).Int("radius", w.tun.SpawnSearchRadius).Msg("no valid spawn position found")
		w.emit(Event{Kind: EventSpawnFailed, Chunk: &k})
		return grid.Cell{}, fmt.Errorf("%v: %w", k, ErrNoSpawnLocation)
	}
	return at, nil
}

// SpawnDwellerAt places a dweller directly on a cell.
func (w *World) SpawnDwellerAt(name string, at grid.Cell, carrying string) *Agent {
	w.nextDweller++
	a := &Agent{
		ID:       tasks.AgentID(fmt.Sprintf("D%d", w.nextDweller)),
		Kind:     KindDweller,
		Name:     name,
		Pos:      cellPos(at, w.tun.TileSize),
		Reached:  at,
		Speed:    w.tun.DwellerSpeed,
		Carrying: carrying,
	}
	w.agents[a.ID] = a
	w.dwellers = append(w.dwellers, a)
	add(w.metrics.spawned, attribute.String("agent_kind", string(KindDweller)))
	w.emitAgent(EventSpawn, a, name)
	w.log.Info().Str("agent", string(a.ID)).Str("name", name).Stringer("cell", at).Msg("dweller spawned")
	return a
}

// SpawnMobAt places a catalog mob directly on a cell.
func (w *World) SpawnMobAt(mobType string, at grid.Cell) (*Agent, error) {
	def, ok := w.catalogs.Mob(mobType)
	if !ok {
		return nil, fmt.Errorf("unknown mob %q", mobType)
	}
	w.nextMob++
	m := &Agent{
		ID:      tasks.AgentID(fmt.Sprintf("M%d", w.nextMob)),
		Kind:    KindMob,
		MobType: def.ID,
		Loot:    def.Loot,
		Pos:     cellPos(at, w.tun.TileSize),
		Reached: at,
		Speed:   def.Speed,
	}
	w.agents[m.ID] = m
	w.mobs = append(w.mobs, m)
	add(w.metrics.spawned, attribute.String("agent_kind", string(KindMob)))
	w.emitAgent(EventSpawn, m, def.ID)
	return m, nil
}

// Despawn removes an agent and returns its tasks to the pool.
func (w *World) Despawn(id tasks.AgentID) bool {
	a, ok := w.agents[id]
	if !ok {
		return false
	}
	delete(w.agents, id)
	if a.Kind == KindDweller {
		w.dwellers = removeAgent(w.dwellers, id)
	} else {
		w.mobs = removeAgent(w.mobs, id)
	}
	for _, t := range w.tasks.ReleaseAgent(id) {
		w.emitTask(EventTaskAbandoned, id, t, "despawned")
	}
	w.emitAgent(EventDespawn, a, "")
	return true
}

func removeAgent(list []*Agent, id tasks.AgentID) []*Agent {
	for i, a := range list {
		if a.ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// FlushSpawns populates chunks that streaming generated for the first time.
func (w *World) FlushSpawns() int {
	pending := w.pendingMobChunks
	w.pendingMobChunks = nil
	n := 0
	for _, k := range pending {
		mobs, err := w.SpawnMobs(k)
		if err != nil {
			continue
		}
		n += len(mobs)
	}
	return n
}

func (w *World) handleSpawnRequest(req SpawnRequest) {
	var err error
	if len(req.Names) > 0 {
		_, err = w.SpawnDwellers(req.Chunk, req.Names)
	} else {
		_, err = w.SpawnMobs(req.Chunk)
	}
	if err != nil {
		w.log.Warn().Err(err).Msg("spawn request dropped")
	}
}
