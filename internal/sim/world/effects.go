package world

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"dwellers.ai/internal/sim/grid"
	"dwellers.ai/internal/sim/tasks"
)

// CompletionHandler applies the effect of a finished task. Returning nil
// removes the task; an error keeps it, so the owner signals again on its
// next decision.
type CompletionHandler func(w *World, a *Agent, t *tasks.Task) error

// Handle installs or replaces the handler for kind. A nil handler leaves the
// kind without effect.
func (w *World) Handle(kind tasks.Kind, h CompletionHandler) {
	if h == nil {
		delete(w.handlers, kind)
		return
	}
	w.handlers[kind] = h
}

func defaultHandlers() map[tasks.Kind]CompletionHandler {
	return map[tasks.Kind]CompletionHandler{
		tasks.KindWalk:      func(*World, *Agent, *tasks.Task) error { return nil },
		tasks.KindDig:       completeDig,
		tasks.KindChop:      completeChop,
		tasks.KindBuild:     completeBuild,
		tasks.KindPickup:    completePickup,
		tasks.KindStockpile: completeStockpile,
		tasks.KindHarvest:   completeHarvest,
	}
}

func (w *World) complete(a *Agent, t *tasks.Task) {
	h, ok := w.handlers[t.Kind]
	if !ok {
		w.log.Debug().Str("agent", a.Label()).Stringer("task", t).Msg("completion signalled, no handler")
		return
	}
	if err := h(w, a, t); err != nil {
		w.log.Warn().Err(err).Str("agent", a.Label()).Stringer("task", t).Msg("task effect failed")
		return
	}
	w.tasks.Remove(t.ID)
	add(w.metrics.completed, attribute.String("kind", string(t.Kind)))
	w.emitTask(EventTaskCompleted, a.ID, t, "")
	w.log.Info().Str("agent", a.Label()).Stringer("task", t).Msg("task completed")
}

func (w *World) editTile(c grid.Cell, f func(*grid.Tile)) error {
	tile, ok := w.tiles.Get(c)
	if !ok {
		return fmt.Errorf("tile %v not loaded", c)
	}
	f(&tile)
	w.tiles.Set(c, tile)
	return nil
}

func completeDig(w *World, _ *Agent, t *tasks.Task) error {
	for _, c := range t.Targets {
		err := w.editTile(c, func(tile *grid.Tile) {
			tile.Solid = false
			if def, ok := w.catalogs.Object(tile.Object); ok && def.Blocking {
				tile.Object = def.Drops
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func completeChop(w *World, _ *Agent, t *tasks.Task) error {
	for _, c := range t.Targets {
		err := w.editTile(c, func(tile *grid.Tile) {
			def, ok := w.catalogs.Object(tile.Object)
			if !ok {
				return
			}
			tile.Object = def.Drops
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func completeBuild(w *World, a *Agent, t *tasks.Task) error {
	if !tasks.Eligible(t, a.Carrying) {
		return fmt.Errorf("build needs %v, carrying %q", t.Needs.Objects, a.Carrying)
	}
	err := w.editTile(t.Target(), func(tile *grid.Tile) {
		if t.Result.Object != "" {
			tile.Object = t.Result.Object
		}
		if t.Result.Solid {
			tile.Solid = true
		}
	})
	if err != nil {
		return err
	}
	a.Carrying = ""
	return nil
}

func completePickup(w *World, a *Agent, t *tasks.Task) error {
	if a.Carrying != "" {
		return fmt.Errorf("hands full")
	}
	return w.editTile(t.Target(), func(tile *grid.Tile) {
		def, ok := w.catalogs.Object(tile.Object)
		if !ok || !def.Carriable() {
			return
		}
		a.Carrying = tile.Object
		tile.Object = ""
	})
}

func completeStockpile(w *World, a *Agent, t *tasks.Task) error {
	tile, ok := w.tiles.Get(t.Target())
	if !ok {
		return fmt.Errorf("tile %v not loaded", t.Target())
	}
	if tile.Object != "" {
		// Occupied: keep what we carry and drop the order.
		return nil
	}
	tile.Object = a.Carrying
	a.Carrying = ""
	w.tiles.Set(t.Target(), tile)
	return nil
}

func completeHarvest(w *World, a *Agent, t *tasks.Task) error {
	mob, ok := w.agents[t.MobID]
	if !ok || mob.Kind != KindMob {
		return nil
	}
	at := w.CellOf(mob)
	loot := mob.Loot
	w.Despawn(mob.ID)
	switch {
	case loot == "":
	case a.Carrying == "":
		a.Carrying = loot
	default:
		err := w.editTile(at, func(tile *grid.Tile) {
			if tile.Object == "" {
				tile.Object = loot
			}
		})
		if err != nil {
			w.log.Warn().Err(err).Str("agent", a.Label()).Str("loot", loot).Msg("harvest loot lost")
		}
	}
	return nil
}
