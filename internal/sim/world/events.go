package world

import (
	"dwellers.ai/internal/sim/grid"
	"dwellers.ai/internal/sim/tasks"
)

type EventKind string

const (
	EventTaskAssigned  EventKind = "TASK_ASSIGNED"
	EventTaskRepathed  EventKind = "TASK_REPATHED"
	EventTaskAbandoned EventKind = "TASK_ABANDONED"
	EventTaskCompleted EventKind = "TASK_COMPLETED"
	EventTaskAdded     EventKind = "TASK_ADDED"
	EventTaskRemoved   EventKind = "TASK_REMOVED"
	EventChunkLoad     EventKind = "CHUNK_LOAD"
	EventChunkUnload   EventKind = "CHUNK_UNLOAD"
	EventSpawn         EventKind = "SPAWN"
	EventSpawnFailed   EventKind = "SPAWN_FAILED"
	EventDespawn       EventKind = "DESPAWN"
)

// Event is one entry of the world journal.
type Event struct {
	Tick     uint64         `json:"tick"`
	Kind     EventKind      `json:"kind"`
	Agent    tasks.AgentID  `json:"agent,omitempty"`
	Task     string         `json:"task,omitempty"`
	TaskKind tasks.Kind     `json:"task_kind,omitempty"`
	Priority int            `json:"priority,omitempty"`
	Cell     *grid.Cell     `json:"cell,omitempty"`
	Chunk    *grid.ChunkKey `json:"chunk,omitempty"`
	Detail   string         `json:"detail,omitempty"`
}

// EventSink receives world events on the world loop goroutine.
// Implementations must not block for long.
type EventSink interface {
	WriteEvent(e Event) error
}

// AddEventSink registers a sink. Call before Run.
func (w *World) AddEventSink(s EventSink) {
	if s != nil {
		w.sinks = append(w.sinks, s)
	}
}

func (w *World) emit(e Event) {
	e.Tick = w.tick.Load()
	for _, s := range w.sinks {
		if err := s.WriteEvent(e); err != nil {
			w.log.Warn().Err(err).Str("event", string(e.Kind)).Msg("event sink failed")
		}
	}
}

func (w *World) emitTask(kind EventKind, agent tasks.AgentID, t *tasks.Task, detail string) {
	c := t.Target()
	w.emit(Event{
		Kind:     kind,
		Agent:    agent,
		Task:     t.ID.String(),
		TaskKind: t.Kind,
		Priority: t.Priority,
		Cell:     &c,
		Detail:   detail,
	})
}

func (w *World) emitChunk(kind EventKind, k grid.ChunkKey) {
	w.emit(Event{Kind: kind, Chunk: &k})
}

func (w *World) emitAgent(kind EventKind, a *Agent, detail string) {
	c := a.Cell(w.tun.TileSize)
	w.emit(Event{Kind: kind, Agent: a.ID, Cell: &c, Detail: detail})
}
