package world

import (
	"encoding/json"
	"sort"
	"strings"

	"dwellers.ai/internal/observerproto"
)

// ObserverJoinRequest registers a read-only observer session. Frames are
// delivered on Out; the world loop closes Out when the session leaves.
type ObserverJoinRequest struct {
	SessionID    string
	Out          chan []byte
	FocusAgentID string
}

type observerClient struct {
	id    string
	out   chan []byte
	focus string
}

func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	if old := w.observers[req.SessionID]; old != nil {
		if old.out == req.Out {
			old.focus = strings.TrimSpace(req.FocusAgentID)
			return
		}
		close(old.out)
	}
	w.observers[req.SessionID] = &observerClient{
		id:    req.SessionID,
		out:   req.Out,
		focus: strings.TrimSpace(req.FocusAgentID),
	}
	w.log.Debug().Str("observer", req.SessionID).Msg("observer joined")
}

func (w *World) handleObserverLeave(sessionID string) {
	c := w.observers[sessionID]
	if c == nil {
		return
	}
	delete(w.observers, sessionID)
	close(c.out)
}

// Bootstrap describes the world to a new observer.
func (w *World) Bootstrap() observerproto.BootstrapResponse {
	resp := observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		WorldID:         w.cfg.ID,
		Tick:            w.tick.Load(),
		WorldParams: observerproto.WorldParams{
			TileSize:           w.tun.TileSize,
			ChunkSize:          w.tun.ChunkSize,
			Seed:               w.cfg.Seed,
			DecisionIntervalMs: w.tun.DecisionIntervalMs,
			MovementHz:         w.tun.MovementHz,
		},
	}
	for id := range w.catalogs.Objects {
		resp.Objects = append(resp.Objects, id)
	}
	for _, m := range w.catalogs.Mobs {
		resp.Mobs = append(resp.Mobs, m.ID)
	}
	sort.Strings(resp.Objects)
	return resp
}

// Frame snapshots agents and tasks. focus limits the agent list to one id.
func (w *World) Frame(focus string) observerproto.FrameMsg {
	f := observerproto.FrameMsg{
		Type:            "FRAME",
		ProtocolVersion: observerproto.Version,
		Tick:            w.tick.Load(),
		Agents:          []observerproto.AgentState{},
		Tasks:           []observerproto.TaskState{},
	}
	for _, a := range w.Agents() {
		if focus != "" && string(a.ID) != focus {
			continue
		}
		c := w.CellOf(a)
		f.Agents = append(f.Agents, observerproto.AgentState{
			ID:       string(a.ID),
			Kind:     string(a.Kind),
			Name:     a.Label(),
			Pos:      [2]float64{a.Pos.X, a.Pos.Y},
			Cell:     [2]int{c.X, c.Y},
			FlipX:    a.FlipX,
			Carrying: a.Carrying,
			QueueLen: len(a.Queue),
		})
	}
	for _, t := range w.tasks.All() {
		ts := observerproto.TaskState{
			ID:        t.ID.String(),
			Kind:      string(t.Kind),
			Priority:  t.Priority,
			Owner:     string(t.Owner),
			Targets:   make([][2]int, 0, len(t.Targets)),
			Reachable: len(t.Reachable),
		}
		for _, c := range t.Targets {
			ts.Targets = append(ts.Targets, [2]int{c.X, c.Y})
		}
		f.Tasks = append(f.Tasks, ts)
	}
	if w.chunks != nil {
		f.LoadedChunks = len(w.chunks.LoadedChunks())
	}
	return f
}

func (w *World) broadcastFrame() {
	if len(w.observers) == 0 {
		return
	}
	var shared []byte
	for _, c := range w.observers {
		var b []byte
		if c.focus == "" {
			if shared == nil {
				shared, _ = json.Marshal(w.Frame(""))
			}
			b = shared
		} else {
			b, _ = json.Marshal(w.Frame(c.focus))
		}
		sendLatest(c.out, b)
	}
}

// sendLatest never blocks the world loop: a slow observer loses its oldest
// pending frame.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
