package tasks

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"dwellers.ai/internal/sim/grid"
	"dwellers.ai/internal/sim/pathfind"
)

var (
	ErrNotFound        = errors.New("task not found")
	ErrAlreadyAssigned = errors.New("task already assigned")
	ErrNotAssignable   = errors.New("task not assignable")
)

// Registry is the arena of live tasks. Iteration follows creation order.
//
// The world loop is the only writer. Claim is a compare-and-set on the owner
// so decision scans may run concurrently as long as they commit through it.
type Registry struct {
	mu    sync.Mutex
	order []uuid.UUID
	byID  map[uuid.UUID]*Task
}

func NewRegistry() *Registry {
	return &Registry{byID: map[uuid.UUID]*Task{}}
}

// Add stores t, assigning a fresh id when it has none.
func (r *Registry) Add(t *Task) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if _, ok := r.byID[t.ID]; !ok {
		r.order = append(r.order, t.ID)
	}
	r.byID[t.ID] = t
	return t.ID
}

func (r *Registry) Get(id uuid.UUID) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	return t, ok
}

func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, x := range r.order {
		if x == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// All returns the live tasks in creation order.
func (r *Registry) All() []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Task, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// OwnedBy finds the task currently assigned to agent.
func (r *Registry) OwnedBy(agent AgentID) (*Task, bool) {
	if agent == "" {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if t := r.byID[id]; t.Owner == agent {
			return t, true
		}
	}
	return nil, false
}

// Claim assigns the task to agent if, and only if, it is still unassigned.
func (r *Registry) Claim(id uuid.UUID, agent AgentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	switch {
	case !ok:
		return ErrNotFound
	case t.Owner != "":
		return ErrAlreadyAssigned
	case t.Needs.Kind == NeedsImpossible:
		return ErrNotAssignable
	}
	t.Owner = agent
	return nil
}

// Release returns the task to the unassigned pool.
func (r *Registry) Release(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.Owner == "" {
		return false
	}
	t.Owner = ""
	return true
}

// ReleaseAgent drops every assignment held by agent and returns the tasks.
func (r *Registry) ReleaseAgent(agent AgentID) []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Task
	for _, id := range r.order {
		if t := r.byID[id]; t.Owner == agent {
			t.Owner = ""
			out = append(out, t)
		}
	}
	return out
}

// Candidate is a task an agent could take along with the route to it.
type Candidate struct {
	Task *Task
	Path pathfind.Path
}

// Select picks the best task for an agent standing at `at` and carrying
// carried. Highest priority wins; among equal priorities the longer route
// wins. Full ties keep the earliest-created task. Nothing is claimed.
func (r *Registry) Select(at grid.Cell, carried string, router pathfind.Router) (Candidate, bool) {
	var pool []*Task
	r.mu.Lock()
	for _, id := range r.order {
		t := r.byID[id]
		if !t.Assignable() || !Eligible(t, carried) {
			continue
		}
		pool = append(pool, t)
	}
	r.mu.Unlock()

	var best Candidate
	found := false
	for _, t := range pool {
		p, ok := router.Route(at, t.Reachable)
		if !ok {
			continue
		}
		if !found || better(t, p, best) {
			best = Candidate{Task: t, Path: p}
			found = true
		}
	}
	return best, found
}

func better(t *Task, p pathfind.Path, cur Candidate) bool {
	if t.Priority != cur.Task.Priority {
		return t.Priority > cur.Task.Priority
	}
	// Equal priority: the farther task wins.
	return p.Len() > cur.Path.Len()
}

// Acquire selects and claims a task for agent. If the chosen task was
// claimed by someone else in the meantime, selection is retried.
func (r *Registry) Acquire(agent AgentID, at grid.Cell, carried string, router pathfind.Router) (Candidate, bool) {
	for attempt := 0; attempt < 3; attempt++ {
		c, ok := r.Select(at, carried, router)
		if !ok {
			return Candidate{}, false
		}
		if err := r.Claim(c.Task.ID, agent); err == nil {
			return c, true
		}
	}
	return Candidate{}, false
}

// Locator resolves a mob's current cell for harvest retargeting.
type Locator func(mob AgentID) (grid.Cell, bool)

// Refresh recomputes reachable positions of every task against the current
// grid.
func (r *Registry) Refresh(o grid.Oracle, locate Locator) {
	for _, t := range r.All() {
		if t.Kind == KindHarvest {
			at, ok := grid.Cell{}, false
			if locate != nil {
				at, ok = locate(t.MobID)
			}
			if !ok {
				t.Reachable = nil
				continue
			}
			t.Targets = []grid.Cell{at}
		}
		t.Reachable = ReachableFor(t.Kind, t.Targets, o)
	}
}

// ReachableFor derives the cells from which a task of kind can be performed
// on targets.
func ReachableFor(kind Kind, targets []grid.Cell, o grid.Oracle) []grid.Cell {
	var out []grid.Cell
	add := func(c grid.Cell) {
		if !grid.Contains(out, c) {
			out = append(out, c)
		}
	}
	for _, tc := range targets {
		switch kind {
		case KindWalk, KindPickup, KindStockpile:
			if o.IsPassable(tc) {
				add(tc)
			}
		case KindHarvest:
			if o.IsPassable(tc) {
				add(tc)
			}
			for _, n := range o.Neighbors(tc, false) {
				add(n)
			}
		default:
			for _, n := range o.Neighbors(tc, false) {
				add(n)
			}
		}
	}
	return out
}
