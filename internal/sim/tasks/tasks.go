// Package tasks owns live work items and the rules for handing them to
// agents. The owner link lives only on the task; agents discover their task
// by asking the registry.
package tasks

import (
	"fmt"

	"github.com/google/uuid"

	"dwellers.ai/internal/sim/grid"
)

type Kind string

const (
	KindWalk      Kind = "WALK"
	KindDig       Kind = "DIG"
	KindChop      Kind = "CHOP"
	KindBuild     Kind = "BUILD"
	KindPickup    Kind = "PICKUP"
	KindStockpile Kind = "STOCKPILE"
	KindHarvest   Kind = "HARVEST"
)

// AgentID identifies a dweller or a mob.
type AgentID string

type State string

const (
	StateUnassigned State = "UNASSIGNED"
	StateAssigned   State = "ASSIGNED"
)

type NeedsKind string

const (
	NeedsNothing    NeedsKind = "NOTHING"
	NeedsEmptyHands NeedsKind = "EMPTY_HANDS"
	NeedsObjects    NeedsKind = "OBJECTS"
	NeedsAnyObject  NeedsKind = "ANY_OBJECT"
	NeedsImpossible NeedsKind = "IMPOSSIBLE"
)

// Needs is the resource predicate an agent must satisfy to take a task.
type Needs struct {
	Kind    NeedsKind `json:"kind"`
	Objects []string  `json:"objects,omitempty"`
}

func Nothing() Needs              { return Needs{Kind: NeedsNothing} }
func EmptyHands() Needs           { return Needs{Kind: NeedsEmptyHands} }
func AnyObject() Needs            { return Needs{Kind: NeedsAnyObject} }
func Impossible() Needs           { return Needs{Kind: NeedsImpossible} }
func Objects(ids ...string) Needs { return Needs{Kind: NeedsObjects, Objects: ids} }

// BuildResult is what a BUILD task leaves on its target.
type BuildResult struct {
	Object string `json:"object,omitempty"`
	Solid  bool   `json:"solid,omitempty"`
}

type Task struct {
	ID       uuid.UUID
	Kind     Kind
	Priority int
	Needs    Needs

	// Targets are the cells the task's effect applies to.
	Targets []grid.Cell
	// Reachable are the cells an agent may stand on to perform the task.
	Reachable []grid.Cell

	// Owner is the single source of truth for assignment.
	Owner AgentID

	Result BuildResult // BUILD
	MobID  AgentID     // HARVEST

	CreatedTick uint64
}

func (t *Task) State() State {
	if t.Owner == "" {
		return StateUnassigned
	}
	return StateAssigned
}

// Assignable reports whether some agent could currently claim t.
func (t *Task) Assignable() bool {
	return t.Owner == "" && t.Needs.Kind != NeedsImpossible && len(t.Reachable) > 0
}

// Target returns the primary target cell.
func (t *Task) Target() grid.Cell {
	if len(t.Targets) == 0 {
		return grid.Cell{}
	}
	return t.Targets[0]
}

func (t *Task) String() string {
	id := t.ID.String()
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s#%s", t.Kind, id)
}

// Eligible applies the resource filter for an agent carrying carried ("" for
// empty hands).
func Eligible(t *Task, carried string) bool {
	switch t.Needs.Kind {
	case NeedsNothing, "":
		return true
	case NeedsEmptyHands:
		return carried == ""
	case NeedsObjects:
		if carried == "" {
			return false
		}
		for _, o := range t.Needs.Objects {
			if o == carried {
				return true
			}
		}
		// A dweller holding exactly what a build produces may still service it.
		return t.Kind == KindBuild && t.Result.Object != "" && t.Result.Object == carried
	case NeedsAnyObject:
		return carried != ""
	default:
		return false
	}
}

func NewWalk(target grid.Cell, priority int) *Task {
	return &Task{Kind: KindWalk, Priority: priority, Needs: Nothing(), Targets: []grid.Cell{target}}
}

func NewDig(target grid.Cell, priority int) *Task {
	return &Task{Kind: KindDig, Priority: priority, Needs: Nothing(), Targets: []grid.Cell{target}}
}

func NewChop(target grid.Cell, priority int) *Task {
	return &Task{Kind: KindChop, Priority: priority, Needs: Nothing(), Targets: []grid.Cell{target}}
}

// NewBuild creates a build order consuming one of materials. Without
// materials the order can never be serviced.
func NewBuild(target grid.Cell, priority int, result BuildResult, materials ...string) *Task {
	needs := Objects(materials...)
	if len(materials) == 0 {
		needs = Impossible()
	}
	return &Task{Kind: KindBuild, Priority: priority, Needs: needs, Targets: []grid.Cell{target}, Result: result}
}

func NewPickup(target grid.Cell, priority int) *Task {
	return &Task{Kind: KindPickup, Priority: priority, Needs: EmptyHands(), Targets: []grid.Cell{target}}
}

func NewStockpile(target grid.Cell, priority int) *Task {
	return &Task{Kind: KindStockpile, Priority: priority, Needs: AnyObject(), Targets: []grid.Cell{target}}
}

func NewHarvest(mob AgentID, at grid.Cell, priority int) *Task {
	return &Task{Kind: KindHarvest, Priority: priority, Needs: Nothing(), Targets: []grid.Cell{at}, MobID: mob}
}
