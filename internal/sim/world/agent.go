package world

import (
	"math"

	"dwellers.ai/internal/sim/grid"
	"dwellers.ai/internal/sim/tasks"
)

type AgentKind string

const (
	KindDweller AgentKind = "DWELLER"
	KindMob     AgentKind = "MOB"
)

// Vec2 is a world-space position.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }
func (v Vec2) Len() float64         { return math.Hypot(v.X, v.Y) }
func (v Vec2) Scale(s float64) Vec2 { return Vec2{X: v.X * s, Y: v.Y * s} }
func (v Vec2) Add(o Vec2) Vec2      { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }
func cellPos(c grid.Cell, tile float64) Vec2 {
	return Vec2{X: float64(c.X) * tile, Y: float64(c.Y) * tile}
}

// Agent is a dweller or a mob. It never stores its task; the registry owner
// link is authoritative.
type Agent struct {
	ID   tasks.AgentID
	Kind AgentKind

	Name    string // dwellers
	MobType string // mobs
	Loot    string // mobs

	Pos   Vec2
	Speed float64
	// Reached is the last cell the agent stood on.
	Reached grid.Cell

	// Queue holds pending waypoints; the last element is the next step.
	Queue []grid.Cell
	FlipX bool

	Carrying string // dwellers; "" means empty hands
}

// Cell is the logical cell of the agent's continuous position.
func (a *Agent) Cell(tileSize float64) grid.Cell {
	return grid.Cell{
		X: int(math.Round(a.Pos.X / tileSize)),
		Y: int(math.Round(a.Pos.Y / tileSize)),
	}
}

func (a *Agent) Idle() bool { return len(a.Queue) == 0 }

// Next returns the next waypoint.
func (a *Agent) Next() (grid.Cell, bool) {
	if len(a.Queue) == 0 {
		return grid.Cell{}, false
	}
	return a.Queue[len(a.Queue)-1], true
}

func (a *Agent) Label() string {
	if a.Name != "" {
		return a.Name
	}
	if a.MobType != "" {
		return a.MobType
	}
	return string(a.ID)
}
