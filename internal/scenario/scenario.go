// Package scenario loads deterministic test worlds from JSON files: a bounded
// grid, its obstacles and objects, the agents on it and a task list.
package scenario

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"dwellers.ai/internal/sim/catalogs"
	"dwellers.ai/internal/sim/grid"
	"dwellers.ai/internal/sim/tasks"
	"dwellers.ai/internal/sim/tuning"
	"dwellers.ai/internal/sim/world"
)

//go:embed scenario.schema.json
var schemaJSON string

const schemaURL = "https://dwellers.ai/schemas/scenario.schema.json"

var ErrInvalid = errors.New("invalid scenario")

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString(schemaURL, schemaJSON)
	})
	return schema, schemaErr
}

// Cell is a grid cell written as [x, y].
type Cell [2]int

func (c Cell) Grid() grid.Cell { return grid.Cell{X: c[0], Y: c[1]} }

type Object struct {
	Cell   Cell   `json:"cell"`
	Object string `json:"object"`
}

type Dweller struct {
	Name     string `json:"name"`
	Cell     Cell   `json:"cell"`
	Carrying string `json:"carrying,omitempty"`
}

type Mob struct {
	Type string `json:"type"`
	Cell Cell   `json:"cell"`
}

type Task struct {
	Kind     tasks.Kind   `json:"kind"`
	Priority int          `json:"priority,omitempty"`
	Targets  []Cell       `json:"targets,omitempty"`
	Needs    *tasks.Needs `json:"needs,omitempty"`
	// Materials feed a BUILD task's needs.
	Materials []string           `json:"materials,omitempty"`
	Result    *tasks.BuildResult `json:"result,omitempty"`
	// Mob indexes the scenario's mob list for HARVEST.
	Mob *int `json:"mob,omitempty"`
}

type Scenario struct {
	Name     string    `json:"name"`
	Seed     int64     `json:"seed,omitempty"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Ticks    int       `json:"ticks,omitempty"`
	Blocked  []Cell    `json:"blocked,omitempty"`
	Objects  []Object  `json:"objects,omitempty"`
	Dwellers []Dweller `json:"dwellers,omitempty"`
	Mobs     []Mob     `json:"mobs,omitempty"`
	Tasks    []Task    `json:"tasks,omitempty"`
}

func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse validates raw against the scenario schema and decodes it.
func Parse(raw []byte) (*Scenario, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile scenario schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &s, nil
}

func (s *Scenario) inBounds(c Cell) bool {
	return c[0] >= 0 && c[1] >= 0 && c[0] < s.Width && c[1] < s.Height
}

// Check validates the scenario against a catalog set.
func (s *Scenario) Check(cats *catalogs.Catalogs) error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}
	object := func(where, id string) error {
		if id == "" {
			return nil
		}
		if _, ok := cats.Object(id); !ok {
			return bad("%s: unknown object %q", where, id)
		}
		return nil
	}
	for i, c := range s.Blocked {
		if !s.inBounds(c) {
			return bad("blocked[%d] %v out of bounds", i, c)
		}
	}
	for i, o := range s.Objects {
		if !s.inBounds(o.Cell) {
			return bad("objects[%d] %v out of bounds", i, o.Cell)
		}
		if err := object(fmt.Sprintf("objects[%d]", i), o.Object); err != nil {
			return err
		}
	}
	for i, d := range s.Dwellers {
		if !s.inBounds(d.Cell) {
			return bad("dwellers[%d] %v out of bounds", i, d.Cell)
		}
		if err := object(fmt.Sprintf("dwellers[%d]", i), d.Carrying); err != nil {
			return err
		}
	}
	for i, m := range s.Mobs {
		if !s.inBounds(m.Cell) {
			return bad("mobs[%d] %v out of bounds", i, m.Cell)
		}
		if _, ok := cats.Mob(m.Type); !ok {
			return bad("mobs[%d]: unknown mob %q", i, m.Type)
		}
	}
	for i, t := range s.Tasks {
		for _, c := range t.Targets {
			if !s.inBounds(c) {
				return bad("tasks[%d] target %v out of bounds", i, c)
			}
		}
		for _, m := range t.Materials {
			if err := object(fmt.Sprintf("tasks[%d]", i), m); err != nil {
				return err
			}
		}
		if t.Result != nil {
			if err := object(fmt.Sprintf("tasks[%d] result", i), t.Result.Object); err != nil {
				return err
			}
		}
		switch t.Kind {
		case tasks.KindHarvest:
			if t.Mob == nil || *t.Mob >= len(s.Mobs) {
				return bad("tasks[%d]: harvest needs a valid mob index", i)
			}
		default:
			if len(t.Targets) == 0 {
				return bad("tasks[%d]: %s needs a target", i, t.Kind)
			}
		}
	}
	return nil
}

// Instance is a built scenario ready to step.
type Instance struct {
	Scenario *Scenario
	World    *world.World
	Tiles    *grid.TileMap
	Dwellers []*world.Agent
	Mobs     []*world.Agent
	TaskIDs  []uuid.UUID
}

// Build creates the world described by s. Everything outside the
// width x height field is solid. Sinks are attached before the first agent
// spawns so they see the whole run.
func (s *Scenario) Build(cats *catalogs.Catalogs, tun tuning.Tuning, log *zerolog.Logger, sinks ...world.EventSink) (*Instance, error) {
	if cats == nil {
		var err error
		if cats, err = catalogs.Default(); err != nil {
			return nil, err
		}
	}
	if err := s.Check(cats); err != nil {
		return nil, err
	}
	// Scenario mobs are explicit.
	tun.SpawnMobsOnNewChunks = false

	blocked := make(map[grid.Cell]bool, len(s.Blocked))
	for _, c := range s.Blocked {
		blocked[c.Grid()] = true
	}
	tiles := grid.NewTileMap(tun.ChunkSize, grid.GeneratorFunc(func(c grid.Cell) grid.Tile {
		outside := c.X < 0 || c.Y < 0 || c.X >= s.Width || c.Y >= s.Height
		return grid.Tile{Solid: outside || blocked[c]}
	}), cats.Blocking)
	size := tiles.ChunkSize()
	for cy := 0; cy <= (s.Height-1)/size; cy++ {
		for cx := 0; cx <= (s.Width-1)/size; cx++ {
			tiles.LoadChunk(grid.ChunkKey{CX: cx, CY: cy})
		}
	}
	for _, o := range s.Objects {
		t, _ := tiles.Get(o.Cell.Grid())
		t.Object = o.Object
		tiles.Set(o.Cell.Grid(), t)
	}

	w, err := world.New(world.WorldConfig{
		ID:     s.Name,
		Seed:   s.Seed,
		Tuning: tun,
		Tiles:  tiles,
		Chunks: tiles,
		Log:    log,
	}, cats)
	if err != nil {
		return nil, err
	}
	for _, sink := range sinks {
		w.AddEventSink(sink)
	}
	inst := &Instance{Scenario: s, World: w, Tiles: tiles}
	for _, d := range s.Dwellers {
		inst.Dwellers = append(inst.Dwellers, w.SpawnDwellerAt(d.Name, d.Cell.Grid(), d.Carrying))
	}
	for _, m := range s.Mobs {
		a, err := w.SpawnMobAt(m.Type, m.Cell.Grid())
		if err != nil {
			return nil, err
		}
		inst.Mobs = append(inst.Mobs, a)
	}
	for _, st := range s.Tasks {
		inst.TaskIDs = append(inst.TaskIDs, w.AddTask(inst.task(st)))
	}
	return inst, nil
}

func (inst *Instance) task(st Task) *tasks.Task {
	var target grid.Cell
	if len(st.Targets) > 0 {
		target = st.Targets[0].Grid()
	}
	var t *tasks.Task
	switch st.Kind {
	case tasks.KindWalk:
		t = tasks.NewWalk(target, st.Priority)
	case tasks.KindDig:
		t = tasks.NewDig(target, st.Priority)
	case tasks.KindChop:
		t = tasks.NewChop(target, st.Priority)
	case tasks.KindBuild:
		var res tasks.BuildResult
		if st.Result != nil {
			res = *st.Result
		}
		t = tasks.NewBuild(target, st.Priority, res, st.Materials...)
	case tasks.KindPickup:
		t = tasks.NewPickup(target, st.Priority)
	case tasks.KindStockpile:
		t = tasks.NewStockpile(target, st.Priority)
	case tasks.KindHarvest:
		m := inst.Mobs[*st.Mob]
		t = tasks.NewHarvest(m.ID, inst.World.CellOf(m), st.Priority)
	}
	if len(st.Targets) > 1 && st.Kind != tasks.KindHarvest {
		t.Targets = t.Targets[:0]
		for _, c := range st.Targets {
			t.Targets = append(t.Targets, c.Grid())
		}
	}
	if st.Needs != nil {
		t.Needs = *st.Needs
	}
	return t
}

// Run steps the world n decision intervals, stopping early once no task is
// left. Reachable sets are refreshed on the same cadence as the live loop.
// It returns the number of steps taken.
func (inst *Instance) Run(n int) int {
	w := inst.World
	tun := w.Tuning()
	refreshEvery := max(1, tun.RefreshIntervalMs/tun.DecisionIntervalMs)
	for i := 0; i < n; i++ {
		if w.Tasks().Len() == 0 {
			return i
		}
		if i > 0 && i%refreshEvery == 0 {
			w.RefreshTasks()
		}
		w.StepOnce()
	}
	return n
}

// Summary describes where a run ended.
type Summary struct {
	Name      string        `json:"name"`
	Tick      uint64        `json:"tick"`
	TasksLeft int           `json:"tasks_left"`
	Agents    []AgentResult `json:"agents"`
}

type AgentResult struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Cell     Cell   `json:"cell"`
	Carrying string `json:"carrying,omitempty"`
}

func (inst *Instance) Summary() Summary {
	w := inst.World
	out := Summary{
		Name:      inst.Scenario.Name,
		Tick:      w.CurrentTick(),
		TasksLeft: w.Tasks().Len(),
	}
	for _, a := range w.Agents() {
		c := w.CellOf(a)
		out.Agents = append(out.Agents, AgentResult{
			ID:       string(a.ID),
			Kind:     string(a.Kind),
			Cell:     Cell{c.X, c.Y},
			Carrying: a.Carrying,
		})
	}
	return out
}
