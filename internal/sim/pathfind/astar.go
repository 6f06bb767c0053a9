// Package pathfind computes shortest 4-connected paths over a grid.Oracle.
package pathfind

import "dwellers.ai/internal/sim/grid"

// DefaultMaxExpanded bounds a single search when the Finder does not set one.
const DefaultMaxExpanded = 20000

// Path lists the cells to walk from the start (exclusive) to the reached
// goal (inclusive). An empty path means the start already is a goal.
type Path []grid.Cell

func (p Path) Len() int { return len(p) }

// Goal returns the final cell of the path, or start when the path is empty.
func (p Path) Goal(start grid.Cell) grid.Cell {
	if len(p) == 0 {
		return start
	}
	return p[len(p)-1]
}

// Queue returns the path as a move queue: the next step is the last element.
func (p Path) Queue() []grid.Cell {
	out := make([]grid.Cell, len(p))
	for i, c := range p {
		out[len(p)-1-i] = c
	}
	return out
}

// Router is what task assignment needs from a path search.
type Router interface {
	Route(start grid.Cell, goals []grid.Cell) (Path, bool)
}

// Finder runs A* with unit step cost and a Manhattan distance to the nearest
// goal as heuristic. Blocking cells are not part of the search graph.
type Finder struct {
	Oracle      grid.Oracle
	MaxExpanded int
}

func New(o grid.Oracle, maxExpanded int) *Finder {
	return &Finder{Oracle: o, MaxExpanded: maxExpanded}
}

func (f *Finder) Route(start grid.Cell, goals []grid.Cell) (Path, bool) {
	return f.Find(start, goals)
}

// Find returns a shortest path from start to any passable cell of goals.
// Goals that are blocking at call time are ignored.
func (f *Finder) Find(start grid.Cell, goals []grid.Cell) (Path, bool) {
	if f == nil || f.Oracle == nil {
		return nil, false
	}
	targets := make([]grid.Cell, 0, len(goals))
	isGoal := make(map[grid.Cell]bool, len(goals))
	for _, g := range goals {
		if isGoal[g] {
			continue
		}
		if g != start && !f.Oracle.IsPassable(g) {
			continue
		}
		isGoal[g] = true
		targets = append(targets, g)
	}
	if len(targets) == 0 {
		return nil, false
	}
	if isGoal[start] {
		return Path{}, true
	}

	limit := f.MaxExpanded
	if limit <= 0 {
		limit = DefaultMaxExpanded
	}

	heuristic := func(c grid.Cell) int {
		best := -1
		for _, g := range targets {
			if d := grid.Manhattan(c, g); best < 0 || d < best {
				best = d
			}
		}
		return best
	}

	// Cells are interned into dense indices so bookkeeping stays in slices.
	index := map[grid.Cell]int{start: 0}
	cells := []grid.Cell{start}
	gScore := []int{0}
	parent := []int{-1}
	closed := []bool{false}

	intern := func(c grid.Cell) int {
		if i, ok := index[c]; ok {
			return i
		}
		i := len(cells)
		index[c] = i
		cells = append(cells, c)
		gScore = append(gScore, -1)
		parent = append(parent, -1)
		closed = append(closed, false)
		return i
	}

	seq := 0
	open := minHeap{}
	h0 := heuristic(start)
	open.push(node{idx: 0, f: h0, h: h0, seq: seq})

	expanded := 0
	for len(open) > 0 {
		cur := open.pop()
		if closed[cur.idx] {
			continue
		}
		closed[cur.idx] = true
		c := cells[cur.idx]
		if isGoal[c] {
			return rebuild(cells, parent, cur.idx), true
		}
		expanded++
		if expanded > limit {
			return nil, false
		}
		for _, d := range grid.Dirs4 {
			n := c.Add(d)
			if !f.Oracle.IsPassable(n) {
				continue
			}
			ni := intern(n)
			if closed[ni] {
				continue
			}
			g := gScore[cur.idx] + 1
			if gScore[ni] >= 0 && g >= gScore[ni] {
				continue
			}
			gScore[ni] = g
			parent[ni] = cur.idx
			h := heuristic(n)
			seq++
			open.push(node{idx: ni, f: g + h, h: h, seq: seq})
		}
	}
	return nil, false
}

func rebuild(cells []grid.Cell, parent []int, end int) Path {
	n := 0
	for i := end; parent[i] >= 0; i = parent[i] {
		n++
	}
	out := make(Path, n)
	for i := end; parent[i] >= 0; i = parent[i] {
		n--
		out[n] = cells[i]
	}
	return out
}
