package grid

// Oracle answers passability questions about the grid. Cells that are not
// loaded are reported as blocking.
type Oracle interface {
	IsPassable(c Cell) bool
	// Neighbors returns the passable neighbors of c in a fixed order. With
	// diagonal set, the 8-neighborhood is used instead of the 4-neighborhood.
	Neighbors(c Cell, diagonal bool) []Cell
}

// ChunkStreamer is the chunk subsystem's side of proximity streaming.
type ChunkStreamer interface {
	LoadedChunks() []ChunkKey
	// LoadChunk makes k resident and reports whether it was generated for
	// the first time (as opposed to already loaded or restored).
	LoadChunk(k ChunkKey) bool
	UnloadChunk(k ChunkKey)
}

// PassableNeighbors builds a Neighbors result from a passability predicate.
func PassableNeighbors(passable func(Cell) bool, c Cell, diagonal bool) []Cell {
	dirs := Dirs4[:]
	if diagonal {
		dirs = Dirs8[:]
	}
	out := make([]Cell, 0, len(dirs))
	for _, d := range dirs {
		n := c.Add(d)
		if passable(n) {
			out = append(out, n)
		}
	}
	return out
}

// ClearAround reports whether c and its full 3x3 neighborhood are passable.
func ClearAround(o Oracle, c Cell) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if !o.IsPassable(Cell{X: c.X + dx, Y: c.Y + dy}) {
				return false
			}
		}
	}
	return true
}

// FindFromCenter walks rings of growing Chebyshev radius around center and
// returns the first cell accepted by ok. Within a ring cells are visited row
// by row, so the result is stable for a fixed grid.
func FindFromCenter(center Cell, maxRadius int, ok func(Cell) bool) (Cell, bool) {
	if ok(center) {
		return center, true
	}
	for r := 1; r <= maxRadius; r++ {
		for dy := -r; dy <= r; dy++ {
			step := 2 * r
			if dy == -r || dy == r {
				step = 1
			}
			for dx := -r; dx <= r; dx += step {
				c := Cell{X: center.X + dx, Y: center.Y + dy}
				if ok(c) {
					return c, true
				}
			}
		}
	}
	return Cell{}, false
}
