// Package grid holds cell and chunk addressing for the tile grid, the
// passability contract consumed by the simulation core, and an in-memory
// chunked tile map that implements it.
package grid

import "fmt"

// Cell is a grid-aligned integer coordinate.
type Cell struct {
	X int
	Y int
}

func C(x, y int) Cell { return Cell{X: x, Y: y} }

func (c Cell) Add(o Cell) Cell { return Cell{X: c.X + o.X, Y: c.Y + o.Y} }

func (c Cell) Sub(o Cell) Cell { return Cell{X: c.X - o.X, Y: c.Y - o.Y} }

func (c Cell) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Y) }

// Manhattan returns the 4-connected step distance between a and b.
func Manhattan(a, b Cell) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y)
}

// Chebyshev returns the 8-connected step distance between a and b.
func Chebyshev(a, b Cell) int {
	dx := absInt(a.X - b.X)
	dy := absInt(a.Y - b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// Adjacent4 reports whether a and b share an edge.
func Adjacent4(a, b Cell) bool { return Manhattan(a, b) == 1 }

// Adjacent8 reports whether a and b share an edge or a corner.
func Adjacent8(a, b Cell) bool { return a != b && Chebyshev(a, b) == 1 }

// Contains reports whether c is one of cells.
func Contains(cells []Cell, c Cell) bool {
	for _, x := range cells {
		if x == c {
			return true
		}
	}
	return false
}

// Fixed neighbor orders. Searches and wander sampling rely on them being stable.
var (
	Dirs4 = [4]Cell{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}
	Dirs8 = [8]Cell{
		{X: 1}, {X: -1}, {Y: 1}, {Y: -1},
		{X: 1, Y: 1}, {X: 1, Y: -1}, {X: -1, Y: 1}, {X: -1, Y: -1},
	}
)

// ChunkKey addresses a ChunkSize x ChunkSize block of cells.
type ChunkKey struct {
	CX int
	CY int
}

func (k ChunkKey) String() string { return fmt.Sprintf("chunk(%d,%d)", k.CX, k.CY) }

// ChunkOf splits c into its chunk and the local offset inside that chunk.
func ChunkOf(c Cell, size int) (ChunkKey, Cell) {
	return ChunkKey{CX: FloorDiv(c.X, size), CY: FloorDiv(c.Y, size)},
		Cell{X: Mod(c.X, size), Y: Mod(c.Y, size)}
}

// GlobalCell is the inverse of ChunkOf.
func GlobalCell(k ChunkKey, local Cell, size int) Cell {
	return Cell{X: k.CX*size + local.X, Y: k.CY*size + local.Y}
}

// ChunkCenter returns the middle cell of chunk k.
func ChunkCenter(k ChunkKey, size int) Cell {
	return GlobalCell(k, Cell{X: size / 2, Y: size / 2}, size)
}
