package grid

// Terrain is the default procedural generator: rock clusters, scattered
// trees and loose stones, with an open clearing around the origin.
type Terrain struct {
	Seed             int64
	SpawnClearRadius int

	RockClusterPermille int
	TreePermille        int
	StonePermille       int

	TreeObject  string
	StoneObject string
}

func (g Terrain) Tile(c Cell) Tile {
	if withinClear(c, g.SpawnClearRadius) {
		return Tile{}
	}
	if inCluster(g.Seed+101, c.X, c.Y, 24, 3, uint64(clampPermille(g.RockClusterPermille))) {
		return Tile{Solid: true}
	}
	roll := Hash2(g.Seed+999, c.X, c.Y) % 1000
	tree := uint64(clampPermille(g.TreePermille))
	stone := uint64(clampPermille(g.StonePermille))
	switch {
	case roll < tree && g.TreeObject != "":
		return Tile{Object: g.TreeObject}
	case roll < tree+stone && g.StoneObject != "":
		return Tile{Object: g.StoneObject}
	}
	return Tile{}
}

func withinClear(c Cell, radius int) bool {
	if radius <= 0 {
		return false
	}
	r := int64(radius)
	dx := int64(c.X)
	dy := int64(c.Y)
	return dx*dx+dy*dy <= r*r
}

func clampPermille(v int) int {
	if v < 0 {
		return 0
	}
	if v > 1000 {
		return 1000
	}
	return v
}

func inCluster(seed int64, x, y, cellSize, radius int, probPermille uint64) bool {
	if cellSize <= 0 || radius <= 0 || probPermille == 0 {
		return false
	}
	gx := FloorDiv(x, cellSize)
	gy := FloorDiv(y, cellSize)
	r2 := radius * radius

	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			cgx := gx + dx
			cgy := gy + dy
			h := Hash2(seed, cgx, cgy)
			if h%1000 >= probPermille {
				continue
			}

			// Deterministically place a center inside this grid cell.
			ox := int((h >> 10) % uint64(cellSize))
			oy := int((h >> 20) % uint64(cellSize))
			cx := cgx*cellSize + ox
			cy := cgy*cellSize + oy

			ddx := x - cx
			ddy := y - cy
			if ddx*ddx+ddy*ddy <= r2 {
				return true
			}
		}
	}
	return false
}
