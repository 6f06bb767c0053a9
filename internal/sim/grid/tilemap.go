package grid

import "sort"

// Tile is the content of a single cell.
type Tile struct {
	Solid  bool   `json:"solid,omitempty"`
	Object string `json:"object,omitempty"`
}

// Generator produces the initial tile of a cell the first time its chunk is
// loaded.
type Generator interface {
	Tile(c Cell) Tile
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(c Cell) Tile

func (f GeneratorFunc) Tile(c Cell) Tile { return f(c) }

type chunk struct {
	tiles []Tile
}

// TileMap is an in-memory chunked tile store. Unloaded chunks are parked
// rather than discarded so edits survive an unload/load cycle.
//
// TileMap is not safe for concurrent use; the world loop owns it.
type TileMap struct {
	size     int
	gen      Generator
	blocking func(object string) bool

	loaded map[ChunkKey]*chunk
	parked map[ChunkKey]*chunk
}

// NewTileMap creates an empty map. blocking reports whether an object id
// blocks movement; nil treats every object as passable.
func NewTileMap(chunkSize int, gen Generator, blocking func(object string) bool) *TileMap {
	if chunkSize <= 0 {
		chunkSize = 32
	}
	if gen == nil {
		gen = GeneratorFunc(func(Cell) Tile { return Tile{} })
	}
	if blocking == nil {
		blocking = func(string) bool { return false }
	}
	return &TileMap{
		size:     chunkSize,
		gen:      gen,
		blocking: blocking,
		loaded:   map[ChunkKey]*chunk{},
		parked:   map[ChunkKey]*chunk{},
	}
}

func (m *TileMap) ChunkSize() int { return m.size }

func (m *TileMap) Get(c Cell) (Tile, bool) {
	k, local := ChunkOf(c, m.size)
	ch := m.loaded[k]
	if ch == nil {
		return Tile{}, false
	}
	return ch.tiles[local.Y*m.size+local.X], true
}

// Set overwrites a loaded tile. It reports false when the chunk is not loaded.
func (m *TileMap) Set(c Cell, t Tile) bool {
	k, local := ChunkOf(c, m.size)
	ch := m.loaded[k]
	if ch == nil {
		return false
	}
	ch.tiles[local.Y*m.size+local.X] = t
	return true
}

// Blocking reports whether t blocks movement.
func (m *TileMap) Blocking(t Tile) bool {
	return t.Solid || (t.Object != "" && m.blocking(t.Object))
}

func (m *TileMap) IsPassable(c Cell) bool {
	t, ok := m.Get(c)
	if !ok {
		return false
	}
	return !m.Blocking(t)
}

func (m *TileMap) Neighbors(c Cell, diagonal bool) []Cell {
	return PassableNeighbors(m.IsPassable, c, diagonal)
}

func (m *TileMap) IsLoaded(k ChunkKey) bool {
	_, ok := m.loaded[k]
	return ok
}

func (m *TileMap) LoadChunk(k ChunkKey) bool {
	if _, ok := m.loaded[k]; ok {
		return false
	}
	if ch, ok := m.parked[k]; ok {
		delete(m.parked, k)
		m.loaded[k] = ch
		return false
	}
	ch := &chunk{tiles: make([]Tile, m.size*m.size)}
	for y := 0; y < m.size; y++ {
		for x := 0; x < m.size; x++ {
			ch.tiles[y*m.size+x] = m.gen.Tile(GlobalCell(k, Cell{X: x, Y: y}, m.size))
		}
	}
	m.loaded[k] = ch
	return true
}

func (m *TileMap) UnloadChunk(k ChunkKey) {
	ch, ok := m.loaded[k]
	if !ok {
		return
	}
	delete(m.loaded, k)
	m.parked[k] = ch
}

// LoadedChunks returns resident chunk keys sorted by (CY, CX).
func (m *TileMap) LoadedChunks() []ChunkKey {
	out := make([]ChunkKey, 0, len(m.loaded))
	for k := range m.loaded {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CY != out[j].CY {
			return out[i].CY < out[j].CY
		}
		return out[i].CX < out[j].CX
	})
	return out
}

// LoadAround loads every chunk within Chebyshev radius r of k.
func (m *TileMap) LoadAround(k ChunkKey, r int) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			m.LoadChunk(ChunkKey{CX: k.CX + dx, CY: k.CY + dy})
		}
	}
}
