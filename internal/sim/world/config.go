package world

import (
	"math/rand"

	"github.com/rs/zerolog"

	"dwellers.ai/internal/sim/grid"
	"dwellers.ai/internal/sim/tuning"
)

// TileStore is the tile subsystem as seen by the world: passability queries
// plus the tile edits task effects perform.
type TileStore interface {
	grid.Oracle
	Get(c grid.Cell) (grid.Tile, bool)
	Set(c grid.Cell, t grid.Tile) bool
}

// Rand is the randomness the world consumes. *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

type WorldConfig struct {
	ID     string
	Seed   int64
	Tuning tuning.Tuning

	// Collaborators. A nil Tiles or Chunks makes the systems that need them
	// skip their tick.
	Tiles  TileStore
	Chunks grid.ChunkStreamer
	Rand   Rand
	Log    *zerolog.Logger
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.Tuning.TileSize <= 0 && c.Tuning.ChunkSize <= 0 {
		c.Tuning = tuning.Defaults()
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(c.Seed))
	}
	if c.Log == nil {
		nop := zerolog.Nop()
		c.Log = &nop
	}
}
