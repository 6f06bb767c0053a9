package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TileSize  float64 `yaml:"tile_size" json:"tile_size"`
	ChunkSize int     `yaml:"chunk_size" json:"chunk_size"`

	DecisionIntervalMs  int `yaml:"decision_interval_ms" json:"decision_interval_ms"`
	MovementHz          int `yaml:"movement_hz" json:"movement_hz"`
	StreamingIntervalMs int `yaml:"streaming_interval_ms" json:"streaming_interval_ms"`
	RefreshIntervalMs   int `yaml:"refresh_interval_ms" json:"refresh_interval_ms"`

	LoadChunksRadius     int  `yaml:"load_chunks_radius" json:"load_chunks_radius"`
	SpawnMobsOnNewChunks bool `yaml:"spawn_mobs_on_new_chunks" json:"spawn_mobs_on_new_chunks"`

	DwellerSpeed    float64  `yaml:"dweller_speed" json:"dweller_speed"`
	DwellerNames    []string `yaml:"dweller_names" json:"dweller_names"`
	MobWanderChance float64  `yaml:"mob_wander_chance" json:"mob_wander_chance"`

	SpawnSearchRadius int `yaml:"spawn_search_radius" json:"spawn_search_radius"`
	PathMaxExpanded   int `yaml:"path_max_expanded" json:"path_max_expanded"`

	WorldGen WorldGen `yaml:"worldgen" json:"worldgen"`
}

type WorldGen struct {
	SpawnClearRadius    int    `yaml:"spawn_clear_radius" json:"spawn_clear_radius"`
	RockClusterPermille int    `yaml:"rock_cluster_permille" json:"rock_cluster_permille"`
	TreePermille        int    `yaml:"tree_permille" json:"tree_permille"`
	StonePermille       int    `yaml:"stone_permille" json:"stone_permille"`
	TreeObject          string `yaml:"tree_object" json:"tree_object"`
	StoneObject         string `yaml:"stone_object" json:"stone_object"`
}

func Defaults() Tuning {
	return Tuning{
		TileSize:  16,
		ChunkSize: 32,

		DecisionIntervalMs:  200,
		MovementHz:          64,
		StreamingIntervalMs: 1000,
		RefreshIntervalMs:   1000,

		LoadChunksRadius:     1,
		SpawnMobsOnNewChunks: true,

		DwellerSpeed:    80,
		DwellerNames:    []string{"Alice", "Bob", "Charlie", "Dave", "Eve"},
		MobWanderChance: 0.2,

		SpawnSearchRadius: 32,
		PathMaxExpanded:   20000,

		WorldGen: WorldGen{
			SpawnClearRadius:    6,
			RockClusterPermille: 350,
			TreePermille:        30,
			StonePermille:       10,
			TreeObject:          "tree",
			StoneObject:         "stone",
		},
	}
}

// Load overlays the file at path on Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TileSize <= 0:
		return fmt.Errorf("tile_size must be positive")
	case t.ChunkSize <= 0:
		return fmt.Errorf("chunk_size must be positive")
	case t.DecisionIntervalMs <= 0 || t.StreamingIntervalMs <= 0 || t.RefreshIntervalMs <= 0:
		return fmt.Errorf("intervals must be positive")
	case t.MovementHz <= 0:
		return fmt.Errorf("movement_hz must be positive")
	case t.DwellerSpeed <= 0:
		return fmt.Errorf("dweller_speed must be positive")
	case t.LoadChunksRadius < 0:
		return fmt.Errorf("load_chunks_radius must not be negative")
	case t.MobWanderChance < 0 || t.MobWanderChance > 1:
		return fmt.Errorf("mob_wander_chance must be within [0,1]")
	}
	return nil
}

func (t Tuning) DecisionInterval() time.Duration {
	return time.Duration(t.DecisionIntervalMs) * time.Millisecond
}

func (t Tuning) StreamingInterval() time.Duration {
	return time.Duration(t.StreamingIntervalMs) * time.Millisecond
}

func (t Tuning) RefreshInterval() time.Duration {
	return time.Duration(t.RefreshIntervalMs) * time.Millisecond
}

func (t Tuning) MovementInterval() time.Duration {
	return time.Second / time.Duration(t.MovementHz)
}

// MovementStep is the fixed Δt, in seconds, of one movement tick.
func (t Tuning) MovementStep() float64 {
	return 1 / float64(t.MovementHz)
}
